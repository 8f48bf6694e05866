package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Dispatch DispatchConfig
	WhatsApp WhatsAppConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

// DispatchConfig controls the dispatch engine's routing decisions.
type DispatchConfig struct {
	// ServiceBaseURL is the base URL other services use to reach this
	// one. A loopback address selects the direct-transmit path, since
	// the durable queue cannot call back into a loopback address.
	ServiceBaseURL string `mapstructure:"service_base_url"`
	// QueueToken must be present in deployed topologies; its absence
	// there is a configuration error, never a silent fallback.
	QueueToken string `mapstructure:"queue_token"`
	QueueName  string `mapstructure:"queue_name"`
	// ScheduleTolerance is the window within which a scheduler
	// trigger's recorded time must match the campaign's current
	// schedule for the trigger to be honored.
	ScheduleTolerance time.Duration `mapstructure:"schedule_tolerance"`
}

// LocalTopology reports whether the service base URL points at a
// loopback address. The loopback topology uses the direct-transmit
// path and is the only topology that exposes the internal transmit
// endpoint.
func (c DispatchConfig) LocalTopology() bool {
	u, err := url.Parse(c.ServiceBaseURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	return false
}

// WhatsAppConfig is the environment-default provider credential, the
// last entry in the credential resolver's precedence order.
type WhatsAppConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	APIVersion        string `mapstructure:"api_version"`
	PhoneNumberID     string `mapstructure:"phone_number_id"`
	AccessToken       string `mapstructure:"access_token"`
	BusinessAccountID string `mapstructure:"business_account_id"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	viper.SetDefault("dispatch.queue_name", "dispatch:jobs")
	viper.SetDefault("dispatch.schedule_tolerance", 60*time.Second)
	viper.SetDefault("whatsapp.base_url", "https://graph.facebook.com")
	viper.SetDefault("whatsapp.api_version", "v21.0")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
