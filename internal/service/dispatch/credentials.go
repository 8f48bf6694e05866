package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
)

// CredentialResolver produces the provider credential a dispatch runs
// with. The precedence order is fixed: an unmasked caller-supplied
// credential wins over stored per-org configuration, which wins over
// the environment default. The core never reads ambient configuration
// directly; it only sees the resolver.
type CredentialResolver interface {
	Resolve(ctx context.Context, orgID uuid.UUID, supplied *model.ProviderCredentials) (model.ProviderCredentials, error)
}

type chainResolver struct {
	settings   repository.SettingsRepository
	envDefault model.ProviderCredentials
}

func NewCredentialResolver(settings repository.SettingsRepository, envDefault model.ProviderCredentials) CredentialResolver {
	return &chainResolver{settings: settings, envDefault: envDefault}
}

func (r *chainResolver) Resolve(ctx context.Context, orgID uuid.UUID, supplied *model.ProviderCredentials) (model.ProviderCredentials, error) {
	if supplied != nil && supplied.Complete() && !masked(supplied.AccessToken) {
		return *supplied, nil
	}

	stored, err := r.settings.GetProviderCredentials(ctx, orgID)
	if err != nil {
		return model.ProviderCredentials{}, fmt.Errorf("failed to read stored provider credentials: %w", err)
	}
	if stored != nil && stored.Complete() {
		return *stored, nil
	}

	return r.envDefault, nil
}

// masked detects a token the UI redacted before echoing it back. A
// masked token must never reach the provider.
func masked(token string) bool {
	return strings.Contains(token, "*") || strings.Contains(token, "…") || strings.Contains(token, "...")
}
