package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/jwalitptl/campaign-api/internal/model"
)

// Client talks to the messaging provider's Graph API. It sends one
// template message per call; batching and throughput shaping are out of
// scope here.
type Client struct {
	baseURL    string
	apiVersion string
	http       *http.Client
}

func NewClient(baseURL, apiVersion string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		apiVersion: apiVersion,
		http:       httpClient,
	}
}

type sendRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type templatePayload struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []component `json:"components,omitempty"`
}

type language struct {
	Code string `json:"code"`
}

type component struct {
	Type       string      `json:"type"`
	Parameters []parameter `json:"parameters,omitempty"`
}

type parameter struct {
	Type          string `json:"type"`
	Text          string `json:"text,omitempty"`
	ParameterName string `json:"parameter_name,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendTemplate delivers one template message and returns the provider
// message id.
func (c *Client) SendTemplate(
	ctx context.Context,
	creds model.ProviderCredentials,
	to string,
	tpl model.TemplateSnapshot,
	variables model.JSONMap,
) (string, error) {
	payload := sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: templatePayload{
			Name:       tpl.Name,
			Language:   language{Code: tpl.Language},
			Components: buildComponents(tpl.ParameterFormat, variables),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, creds.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read provider response: %w", err)
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode provider response (%d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if parsed.Error != nil {
			return "", fmt.Errorf("provider rejected send (%d): %s", parsed.Error.Code, parsed.Error.Message)
		}
		return "", fmt.Errorf("provider returned %d", resp.StatusCode)
	}
	if len(parsed.Messages) == 0 {
		return "", fmt.Errorf("provider response carried no message id")
	}
	return parsed.Messages[0].ID, nil
}

// buildComponents renders the template variables into the body
// component, positionally ({{1}}, {{2}}, ...) or by name depending on
// the frozen parameter format.
func buildComponents(parameterFormat string, variables model.JSONMap) []component {
	if len(variables) == 0 {
		return nil
	}

	params := make([]parameter, 0, len(variables))
	if parameterFormat == "NAMED" {
		names := make([]string, 0, len(variables))
		for name := range variables {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			params = append(params, parameter{
				Type:          "text",
				ParameterName: name,
				Text:          fmt.Sprint(variables[name]),
			})
		}
	} else {
		// Positional parameters are keyed "1", "2", ... and must be
		// emitted in order.
		keys := make([]int, 0, len(variables))
		for name := range variables {
			if n, err := strconv.Atoi(name); err == nil {
				keys = append(keys, n)
			}
		}
		sort.Ints(keys)
		for _, n := range keys {
			params = append(params, parameter{
				Type: "text",
				Text: fmt.Sprint(variables[strconv.Itoa(n)]),
			})
		}
	}

	if len(params) == 0 {
		return nil
	}
	return []component{{Type: "body", Parameters: params}}
}
