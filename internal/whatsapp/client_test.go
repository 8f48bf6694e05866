package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/campaign-api/internal/model"
)

var testCreds = model.ProviderCredentials{
	PhoneNumberID: "1234567890",
	AccessToken:   "EAAG-test-token",
}

func capturingServer(t *testing.T, status int, response string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/1234567890/messages", r.URL.Path)
		assert.Equal(t, "Bearer EAAG-test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
}

func TestSendTemplatePositionalParameters(t *testing.T) {
	var body map[string]interface{}
	srv := capturingServer(t, http.StatusOK, `{"messages":[{"id":"wamid.abc"}]}`, &body)
	defer srv.Close()

	client := NewClient(srv.URL, "v21.0", srv.Client())
	tpl := model.TemplateSnapshot{Name: "welcome_offer", Language: "pt_BR", ParameterFormat: "POSITIONAL"}

	id, err := client.SendTemplate(context.Background(), testCreds, "+5511999990000", tpl, model.JSONMap{
		"2": "B",
		"1": "A",
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.abc", id)

	assert.Equal(t, "whatsapp", body["messaging_product"])
	assert.Equal(t, "+5511999990000", body["to"])

	template := body["template"].(map[string]interface{})
	assert.Equal(t, "welcome_offer", template["name"])
	assert.Equal(t, "pt_BR", template["language"].(map[string]interface{})["code"])

	components := template["components"].([]interface{})
	require.Len(t, components, 1)
	params := components[0].(map[string]interface{})["parameters"].([]interface{})
	require.Len(t, params, 2)
	// Positional parameters are emitted in numeric order.
	assert.Equal(t, "A", params[0].(map[string]interface{})["text"])
	assert.Equal(t, "B", params[1].(map[string]interface{})["text"])
}

func TestSendTemplateNamedParameters(t *testing.T) {
	var body map[string]interface{}
	srv := capturingServer(t, http.StatusOK, `{"messages":[{"id":"wamid.xyz"}]}`, &body)
	defer srv.Close()

	client := NewClient(srv.URL, "v21.0", srv.Client())
	tpl := model.TemplateSnapshot{Name: "order_update", Language: "en_US", ParameterFormat: "NAMED"}

	_, err := client.SendTemplate(context.Background(), testCreds, "+5511999990000", tpl, model.JSONMap{
		"order_id": "A-42",
		"name":     "Ana",
	})
	require.NoError(t, err)

	template := body["template"].(map[string]interface{})
	components := template["components"].([]interface{})
	require.Len(t, components, 1)
	params := components[0].(map[string]interface{})["parameters"].([]interface{})
	require.Len(t, params, 2)

	first := params[0].(map[string]interface{})
	assert.Equal(t, "name", first["parameter_name"])
	assert.Equal(t, "Ana", first["text"])
}

func TestSendTemplateNoVariablesOmitsComponents(t *testing.T) {
	var body map[string]interface{}
	srv := capturingServer(t, http.StatusOK, `{"messages":[{"id":"wamid.abc"}]}`, &body)
	defer srv.Close()

	client := NewClient(srv.URL, "v21.0", srv.Client())
	tpl := model.TemplateSnapshot{Name: "plain", Language: "en_US"}

	_, err := client.SendTemplate(context.Background(), testCreds, "+5511999990000", tpl, nil)
	require.NoError(t, err)

	template := body["template"].(map[string]interface{})
	_, present := template["components"]
	assert.False(t, present)
}

func TestSendTemplateProviderError(t *testing.T) {
	srv := capturingServer(t, http.StatusBadRequest,
		`{"error":{"message":"(#131026) Message undeliverable","code":131026}}`, nil)
	defer srv.Close()

	client := NewClient(srv.URL, "v21.0", srv.Client())
	tpl := model.TemplateSnapshot{Name: "welcome_offer", Language: "pt_BR"}

	_, err := client.SendTemplate(context.Background(), testCreds, "+5511999990000", tpl, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "131026")
}

func TestSendTemplateMissingMessageID(t *testing.T) {
	srv := capturingServer(t, http.StatusOK, `{"messages":[]}`, nil)
	defer srv.Close()

	client := NewClient(srv.URL, "v21.0", srv.Client())
	tpl := model.TemplateSnapshot{Name: "welcome_offer", Language: "pt_BR"}

	_, err := client.SendTemplate(context.Background(), testCreds, "+5511999990000", tpl, nil)
	assert.Error(t, err)
}
