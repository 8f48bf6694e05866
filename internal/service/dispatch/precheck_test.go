package dispatch

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/campaign-api/internal/model"
)

func admittableRecipient() model.Recipient {
	return model.Recipient{
		ContactID: uuid.New(),
		Phone:     "+5511999990000",
		Name:      "Ana",
	}
}

func TestPrecheckAdmitsValidRecipient(t *testing.T) {
	req := TemplateRequirements{Category: model.TemplateCategoryMarketing}
	assert.Nil(t, Precheck(admittableRecipient(), req, nil))
}

func TestPrecheckSkipCodes(t *testing.T) {
	marketing := TemplateRequirements{Category: model.TemplateCategoryMarketing}

	tests := []struct {
		name      string
		recipient model.Recipient
		req       TemplateRequirements
		variables model.JSONMap
		code      model.SkipCode
	}{
		{
			name:      "missing contact identity",
			recipient: model.Recipient{Phone: "+5511999990000"},
			req:       marketing,
			code:      model.SkipCodeNoContactID,
		},
		{
			name:      "unsendable phone",
			recipient: model.Recipient{ContactID: uuid.New(), Phone: "12"},
			req:       marketing,
			code:      model.SkipCodeInvalidPhone,
		},
		{
			name: "opted out contact",
			recipient: model.Recipient{
				ContactID: uuid.New(), Phone: "+5511999990000", OptedOut: true,
			},
			req:  marketing,
			code: model.SkipCodeOptedOut,
		},
		{
			name:      "authentication template in a campaign",
			recipient: admittableRecipient(),
			req:       TemplateRequirements{Category: model.TemplateCategoryAuthentication},
			code:      model.SkipCodeCategoryMismatch,
		},
		{
			name:      "required variable absent",
			recipient: admittableRecipient(),
			req: TemplateRequirements{
				Category:          model.TemplateCategoryUtility,
				RequiredVariables: []string{"order_id"},
			},
			code: model.SkipCodeMissingVariable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejection := Precheck(tt.recipient, tt.req, tt.variables)
			require.NotNil(t, rejection)
			assert.Equal(t, tt.code, rejection.Code)
			assert.NotEmpty(t, rejection.Reason)
		})
	}
}

func TestPrecheckVariableSources(t *testing.T) {
	req := TemplateRequirements{
		Category:          model.TemplateCategoryUtility,
		RequiredVariables: []string{"name"},
	}

	// Campaign-level variable satisfies the requirement.
	assert.Nil(t, Precheck(admittableRecipient(), req, model.JSONMap{"name": "Ana"}))

	// A contact custom field satisfies it too.
	rec := admittableRecipient()
	rec.CustomFields = model.JSONMap{"name": "Ana"}
	assert.Nil(t, Precheck(rec, req, nil))

	// An empty string is not a value.
	rejection := Precheck(admittableRecipient(), req, model.JSONMap{"name": ""})
	require.NotNil(t, rejection)
	assert.Equal(t, model.SkipCodeMissingVariable, rejection.Code)
}

func TestPrecheckOptOutBeatsCategoryMismatch(t *testing.T) {
	rec := admittableRecipient()
	rec.OptedOut = true
	req := TemplateRequirements{Category: model.TemplateCategoryAuthentication}

	rejection := Precheck(rec, req, nil)
	require.NotNil(t, rejection)
	assert.Equal(t, model.SkipCodeOptedOut, rejection.Code)
}

func TestPrecheckIsDeterministic(t *testing.T) {
	rec := admittableRecipient()
	req := TemplateRequirements{
		Category:          model.TemplateCategoryMarketing,
		RequiredVariables: []string{"name"},
	}
	vars := model.JSONMap{"name": "Ana"}

	first := Precheck(rec, req, vars)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Precheck(rec, req, vars))
	}
}
