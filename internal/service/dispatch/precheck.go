package dispatch

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/pkg/phone"
)

// TemplateRequirements is the slice of a frozen template the precheck
// needs: what the template demands of a contact before it may be sent.
type TemplateRequirements struct {
	Category          model.TemplateCategory
	RequiredVariables []string
}

// RequirementsOf derives the precheck requirements from the frozen
// snapshot that will actually be transmitted.
func RequirementsOf(snap model.TemplateSnapshot) TemplateRequirements {
	return TemplateRequirements{
		Category:          snap.Category,
		RequiredVariables: snap.RequiredVariables(),
	}
}

// Precheck decides admission for one resolved recipient. It is pure:
// the same recipient, requirements and variables always produce the
// same decision, with no I/O. A nil return admits the recipient; a
// non-nil return carries the machine-readable skip code and a reason
// the operator can act on.
func Precheck(rec model.Recipient, req TemplateRequirements, variables model.JSONMap) *model.SkippedRecipient {
	reject := func(code model.SkipCode, reason string) *model.SkippedRecipient {
		return &model.SkippedRecipient{
			ContactID: rec.ContactID,
			Phone:     rec.Phone,
			Name:      rec.Name,
			Code:      code,
			Reason:    reason,
		}
	}

	// Identity is established before the validator runs, but the code
	// is still exposed here so every rejection family has one owner.
	if rec.ContactID == uuid.Nil {
		return reject(model.SkipCodeNoContactID, "no resolvable contact identity")
	}

	if !phone.Valid(rec.Phone) {
		return reject(model.SkipCodeInvalidPhone, fmt.Sprintf("phone %q is not a sendable number", rec.Phone))
	}

	if rec.OptedOut {
		return reject(model.SkipCodeOptedOut, "contact has opted out of messaging")
	}

	// Authentication templates are per-user transactional flows; a
	// batch campaign must not carry them.
	if req.Category == model.TemplateCategoryAuthentication {
		return reject(model.SkipCodeCategoryMismatch,
			fmt.Sprintf("template category %s cannot be dispatched as a campaign", req.Category))
	}

	for _, name := range req.RequiredVariables {
		if hasVariable(variables, name) || hasVariable(rec.CustomFields, name) {
			continue
		}
		return reject(model.SkipCodeMissingVariable,
			fmt.Sprintf("template requires a value for {{%s}}", name))
	}

	return nil
}

func hasVariable(m model.JSONMap, name string) bool {
	if m == nil {
		return false
	}
	v, ok := m[name]
	if !ok {
		return false
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return v != nil
}
