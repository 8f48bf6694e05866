package model

import (
	"time"

	"github.com/google/uuid"
)

// Trigger identifies what initiated a dispatch.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
)

// RecipientInput is the boundary shape of one recipient in a dispatch
// request. Either ContactID is set (explicit identity) or only Phone is
// (identity resolved by the engine before anything else happens).
type RecipientInput struct {
	ContactID    *uuid.UUID `json:"contact_id,omitempty"`
	Phone        string     `json:"phone" binding:"required"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	CustomFields JSONMap    `json:"custom_fields"`
}

// Recipient is the fully resolved internal shape: identity established,
// phone canonicalized. Components after the identity resolver only ever
// see this form.
type Recipient struct {
	ContactID    uuid.UUID `json:"contact_id"`
	Phone        string    `json:"phone"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	CustomFields JSONMap   `json:"custom_fields,omitempty"`
	OptedOut     bool      `json:"-"`
}

// UnresolvedRecipient names an entry whose phone could not be matched
// to a contact, for the structured identity-resolution error.
type UnresolvedRecipient struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// SkippedRecipient surfaces a precheck rejection to the operator.
type SkippedRecipient struct {
	ContactID uuid.UUID `json:"contact_id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Code      SkipCode  `json:"code"`
	Reason    string    `json:"reason"`
}

// DispatchRequest is the body of POST /dispatch.
type DispatchRequest struct {
	CampaignID        uuid.UUID        `json:"campaign_id" binding:"required"`
	TemplateName      string           `json:"template_name" binding:"required"`
	Contacts          []RecipientInput `json:"contacts"`
	TemplateVariables JSONMap          `json:"template_variables"`
	Trigger           Trigger          `json:"trigger"`
	ScheduledAt       *time.Time       `json:"scheduled_at"`
	// Credentials optionally carries a caller-supplied provider
	// credential. Masked tokens are ignored by the resolver.
	Credentials *ProviderCredentials `json:"credentials,omitempty"`
}

// DispatchStatus is the outcome reported to the caller.
type DispatchStatus string

const (
	DispatchStatusQueued  DispatchStatus = "queued"
	DispatchStatusSkipped DispatchStatus = "skipped"
	DispatchStatusIgnored DispatchStatus = "ignored"
)

// DispatchResult is the 202 body of POST /dispatch.
type DispatchResult struct {
	Status          DispatchStatus     `json:"status"`
	Count           int                `json:"count"`
	Skipped         int                `json:"skipped"`
	TraceID         string             `json:"trace_id,omitempty"`
	Message         string             `json:"message"`
	SkippedContacts []SkippedRecipient `json:"skipped_contacts,omitempty"`
}

// ProviderCredentials is the resolved credential triple for the
// messaging provider's Graph API.
type ProviderCredentials struct {
	PhoneNumberID     string `json:"phone_number_id" db:"phone_number_id"`
	AccessToken       string `json:"access_token" db:"access_token"`
	BusinessAccountID string `json:"business_account_id" db:"business_account_id"`
}

// Complete reports whether both fields needed to call the provider are
// present.
func (c ProviderCredentials) Complete() bool {
	return c.PhoneNumberID != "" && c.AccessToken != ""
}

// WorkflowPayload is the immutable unit of work handed to the
// transmission loop. Everything the loop needs is embedded: it never
// re-resolves identity, re-validates eligibility or re-fetches the
// template.
type WorkflowPayload struct {
	CampaignID        uuid.UUID           `json:"campaign_id"`
	TraceID           string              `json:"trace_id"`
	Contacts          []Recipient         `json:"contacts"`
	TemplateVariables JSONMap             `json:"template_variables"`
	Template          TemplateSnapshot    `json:"template"`
	Credentials       ProviderCredentials `json:"credentials"`
	EnqueuedAt        time.Time           `json:"enqueued_at"`
}
