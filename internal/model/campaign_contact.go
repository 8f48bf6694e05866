package model

import (
	"time"

	"github.com/google/uuid"
)

type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusSkipped   LedgerStatus = "skipped"
	LedgerStatusSent      LedgerStatus = "sent"
	LedgerStatusDelivered LedgerStatus = "delivered"
	LedgerStatusRead      LedgerStatus = "read"
	LedgerStatusFailed    LedgerStatus = "failed"
)

// SkipCode classifies why a contact was rejected by the precheck.
type SkipCode string

const (
	SkipCodeNoContactID      SkipCode = "no_contact_id"
	SkipCodeOptedOut         SkipCode = "opted_out"
	SkipCodeMissingVariable  SkipCode = "missing_variable"
	SkipCodeInvalidPhone     SkipCode = "invalid_phone"
	SkipCodeCategoryMismatch SkipCode = "category_mismatch"
)

// CampaignContact is the per-(campaign, contact) ledger row. The pair
// (CampaignID, ContactID) is unique; re-running dispatch for the same
// campaign converges onto the same row instead of duplicating it. The
// dispatch core only ever writes the initial pending/skipped split;
// the transmission worker and webhook ingestion own the transitions
// into sent/delivered/read/failed.
type CampaignContact struct {
	Base
	CampaignID   uuid.UUID    `json:"campaign_id" db:"campaign_id"`
	ContactID    uuid.UUID    `json:"contact_id" db:"contact_id"`
	Phone        string       `json:"phone" db:"phone"`
	Name         string       `json:"name" db:"name"`
	Email        string       `json:"email" db:"email"`
	CustomFields JSONMap      `json:"custom_fields" db:"custom_fields"`
	Status       LedgerStatus `json:"status" db:"status"`
	SkipCode     *SkipCode    `json:"skip_code,omitempty" db:"skip_code"`
	SkipReason   *string      `json:"skip_reason,omitempty" db:"skip_reason"`
	LastError    *string      `json:"last_error,omitempty" db:"last_error"`
	MessageID    *string      `json:"message_id,omitempty" db:"message_id"`
	SentAt       *time.Time   `json:"sent_at,omitempty" db:"sent_at"`
	SkippedAt    *time.Time   `json:"skipped_at,omitempty" db:"skipped_at"`
}

type LedgerFilters struct {
	Status string
	Pagination
}
