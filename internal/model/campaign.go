package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusDone      CampaignStatus = "done"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Campaign identifies a single send operation. The three frozen-template
// fields (TemplateSnapshot, TemplateSpecHash, TemplateParameterFormat)
// are written at most once per campaign: once TemplateSpecHash is
// populated a retried dispatch must not overwrite them.
type Campaign struct {
	Base
	OrgID             uuid.UUID       `json:"org_id" db:"org_id"`
	Name              string          `json:"name" db:"name"`
	Status            CampaignStatus  `json:"status" db:"status"`
	ScheduledAt       *time.Time      `json:"scheduled_at,omitempty" db:"scheduled_at"`
	TemplateName      string          `json:"template_name" db:"template_name"`
	TemplateVariables JSONMap         `json:"template_variables" db:"template_variables"`
	TemplateSnapshot  json.RawMessage `json:"template_snapshot,omitempty" db:"template_snapshot"`
	TemplateSpecHash  *string         `json:"template_spec_hash,omitempty" db:"template_spec_hash"`
	TemplateParamFmt  *string         `json:"template_parameter_format,omitempty" db:"template_parameter_format"`
}

// Frozen reports whether the campaign already carries an immutable
// template snapshot.
func (c *Campaign) Frozen() bool {
	return c.TemplateSpecHash != nil && *c.TemplateSpecHash != ""
}

type CreateCampaignRequest struct {
	OrgID             string     `json:"org_id" binding:"required" validate:"required,uuid"`
	Name              string     `json:"name" binding:"required" validate:"required,max=255"`
	TemplateName      string     `json:"template_name" binding:"required" validate:"required,max=512"`
	TemplateVariables JSONMap    `json:"template_variables"`
	ScheduledAt       *time.Time `json:"scheduled_at"`
}

type UpdateCampaignRequest struct {
	Name              *string    `json:"name" validate:"omitempty,max=255"`
	Status            *string    `json:"status" validate:"omitempty,oneof=draft scheduled cancelled"`
	TemplateName      *string    `json:"template_name" validate:"omitempty,max=512"`
	TemplateVariables JSONMap    `json:"template_variables"`
	ScheduledAt       *time.Time `json:"scheduled_at"`
}

type CampaignFilters struct {
	OrgID  string
	Status string
	Pagination
}

// CampaignStats aggregates the ledger by status for one campaign.
type CampaignStats struct {
	CampaignID string         `json:"campaign_id"`
	Counts     map[string]int `json:"counts"`
}
