package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
	apperrors "github.com/jwalitptl/campaign-api/pkg/errors"
	"github.com/jwalitptl/campaign-api/pkg/validator"
)

type CampaignService interface {
	CreateCampaign(ctx context.Context, req *model.CreateCampaignRequest) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	UpdateCampaign(ctx context.Context, id uuid.UUID, req *model.UpdateCampaignRequest) (*model.Campaign, error)
	CancelCampaign(ctx context.Context, id uuid.UUID) error
	ListCampaigns(ctx context.Context, filters *model.CampaignFilters) ([]*model.Campaign, error)
	ListLedger(ctx context.Context, campaignID uuid.UUID, filters *model.LedgerFilters) ([]*model.CampaignContact, error)
	GetStats(ctx context.Context, campaignID uuid.UUID) (*model.CampaignStats, error)
}

type Service struct {
	repo     repository.CampaignRepository
	ledger   repository.LedgerRepository
	validate validator.Validator
}

func NewService(repo repository.CampaignRepository, ledger repository.LedgerRepository) *Service {
	return &Service{repo: repo, ledger: ledger, validate: validator.New()}
}

func (s *Service) CreateCampaign(ctx context.Context, req *model.CreateCampaignRequest) (*model.Campaign, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.NewBadRequest(err.Error(), err)
	}

	orgID, err := uuid.Parse(req.OrgID)
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid org id", err)
	}

	status := model.CampaignStatusDraft
	if req.ScheduledAt != nil {
		if req.ScheduledAt.Before(time.Now()) {
			return nil, apperrors.NewBadRequest("scheduled_at must be in the future", nil)
		}
		status = model.CampaignStatusScheduled
	}

	campaign := &model.Campaign{
		Base:              model.Base{ID: uuid.New()},
		OrgID:             orgID,
		Name:              req.Name,
		Status:            status,
		ScheduledAt:       req.ScheduledAt,
		TemplateName:      req.TemplateName,
		TemplateVariables: req.TemplateVariables,
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to create campaign: %w", err))
	}
	return campaign, nil
}

func (s *Service) GetCampaign(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	campaign, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("campaign", err)
		}
		return nil, apperrors.NewInternal(err)
	}
	return campaign, nil
}

func (s *Service) UpdateCampaign(ctx context.Context, id uuid.UUID, req *model.UpdateCampaignRequest) (*model.Campaign, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.NewBadRequest(err.Error(), err)
	}

	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	if campaign.Status == model.CampaignStatusSending || campaign.Status == model.CampaignStatusDone {
		return nil, apperrors.NewBadRequest(
			fmt.Sprintf("campaign cannot be edited in status %s", campaign.Status), nil)
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.TemplateName != nil {
		// The template bound at creation may change until first
		// dispatch freezes it.
		if campaign.Frozen() {
			return nil, apperrors.NewBadRequest("template is frozen for this campaign", nil)
		}
		campaign.TemplateName = *req.TemplateName
	}
	if req.TemplateVariables != nil {
		campaign.TemplateVariables = req.TemplateVariables
	}
	if req.ScheduledAt != nil {
		campaign.ScheduledAt = req.ScheduledAt
		campaign.Status = model.CampaignStatusScheduled
	}
	if req.Status != nil {
		campaign.Status = model.CampaignStatus(*req.Status)
	}

	if err := s.repo.Update(ctx, campaign); err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to update campaign: %w", err))
	}
	return campaign, nil
}

// CancelCampaign is the logical cancellation the dispatch router's
// stale-trigger guard relies on: a queued scheduler job for a
// cancelled campaign will be ignored at execution time.
func (s *Service) CancelCampaign(ctx context.Context, id uuid.UUID) error {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status == model.CampaignStatusDone {
		return apperrors.NewBadRequest("campaign has already completed", nil)
	}
	if err := s.repo.UpdateStatus(ctx, id, model.CampaignStatusCancelled); err != nil {
		return apperrors.NewInternal(fmt.Errorf("failed to cancel campaign: %w", err))
	}
	return nil
}

func (s *Service) ListCampaigns(ctx context.Context, filters *model.CampaignFilters) ([]*model.Campaign, error) {
	campaigns, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list campaigns: %w", err))
	}
	return campaigns, nil
}

func (s *Service) ListLedger(ctx context.Context, campaignID uuid.UUID, filters *model.LedgerFilters) ([]*model.CampaignContact, error) {
	if _, err := s.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	rows, err := s.ledger.ListByCampaign(ctx, campaignID, filters)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list ledger: %w", err))
	}
	return rows, nil
}

func (s *Service) GetStats(ctx context.Context, campaignID uuid.UUID) (*model.CampaignStats, error) {
	if _, err := s.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	counts, err := s.ledger.CountByStatus(ctx, campaignID)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to count ledger: %w", err))
	}
	return &model.CampaignStats{CampaignID: campaignID.String(), Counts: counts}, nil
}
