package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
)

type contactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) repository.ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Get(ctx context.Context, id uuid.UUID) (*model.Contact, error) {
	query := `SELECT * FROM contacts WHERE id = $1`
	var contact model.Contact
	if err := r.db.GetContext(ctx, &contact, query, id); err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &contact, nil
}

func (r *contactRepository) LookupByPhones(ctx context.Context, phones []string) ([]*model.ContactRef, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, phone FROM contacts WHERE phone IN (?)`, phones)
	if err != nil {
		return nil, fmt.Errorf("failed to build phone lookup query: %w", err)
	}
	query = r.db.Rebind(query)

	var refs []*model.ContactRef
	if err := r.db.SelectContext(ctx, &refs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to lookup contacts by phone: %w", err)
	}
	return refs, nil
}

func (r *contactRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM contacts WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build contact query: %w", err)
	}
	query = r.db.Rebind(query)

	var contacts []*model.Contact
	if err := r.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get contacts: %w", err)
	}
	return contacts, nil
}
