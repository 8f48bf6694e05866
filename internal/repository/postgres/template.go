package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
)

type templateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) repository.TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) GetByName(ctx context.Context, name string) (*model.Template, error) {
	query := `SELECT * FROM templates WHERE name = $1`
	var tpl model.Template
	if err := r.db.GetContext(ctx, &tpl, query, name); err != nil {
		return nil, fmt.Errorf("failed to get template %q: %w", name, err)
	}
	return &tpl, nil
}
