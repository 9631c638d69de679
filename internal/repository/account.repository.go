package repository

import (
	"context"

	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/jmoiron/sqlx"
)

type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	var account entity.Account
	err := r.db.GetContext(ctx, &account, "SELECT * FROM accounts WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
