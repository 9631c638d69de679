package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/jmoiron/sqlx"
)

type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) ListByAccount(ctx context.Context, accountID string, limit uint64) ([]entity.LedgerEntry, error) {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("id", "account_id", "instrument_id", "side", "quantity", "price_per_share", "total_amount", "executed_at").
		From(entity.LedgerEntry{}.TableName()).
		Where(sq.Eq{"account_id": accountID}).
		OrderBy("executed_at desc", "id desc")

	if limit > 0 {
		queryBuilder = queryBuilder.Limit(limit)
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	var entries []entity.LedgerEntry
	err = r.db.SelectContext(ctx, &entries, query, args...)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
