package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/jmoiron/sqlx"
)

type PositionRepository struct {
	db *sqlx.DB
}

func NewPositionRepository(db *sqlx.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

func (r *PositionRepository) GetByAccount(ctx context.Context, accountID string) ([]entity.Position, error) {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("*").
		From(entity.Position{}.TableName()).
		Where(sq.Eq{"account_id": accountID}).
		OrderBy("instrument_id asc")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	var positions []entity.Position
	err = r.db.SelectContext(ctx, &positions, query, args...)
	if err != nil {
		return nil, err
	}

	return positions, nil
}
