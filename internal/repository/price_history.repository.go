package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/jmoiron/sqlx"
)

type PriceHistoryRepository struct {
	db *sqlx.DB
}

func NewPriceHistoryRepository(db *sqlx.DB) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db}
}

// LatestClosesBySymbol returns up to limit points for the symbol, newest
// first. The quote layer is symbol-keyed, so the join resolves the instrument
// in the same query.
func (r *PriceHistoryRepository) LatestClosesBySymbol(ctx context.Context, symbol string, limit uint64) ([]entity.PricePoint, error) {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("h.instrument_id", "h.date", "h.open", "h.high", "h.low", "h.close").
		From(entity.PricePoint{}.TableName() + " h").
		Join(entity.Instrument{}.TableName() + " i ON i.id = h.instrument_id").
		Where(sq.Eq{"i.symbol": symbol}).
		OrderBy("h.date desc").
		Limit(limit)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	var points []entity.PricePoint
	err = r.db.SelectContext(ctx, &points, query, args...)
	if err != nil {
		return nil, err
	}

	return points, nil
}
