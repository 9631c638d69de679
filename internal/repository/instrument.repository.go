package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type InstrumentRepository struct {
	db *sqlx.DB
}

func NewInstrumentRepository(db *sqlx.DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

func (r *InstrumentRepository) GetAll(ctx context.Context) ([]entity.Instrument, error) {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("*").
		From(entity.Instrument{}.TableName()).
		OrderBy("symbol asc")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	var instruments []entity.Instrument
	err = r.db.SelectContext(ctx, &instruments, query, args...)
	if err != nil {
		return nil, err
	}

	return instruments, nil
}

func (r *InstrumentRepository) GetBySymbol(ctx context.Context, symbol string) (*entity.Instrument, error) {
	var instrument entity.Instrument
	err := r.db.GetContext(ctx, &instrument, "SELECT * FROM instruments WHERE symbol = $1", symbol)
	if err != nil {
		return nil, err
	}
	return &instrument, nil
}

func (r *InstrumentRepository) UpdateReferencePrice(ctx context.Context, id int64, price decimal.Decimal) error {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Update(entity.Instrument{}.TableName()).
		Set("reference_price", price).
		Set("last_updated", time.Now().UTC()).
		Where(sq.Eq{"id": id})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}
