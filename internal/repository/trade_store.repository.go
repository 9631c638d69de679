package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// TradeStore implements entity.TradeStore over a single Postgres database.
// AccountForUpdate takes a row lock, so two trades on the same account are
// serialized by the database for the lifetime of the transaction.
type TradeStore struct {
	db *sqlx.DB
}

func NewTradeStore(db *sqlx.DB) *TradeStore {
	return &TradeStore{db: db}
}

func (s *TradeStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx entity.TradeTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trade transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &tradeTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback trade transaction: %v (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trade transaction: %w", err)
	}

	return nil
}

type tradeTx struct {
	tx *sqlx.Tx
}

func (t *tradeTx) AccountForUpdate(ctx context.Context, accountID string) (*entity.Account, error) {
	var account entity.Account
	err := t.tx.GetContext(ctx, &account, "SELECT * FROM accounts WHERE id = $1 FOR UPDATE", accountID)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (t *tradeTx) PositionForUpdate(ctx context.Context, accountID string, instrumentID int64) (*entity.Position, error) {
	var position entity.Position
	err := t.tx.GetContext(ctx, &position,
		"SELECT * FROM positions WHERE account_id = $1 AND instrument_id = $2 FOR UPDATE",
		accountID, instrumentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &position, nil
}

func (t *tradeTx) UpdateAccountCash(ctx context.Context, accountID string, cash decimal.Decimal) error {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Update(entity.Account{}.TableName()).
		Set("cash_balance", cash).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": accountID})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *tradeTx) UpsertPosition(ctx context.Context, position *entity.Position) error {
	now := time.Now().UTC()
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(position.TableName()).
		Columns(
			"account_id",
			"instrument_id",
			"quantity",
			"average_cost",
			"created_at",
			"updated_at",
		).
		Values(
			position.AccountID,
			position.InstrumentID,
			position.Quantity,
			position.AverageCost,
			now,
			now,
		).
		Suffix(`ON CONFLICT (account_id, instrument_id)
DO UPDATE SET
	quantity = EXCLUDED.quantity,
	average_cost = EXCLUDED.average_cost,
	updated_at = EXCLUDED.updated_at`)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *tradeTx) DeletePosition(ctx context.Context, accountID string, instrumentID int64) error {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Delete(entity.Position{}.TableName()).
		Where(sq.Eq{"account_id": accountID, "instrument_id": instrumentID})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *tradeTx) AppendLedgerEntry(ctx context.Context, entry *entity.LedgerEntry) error {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(entry.TableName()).
		Columns(
			"account_id",
			"instrument_id",
			"side",
			"quantity",
			"price_per_share",
			"total_amount",
			"executed_at",
		).
		Values(
			entry.AccountID,
			entry.InstrumentID,
			entry.Side,
			entry.Quantity,
			entry.PricePerShare,
			entry.TotalAmount,
			entry.ExecutedAt,
		).
		Suffix("RETURNING id")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	var id int64
	err = t.tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if err != nil {
		return err
	}

	entry.ID = id

	return nil
}
