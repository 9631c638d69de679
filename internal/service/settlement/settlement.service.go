// Package settlement applies buy and sell orders as one indivisible update
// across the account's cash balance, its position, and the trade ledger.
package settlement

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/constant"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/util"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidOrder       = errors.New("order quantity and price must be positive")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrPersistenceFailed  = errors.New("failed to persist trade")
)

type SettlementService struct {
	store entity.TradeStore
	js    nats.JetStreamContext
}

// NewSettlementService builds the service. js may be nil, in which case no
// trade events are published.
func NewSettlementService(store entity.TradeStore, js nats.JetStreamContext) *SettlementService {
	return &SettlementService{
		store: store,
		js:    js,
	}
}

func (s *SettlementService) JetstreamEventInit(ctx context.Context) error {
	streamConfig := &nats.StreamConfig{
		Name:      constant.TradeStreamName,
		Subjects:  []string{constant.TradeStreamSubjectAll},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Replicas:  1,
	}

	stream, err := s.js.StreamInfo(constant.TradeStreamName, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		logrus.Error(err)
		return err
	}

	if stream == nil {
		logrus.Infof("creating stream: %s", constant.TradeStreamName)
		_, err = s.js.AddStream(streamConfig, nats.Context(ctx))
		return err
	}

	logrus.Infof("updating stream: %s", constant.TradeStreamName)
	_, err = s.js.UpdateStream(streamConfig, nats.Context(ctx))
	if err != nil {
		logrus.Error(err)
		return err
	}

	return nil
}

// ExecuteBuy debits the account by quantity x pricePerShare, creates or
// blends the position's average cost, and appends a BUY ledger entry. The
// three writes commit together; a failure leaves no partial state.
func (s *SettlementService) ExecuteBuy(ctx context.Context, accountID string, instrumentID int64, quantity int64, pricePerShare decimal.Decimal) (*entity.LedgerEntry, error) {
	if quantity <= 0 || !pricePerShare.IsPositive() {
		return nil, ErrInvalidOrder
	}

	total := pricePerShare.Mul(decimal.NewFromInt(quantity))

	var entry *entity.LedgerEntry
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx entity.TradeTx) error {
		account, err := tx.AccountForUpdate(ctx, accountID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		if err != nil {
			logrus.Error(err)
			return ErrPersistenceFailed
		}

		if account.CashBalance.LessThan(total) {
			return ErrInsufficientFunds
		}

		position, err := tx.PositionForUpdate(ctx, accountID, instrumentID)
		if err != nil {
			logrus.Error(err)
			return ErrPersistenceFailed
		}

		if position == nil {
			position = &entity.Position{
				AccountID:    accountID,
				InstrumentID: instrumentID,
				Quantity:     quantity,
				AverageCost:  pricePerShare,
			}
		} else {
			oldQuantity := decimal.NewFromInt(position.Quantity)
			newQuantity := position.Quantity + quantity
			position.AverageCost = position.AverageCost.Mul(oldQuantity).
				Add(total).
				Div(decimal.NewFromInt(newQuantity))
			position.Quantity = newQuantity
		}

		entry = &entity.LedgerEntry{
			AccountID:     accountID,
			InstrumentID:  instrumentID,
			Side:          entity.TradeSideBuy,
			Quantity:      quantity,
			PricePerShare: pricePerShare,
			TotalAmount:   total,
			ExecutedAt:    time.Now().UTC(),
		}
		if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
			logrus.Error(err)
			return ErrPersistenceFailed
		}

		if err := tx.UpdateAccountCash(ctx, accountID, account.CashBalance.Sub(total)); err != nil {
			logrus.Error(err)
			return ErrPersistenceFailed
		}

		if err := tx.UpsertPosition(ctx, position); err != nil {
			logrus.Error(err)
			return ErrPersistenceFailed
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishTradeExecuted(entry)

	return entry, nil
}

// ExecuteSell credits the account by quantity x pricePerShare and decrements
// the position. Average cost is untouched; disposing part of a holding does
// not change the cost basis of what remains. Full liquidation deletes the
// position row.
func (s *SettlementService) ExecuteSell(ctx context.Context, accountID string, instrumentID int64, quantity int64, pricePerShare decimal.Decimal) (*entity.LedgerEntry, error) {
	if quantity <= 0 || !pricePerShare.IsPositive() {
		return nil, ErrInvalidOrder
	}

	total := pricePerShare.Mul(decimal.NewFromInt(quantity))

	var entry *entity.LedgerEntry
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx entity.TradeTx) error {
		account, err := tx.AccountForUpdate(ctx, accountID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		if err != nil {
			logrus.Error(err)
			return ErrPersistenceFailed
		}

		position, err := tx.PositionForUpdate(ctx, accountID, instrumentID)
		if err != nil {
			logrus.Error(err)
			return ErrPersistenceFailed
		}

		if position == nil || position.Quantity < quantity {
			return ErrInsufficientShares
		}

		realizedPnl := pricePerShare.Sub(position.AverageCost).Mul(decimal.NewFromInt(quantity))

		entry = &entity.LedgerEntry{
			AccountID:     accountID,
			InstrumentID:  instrumentID,
			Side:          entity.TradeSideSell,
			Quantity:      quantity,
			PricePerShare: pricePerShare,
			TotalAmount:   total,
			ExecutedAt:    time.Now().UTC(),
			RealizedPnl:   &realizedPnl,
		}
		if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
			logrus.Error(err)
			return ErrPersistenceFailed
		}

		if err := tx.UpdateAccountCash(ctx, accountID, account.CashBalance.Add(total)); err != nil {
			logrus.Error(err)
			return ErrPersistenceFailed
		}

		remaining := position.Quantity - quantity
		if remaining == 0 {
			if err := tx.DeletePosition(ctx, accountID, instrumentID); err != nil {
				logrus.Error(err)
				return ErrPersistenceFailed
			}
		} else {
			position.Quantity = remaining
			if err := tx.UpsertPosition(ctx, position); err != nil {
				logrus.Error(err)
				return ErrPersistenceFailed
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishTradeExecuted(entry)

	return entry, nil
}

// publishTradeExecuted is best-effort; a publish failure never fails the
// already-committed trade.
func (s *SettlementService) publishTradeExecuted(entry *entity.LedgerEntry) {
	if s.js == nil || entry == nil {
		return
	}

	event := entity.TradeExecutedEvent{
		EventID: uuid.NewString(),
		Data:    *entry,
	}

	if err := util.PublishEvent(s.js, constant.TradeStreamSubjectExecuted, event); err != nil {
		logrus.Errorf("failed to publish trade executed event: %v", err)
	}
}
