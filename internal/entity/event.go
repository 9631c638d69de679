package entity

import "context"

type Publisher interface {
	JetstreamEventInit(ctx context.Context) error
}

type TradeExecutedEvent struct {
	EventID    string      `json:"event_id"`
	RetryCount int         `json:"retry"`
	Data       LedgerEntry `json:"data"`
}
