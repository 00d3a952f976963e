package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Transaction is one immutable ledger record. The ledger is the audit
// trail; rows are never updated, only appended (and deleted only by an
// explicit user correction).
type Transaction struct {
	ID        int64
	UserID    string
	Symbol    string
	Type      TransactionType
	Quantity  int
	Price     decimal.Decimal
	CreatedAt time.Time
}
