package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID        int64           `db:"id"`
	UserID    string          `db:"user_id"`
	Symbol    string          `db:"symbol"`
	Type      string          `db:"type"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
	CreatedAt time.Time       `db:"created_at"`
}
