package postgres

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/converter/dbConverter"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model/dbModel"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
)

func (r *Postgres) InsertTransaction(ctx context.Context, tx model.Transaction) (id int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTransaction"
	query := `
		INSERT INTO transactions(user_id, symbol, type, quantity, price, created_at)
		VALUES($1, $2, $3, $4, $5, $6)
		RETURNING id
		`

	slog.Debug(
		"InsertTransaction start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Any("transaction", tx),
		slog.String("query", query),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(
		ctx,
		query,
		tx.UserID,
		tx.Symbol,
		string(tx.Type),
		tx.Quantity,
		tx.Price,
		tx.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

func (r *Postgres) GetTransactionsForSymbol(ctx context.Context, userID, symbol string) (txs []model.Transaction, err error) {
	query := `
		SELECT id, user_id, symbol, type, quantity, price, created_at
		FROM transactions
		WHERE user_id = $1
		AND symbol = $2
		ORDER BY created_at DESC
		`

	return r.getTransactions(ctx, query, userID, symbol)
}

func (r *Postgres) GetAllTransactions(ctx context.Context, userID string) (txs []model.Transaction, err error) {
	query := `
		SELECT id, user_id, symbol, type, quantity, price, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		`

	return r.getTransactions(ctx, query, userID)
}

// GetTransactionsForReplay returns a symbol's records oldest-first, the
// order required to rebuild the holding from scratch.
func (r *Postgres) GetTransactionsForReplay(ctx context.Context, userID, symbol string) (txs []model.Transaction, err error) {
	query := `
		SELECT id, user_id, symbol, type, quantity, price, created_at
		FROM transactions
		WHERE user_id = $1
		AND symbol = $2
		ORDER BY created_at ASC, id ASC
		`

	return r.getTransactions(ctx, query, userID, symbol)
}

func (r *Postgres) getTransactions(ctx context.Context, query string, args ...interface{}) (txs []model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.getTransactions"

	slog.Debug("getTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("getTransactions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("getTransactions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbTx dbModel.Transaction
		err = rows.StructScan(&dbTx)
		if err != nil {
			return nil, err
		}
		txs = append(txs, dbConverter.ConvertTransaction(dbTx))
	}

	return txs, nil
}

func (r *Postgres) GetTotalInvested(ctx context.Context, userID, symbol string) (total decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTotalInvested"
	query := `
		SELECT COALESCE(SUM(quantity * price), 0)
		FROM transactions
		WHERE user_id = $1
		AND symbol = $2
		AND type = 'BUY'
		`

	slog.Debug("GetTotalInvested start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetTotalInvested failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTotalInvested completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, symbol).Scan(&total)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return total, nil
}

func (r *Postgres) GetTotalQtyBought(ctx context.Context, userID, symbol string) (total int, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTotalQtyBought"
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM transactions
		WHERE user_id = $1
		AND symbol = $2
		AND type = 'BUY'
		`

	slog.Debug("GetTotalQtyBought start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetTotalQtyBought failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTotalQtyBought completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, symbol).Scan(&total)
	if err != nil {
		return 0, err
	}

	return total, nil
}

func (r *Postgres) DeleteTransaction(ctx context.Context, userID string, id int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteTransaction"
	query := `
		DELETE FROM transactions
		WHERE user_id = $1
		AND id = $2
		`

	slog.Debug("DeleteTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("DeleteTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID, id)
	if err != nil {
		return err
	}

	return nil
}
