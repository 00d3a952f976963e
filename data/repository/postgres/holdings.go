package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sujal-kumar-jasti/Apex-Invest/data/repository"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/converter/dbConverter"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model/dbModel"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
)

func (r *Postgres) UpsertHolding(ctx context.Context, holding model.Holding) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpsertHolding"
	query := `
		INSERT INTO holdings(user_id, symbol, quantity, avg_cost, current_price, daily_change_pct, buy_date, last_updated)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, symbol) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_cost = EXCLUDED.avg_cost,
			current_price = EXCLUDED.current_price,
			daily_change_pct = EXCLUDED.daily_change_pct,
			buy_date = EXCLUDED.buy_date,
			last_updated = EXCLUDED.last_updated
		`

	slog.Debug("UpsertHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpsertHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	lastUpdated := holding.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}

	_, err = r.txOrDb(ctx).ExecContext(
		ctx,
		query,
		holding.UserID,
		holding.Symbol,
		holding.Quantity,
		holding.AvgCost,
		holding.CurrentPrice,
		holding.DailyChangePct,
		holding.BuyDate,
		lastUpdated,
	)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) GetHolding(ctx context.Context, userID, symbol string) (holding model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHolding"
	query := `
		SELECT user_id, symbol, quantity, avg_cost, current_price, daily_change_pct, buy_date, last_updated
		FROM holdings
		WHERE user_id = $1
		AND symbol = $2
		`

	slog.Debug("GetHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbHolding := dbModel.Holding{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, symbol).StructScan(&dbHolding)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Holding{}, repository.ErrNotFound
		}
		return model.Holding{}, err
	}

	return dbConverter.ConvertHolding(dbHolding), nil
}

func (r *Postgres) GetAllHoldings(ctx context.Context, userID string) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetAllHoldings"
	query := `
		SELECT user_id, symbol, quantity, avg_cost, current_price, daily_change_pct, buy_date, last_updated
		FROM holdings
		WHERE user_id = $1
		ORDER BY symbol
		`

	slog.Debug("GetAllHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetAllHoldings failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAllHoldings completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbHolding dbModel.Holding
		err = rows.StructScan(&dbHolding)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, dbConverter.ConvertHolding(dbHolding))
	}

	return holdings, nil
}

func (r *Postgres) DeleteHolding(ctx context.Context, userID, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteHolding"
	query := `
		DELETE FROM holdings
		WHERE user_id = $1
		AND symbol = $2
		`

	slog.Debug("DeleteHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("DeleteHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID, symbol)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) UpdateHoldingQuote(ctx context.Context, userID, symbol string, price, changePct decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateHoldingQuote"
	query := `
		UPDATE holdings
		SET
			current_price = $1,
			daily_change_pct = $2,
			last_updated = $3
		WHERE
			user_id = $4
			AND symbol = $5
		`

	slog.Debug("UpdateHoldingQuote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateHoldingQuote failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateHoldingQuote completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, price, changePct, time.Now(), userID, symbol)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) ClearHoldings(ctx context.Context, userID string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ClearHoldings"
	query := `DELETE FROM holdings WHERE user_id = $1`

	slog.Debug("ClearHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("ClearHoldings failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ClearHoldings completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}

	return nil
}
