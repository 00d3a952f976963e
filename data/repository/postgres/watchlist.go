package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/sujal-kumar-jasti/Apex-Invest/data/repository"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/converter/dbConverter"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model/dbModel"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
)

func (r *Postgres) UpsertWatchlistEntry(ctx context.Context, entry model.WatchlistEntry) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpsertWatchlistEntry"
	query := `
		INSERT INTO watchlist(user_id, symbol, last_price)
		VALUES($1, $2, $3)
		ON CONFLICT (user_id, symbol) DO UPDATE SET
			last_price = EXCLUDED.last_price
		`

	slog.Debug("UpsertWatchlistEntry start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpsertWatchlistEntry failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertWatchlistEntry completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, entry.UserID, entry.Symbol, entry.LastPrice)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) GetWatchlistEntry(ctx context.Context, userID, symbol string) (entry model.WatchlistEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetWatchlistEntry"
	query := `
		SELECT user_id, symbol, last_price
		FROM watchlist
		WHERE user_id = $1
		AND symbol = $2
		`

	slog.Debug("GetWatchlistEntry start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetWatchlistEntry failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetWatchlistEntry completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbEntry := dbModel.WatchlistEntry{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, symbol).StructScan(&dbEntry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.WatchlistEntry{}, repository.ErrNotFound
		}
		return model.WatchlistEntry{}, err
	}

	return dbConverter.ConvertWatchlistEntry(dbEntry), nil
}

func (r *Postgres) GetAllWatchlistEntries(ctx context.Context, userID string) (entries []model.WatchlistEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetAllWatchlistEntries"
	query := `
		SELECT user_id, symbol, last_price
		FROM watchlist
		WHERE user_id = $1
		ORDER BY symbol
		`

	slog.Debug("GetAllWatchlistEntries start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetAllWatchlistEntries failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAllWatchlistEntries completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbEntry dbModel.WatchlistEntry
		err = rows.StructScan(&dbEntry)
		if err != nil {
			return nil, err
		}
		entries = append(entries, dbConverter.ConvertWatchlistEntry(dbEntry))
	}

	return entries, nil
}

func (r *Postgres) DeleteWatchlistEntry(ctx context.Context, userID, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteWatchlistEntry"
	query := `
		DELETE FROM watchlist
		WHERE user_id = $1
		AND symbol = $2
		`

	slog.Debug("DeleteWatchlistEntry start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("DeleteWatchlistEntry failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteWatchlistEntry completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID, symbol)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) UpdateWatchlistPrice(ctx context.Context, userID, symbol string, price decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateWatchlistPrice"
	query := `
		UPDATE watchlist
		SET last_price = $1
		WHERE
			user_id = $2
			AND symbol = $3
		`

	slog.Debug("UpdateWatchlistPrice start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateWatchlistPrice failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateWatchlistPrice completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, price, userID, symbol)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) ClearWatchlist(ctx context.Context, userID string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ClearWatchlist"
	query := `DELETE FROM watchlist WHERE user_id = $1`

	slog.Debug("ClearWatchlist start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("ClearWatchlist failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ClearWatchlist completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}

	return nil
}
