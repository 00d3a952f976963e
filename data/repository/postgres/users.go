package postgres

import (
	"context"
	"log/slog"

	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
)

func (r *Postgres) GetActiveUserIDs(ctx context.Context) (userIDs []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetActiveUserIDs"
	query := `
		SELECT user_id FROM holdings
		UNION
		SELECT user_id FROM watchlist
		`

	slog.Debug("GetActiveUserIDs start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetActiveUserIDs failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetActiveUserIDs completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).SelectContext(ctx, &userIDs, query)
	if err != nil {
		return nil, err
	}

	return userIDs, nil
}
