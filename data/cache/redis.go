package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/sujal-kumar-jasti/Apex-Invest/config"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
)

const usdRateKey = "currency:usd_to_inr"

func quoteKey(symbol, rng string) string {
	return fmt.Sprintf("quote:%s:%s", symbol, rng)
}

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func (r *RedisCache) SetStockDetail(ctx context.Context, rng string, detail model.StockDetail) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetStockDetail start", slog.String("rqID", rqID))

	detailJson, err := json.Marshal(detail)
	if err != nil {
		slog.Error(
			"can't marshall detail in SetStockDetail",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.Any("detail", detail),
		)
		return errors.New("can't marshall stock detail")
	}

	_, err = r.redis.Set(ctx, quoteKey(detail.Symbol, rng), detailJson, r.cfg.Cache.QuotesExpiration).Result()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetStockDetail completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisCache) GetStockDetail(ctx context.Context, symbol, rng string) (model.StockDetail, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetStockDetail start", slog.String("rqID", rqID))

	res, err := r.redis.Get(ctx, quoteKey(symbol, rng)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("symbol", symbol))
		}
		return model.StockDetail{}, err
	}

	detail := model.StockDetail{}
	err = json.Unmarshal([]byte(res), &detail)
	if err != nil {
		slog.Error(
			"can't unmarshall detail in GetStockDetail",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.StockDetail{}, errors.New("can't unmarshall stock detail")
	}

	slog.Debug("GetStockDetail finished", slog.String("rqID", rqID))

	return detail, nil
}

func (r *RedisCache) SetUsdRate(ctx context.Context, rate float64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetUsdRate start", slog.String("rqID", rqID))

	_, err := r.redis.Set(ctx, usdRateKey, rate, r.cfg.Cache.RateExpiration).Result()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (r *RedisCache) GetUsdRate(ctx context.Context) (float64, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetUsdRate start", slog.String("rqID", rqID))

	rate, err := r.redis.Get(ctx, usdRateKey).Float64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		return 0, err
	}

	return rate, nil
}
