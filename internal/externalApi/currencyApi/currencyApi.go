package currencyApi

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/sujal-kumar-jasti/Apex-Invest/config"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/externalApi"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model/quoteModel"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
)

type CurrencyApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *CurrencyApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.CurrencyApi.Url)
	return &CurrencyApi{client: client}
}

// GetUsdToInr fetches the current USD->INR rate from the exchange-rate API.
func (a *CurrencyApi) GetUsdToInr(ctx context.Context) (float64, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/latest/USD"

	slog.Debug("start CurrencyApi.GetUsdToInr request", slog.String("rqID", rqID))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(url)

	if err != nil {
		slog.Error("error while dialing CurrencyApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return 0, err
	}

	rates := quoteModel.RawRatesResponse{}
	err = json.Unmarshal(resp.Body(), &rates)
	if err != nil {
		slog.Error("can't unmarshall response into quoteModel.RawRatesResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return 0, err
	}

	rate, ok := rates.Rates["INR"]
	if !ok {
		slog.Error("INR rate missing in response", slog.String("rqID", rqID))
		return 0, externalApi.ErrNotFound
	}

	slog.Debug("CurrencyApi.GetUsdToInr request complete", slog.String("rqID", rqID))

	return rate, nil
}
