package domesticApi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/sujal-kumar-jasti/Apex-Invest/config"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/externalApi"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model/quoteModel"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
)

// DomesticApi is the client for the NSE/BSE quote backend.
type DomesticApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *DomesticApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.DomesticApi.Url)
	return &DomesticApi{client: client}
}

func (a *DomesticApi) GetStockDetails(ctx context.Context, symbol, rng string, charts bool) (quoteModel.RawStockResponse, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/stock"
	params := map[string]string{
		"symbol": symbol,
		"range":  rng,
		"charts": strconv.FormatBool(charts),
	}

	slog.Debug("start DomesticApi.GetStockDetails request", slog.String("rqID", rqID), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing DomesticApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return quoteModel.RawStockResponse{}, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return quoteModel.RawStockResponse{}, externalApi.ErrNotFound
	}

	rawStock := quoteModel.RawStockResponse{}
	err = json.Unmarshal(resp.Body(), &rawStock)
	if err != nil {
		slog.Error("can't unmarshall response into quoteModel.RawStockResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return quoteModel.RawStockResponse{}, err
	}

	slog.Debug("DomesticApi.GetStockDetails request complete", slog.String("rqID", rqID))

	return rawStock, nil
}

// GetLivePrice fetches a quote without history, the cheap call used by
// portfolio-wide refresh.
func (a *DomesticApi) GetLivePrice(ctx context.Context, symbol string) (quoteModel.RawStockResponse, error) {
	return a.GetStockDetails(ctx, symbol, "1D", false)
}
