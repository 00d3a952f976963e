package globalApi

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

// GlobalApi is the client for the global quote backend. It also hosts the
// symbol search endpoint, which covers every exchange.
type GlobalApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *GlobalApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.GlobalApi.Url)
	return &GlobalApi{client: client}
}

func (a *GlobalApi) GetStockDetails(ctx context.Context, symbol, rng string, charts bool) (quoteModel.RawStockResponse, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/stock"
	params := map[string]string{
		"symbol": symbol,
		"range":  rng,
		"charts": strconv.FormatBool(charts),
	}

	slog.Debug("start GlobalApi.GetStockDetails request", slog.String("rqID", rqID), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing GlobalApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
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

	slog.Debug("GlobalApi.GetStockDetails request complete", slog.String("rqID", rqID))

	return rawStock, nil
}

func (a *GlobalApi) GetLivePrice(ctx context.Context, symbol string) (quoteModel.RawStockResponse, error) {
	return a.GetStockDetails(ctx, symbol, "1D", false)
}

func (a *GlobalApi) SearchStocks(ctx context.Context, query string) ([]quoteModel.RawSearchResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/search"

	slog.Debug("start GlobalApi.SearchStocks request", slog.String("rqID", rqID), slog.String("query", query))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("q", query).
		Get(url)

	if err != nil {
		slog.Error("error while dialing GlobalApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	var results []quoteModel.RawSearchResult
	err = json.Unmarshal(resp.Body(), &results)
	if err != nil {
		slog.Error("can't unmarshall response into []quoteModel.RawSearchResult", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	slog.Debug("GlobalApi.SearchStocks request complete", slog.String("rqID", rqID))

	return results, nil
}
