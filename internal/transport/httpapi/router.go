package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujal-kumar-jasti/Apex-Invest/config"
)

// NewApp builds the fiber application with all routes registered.
func NewApp(cfg *config.Config, ctl *Controller) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "apex-invest",
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	})

	app.Use(RequestID())
	app.Use(RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	api := app.Group("/api/v1", RequireUser())

	api.Post("/trades", ctl.CreateTrade)
	api.Get("/trades", ctl.GetAllTrades)
	api.Delete("/trades/:id", ctl.DeleteTrade)

	api.Get("/portfolio", ctl.GetPortfolio)
	api.Get("/portfolio/export", ctl.ExportPortfolio)
	api.Get("/portfolio/:symbol/history", ctl.GetTradeHistory)
	api.Get("/portfolio/:symbol/invested", ctl.GetInvested)

	api.Get("/watchlist", ctl.GetWatchlist)
	api.Post("/watchlist", ctl.AddWatchlistStock)
	api.Delete("/watchlist/:symbol", ctl.DeleteWatchlistStock)

	api.Post("/sync", ctl.Sync)
	api.Post("/refresh", ctl.RefreshPrices)
	api.Delete("/data", ctl.ClearData)

	api.Get("/stocks/:symbol", ctl.GetStockDetails)
	api.Get("/search", ctl.Search)
	api.Get("/events", ctl.StreamEvents)

	return app
}
