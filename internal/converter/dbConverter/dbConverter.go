package dbConverter

import (
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model/dbModel"
)

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	return model.Holding{
		UserID:         dbHolding.UserID,
		Symbol:         dbHolding.Symbol,
		Quantity:       dbHolding.Quantity,
		AvgCost:        dbHolding.AvgCost,
		CurrentPrice:   dbHolding.CurrentPrice,
		DailyChangePct: dbHolding.DailyChangePct,
		BuyDate:        dbHolding.BuyDate,
		LastUpdated:    dbHolding.LastUpdated,
	}
}

func ConvertWatchlistEntry(dbEntry dbModel.WatchlistEntry) model.WatchlistEntry {
	return model.WatchlistEntry{
		UserID:    dbEntry.UserID,
		Symbol:    dbEntry.Symbol,
		LastPrice: dbEntry.LastPrice,
	}
}

func ConvertTransaction(dbTx dbModel.Transaction) model.Transaction {
	return model.Transaction{
		ID:        dbTx.ID,
		UserID:    dbTx.UserID,
		Symbol:    dbTx.Symbol,
		Type:      model.TransactionType(dbTx.Type),
		Quantity:  dbTx.Quantity,
		Price:     dbTx.Price,
		CreatedAt: dbTx.CreatedAt,
	}
}
