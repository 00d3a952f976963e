package portfolioReport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
	"github.com/xuri/excelize/v2"
)

var csvHeader = []string{"Symbol", "Shares", "Buy Price", "Current Price", "Total Invested", "Total Value", "Gain/Loss"}

type PortfolioReport struct{}

func New() *PortfolioReport {
	return &PortfolioReport{}
}

// GenerateCSV renders the holdings as a spreadsheet-friendly CSV. The
// leading UTF-8 BOM makes Excel detect the encoding; amounts carry the
// currency prefix of the symbol's market.
func (g *PortfolioReport) GenerateCSV(ctx context.Context, holdings []model.Holding) ([]byte, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioReport.GenerateCSV"

	slog.Debug("GenerateCSV start", slog.String("rqID", rqID), slog.String("op", op))

	var buf bytes.Buffer
	buf.WriteString("\xEF\xBB\xBF")

	for i, col := range csvHeader {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(col)
	}
	buf.WriteByte('\n')

	for _, h := range holdings {
		prefix := utils.CurrencyPrefix(h.Symbol)
		invested := decimal.NewFromInt(int64(h.Quantity)).Mul(h.AvgCost)
		value := decimal.NewFromInt(int64(h.Quantity)).Mul(h.CurrentPrice)
		gain := value.Sub(invested)

		buf.WriteString(fmt.Sprintf(
			"%s,%d,%s%.2f,%s%.2f,%s%.2f,%s%.2f,%s%.2f\n",
			h.Symbol,
			h.Quantity,
			prefix, h.AvgCost.InexactFloat64(),
			prefix, h.CurrentPrice.InexactFloat64(),
			prefix, invested.InexactFloat64(),
			prefix, value.InexactFloat64(),
			prefix, gain.InexactFloat64(),
		))
	}

	slog.Debug("GenerateCSV completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), nil
}

// GenerateXLSX renders the same table as a styled workbook.
func (g *PortfolioReport) GenerateXLSX(ctx context.Context, holdings []model.Holding) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioReport.GenerateXLSX"

	if len(holdings) == 0 {
		return nil, "", errors.New("empty holdings")
	}

	slog.Debug("GenerateXLSX start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	const sheetName = "Portfolio"
	if _, err := f.NewSheet(sheetName); err != nil {
		slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return nil, "", err
	}

	for i, col := range csvHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, "", err
		}
		_ = f.SetCellStr(sheetName, cell, col)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, h := range holdings {
		row := i + 2
		invested := decimal.NewFromInt(int64(h.Quantity)).Mul(h.AvgCost)
		value := decimal.NewFromInt(int64(h.Quantity)).Mul(h.CurrentPrice)

		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), h.Symbol)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("B%d", row), int(h.Quantity))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), h.AvgCost.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), h.CurrentPrice.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), invested.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), value.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), value.Sub(invested).InexactFloat64())
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("GenerateXLSX completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}
