// Package report exports stock to Excel and imports stock counts back from it.
package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Spok95/salon-ledger/internal/apperr"
	"github.com/Spok95/salon-ledger/internal/domain/inventory"
	"github.com/Spok95/salon-ledger/internal/domain/materials"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName  = "Stock"
	importNote = "Stock count import"
)

// Колонки выгрузки; counted_stock заполняется руками при инвентаризации.
var header = []any{
	"material_id", "name", "brand", "color", "category", "unit_type",
	"current_stock", "min_stock_level", "counted_stock",
}

const (
	colMaterialID = 0
	colCounted    = 8
)

// WriteStock пишет xlsx с остатками материалов.
func WriteStock(w io.Writer, list []materials.Material, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, m := range list {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			m.ID, m.Name, m.Brand, m.Color, string(m.Category), string(m.UnitType),
			m.CurrentStock.InexactFloat64(), m.MinStockLevel.InexactFloat64(),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Salon stock",
		Created: generatedAt.Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("doc props: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	_, err := f.WriteTo(w)
	return err
}

// StockCount строка инвентаризации из файла.
type StockCount struct {
	Row        int
	MaterialID int64
	Counted    decimal.Decimal
}

// ReadStockCounts разбирает xlsx; строки без counted_stock пропускаются.
// Любая ошибка формата возвращается до каких-либо изменений остатков.
func ReadStockCounts(r io.Reader) ([]StockCount, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Invalid("cannot read xlsx: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheet := SheetName
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperr.Invalid("cannot read sheet %q: %v", sheet, err)
	}
	if len(rows) < 1 || len(rows[0]) <= colCounted || strings.TrimSpace(rows[0][colCounted]) != "counted_stock" {
		return nil, apperr.Invalid("unexpected header: expected %d columns ending with counted_stock", len(header))
	}

	var out []StockCount
	seen := make(map[int64]int)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) <= colCounted || strings.TrimSpace(row[colCounted]) == "" {
			continue
		}
		idStr := strings.TrimSpace(row[colMaterialID])
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			return nil, apperr.Invalid("row %d: bad material_id %q", i+1, idStr)
		}
		if prev, ok := seen[id]; ok {
			return nil, apperr.Invalid("row %d: material_id %d already counted on row %d", i+1, id, prev)
		}
		seen[id] = i + 1
		qtyStr := strings.TrimSpace(strings.ReplaceAll(row[colCounted], ",", "."))
		qty, err := decimal.NewFromString(qtyStr)
		if err != nil || !materials.InRange(qty.Round(2)) {
			return nil, apperr.Invalid("row %d: bad counted_stock %q", i+1, row[colCounted])
		}
		out = append(out, StockCount{Row: i + 1, MaterialID: id, Counted: qty.Round(2)})
	}
	return out, nil
}

type Resetter interface {
	ResetMany(ctx context.Context, resets []inventory.Reset, notes string) ([]inventory.StockChange, error)
}

type ImportResult struct {
	Rows    int `json:"rows"`
	Changed int `json:"changed"`
}

// ImportStockCounts выставляет остатки по файлу инвентаризации.
// Файл проводится целиком или не проводится вовсе.
func ImportStockCounts(ctx context.Context, r io.Reader, ledger Resetter) (ImportResult, error) {
	counts, err := ReadStockCounts(r)
	if err != nil {
		return ImportResult{}, err
	}
	resets := make([]inventory.Reset, 0, len(counts))
	for _, c := range counts {
		resets = append(resets, inventory.Reset{MaterialID: c.MaterialID, Stock: c.Counted})
	}
	changes, err := ledger.ResetMany(ctx, resets, importNote)
	if err != nil {
		return ImportResult{}, fmt.Errorf("apply stock counts: %w", err)
	}
	res := ImportResult{Rows: len(changes)}
	for _, ch := range changes {
		if !ch.QuantityChange.IsZero() {
			res.Changed++
		}
	}
	return res, nil
}
