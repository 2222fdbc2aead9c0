package materials

import (
	"strings"
	"time"

	"github.com/Spok95/salon-ledger/internal/apperr"
	"github.com/Spok95/salon-ledger/internal/domain/catalog"

	"github.com/shopspring/decimal"
)

type Material struct {
	ID            int64               `json:"id"`
	Name          string              `json:"name"`
	Brand         string              `json:"brand,omitempty"`
	Color         string              `json:"color,omitempty"`
	Category      catalog.Category    `json:"category,omitempty"`
	UnitType      catalog.Unit        `json:"unit_type"`
	CurrentStock  decimal.Decimal     `json:"current_stock"`
	MinStockLevel decimal.Decimal     `json:"min_stock_level"`
	CostPerUnit   decimal.NullDecimal `json:"cost_per_unit"`
	Supplier      string              `json:"supplier,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	Active        bool                `json:"is_active"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// LowStock остаток на уровне минимума или ниже.
func (m Material) LowStock() bool {
	return m.CurrentStock.LessThanOrEqual(m.MinStockLevel)
}

// MaxQuantity верхняя граница колонок NUMERIC(12,2).
var MaxQuantity = decimal.RequireFromString("9999999999.99")

// InRange количество помещается в колонку: не меньше нуля и не больше MaxQuantity.
func InRange(q decimal.Decimal) bool {
	return !q.IsNegative() && q.LessThanOrEqual(MaxQuantity)
}

// NewMaterial входные данные для создания материала.
type NewMaterial struct {
	Name          string              `json:"name"`
	Brand         string              `json:"brand"`
	Color         string              `json:"color"`
	Category      catalog.Category    `json:"category"`
	UnitType      catalog.Unit        `json:"unit_type"`
	CurrentStock  decimal.Decimal     `json:"current_stock"`
	MinStockLevel decimal.Decimal     `json:"min_stock_level"`
	CostPerUnit   decimal.NullDecimal `json:"cost_per_unit"`
	Supplier      string              `json:"supplier"`
	Notes         string              `json:"notes"`
	Active        *bool               `json:"is_active"`
}

// Normalize обрезает строки и округляет количества до сотых.
func (n NewMaterial) Normalize() NewMaterial {
	n.Name = strings.TrimSpace(n.Name)
	n.Brand = strings.TrimSpace(n.Brand)
	n.Color = strings.TrimSpace(n.Color)
	n.Supplier = strings.TrimSpace(n.Supplier)
	n.Notes = strings.TrimSpace(n.Notes)
	n.CurrentStock = n.CurrentStock.Round(2)
	n.MinStockLevel = n.MinStockLevel.Round(2)
	if n.CostPerUnit.Valid {
		n.CostPerUnit.Decimal = n.CostPerUnit.Decimal.Round(2)
	}
	if n.Active == nil {
		active := true
		n.Active = &active
	}
	return n
}

func (n NewMaterial) Validate() error {
	if n.Name == "" {
		return apperr.Invalid("name is required")
	}
	if !catalog.ValidUnit(n.UnitType) {
		return apperr.Invalid("unknown unit type %q", n.UnitType)
	}
	if !catalog.ValidCategory(n.Category) {
		return apperr.Invalid("unknown category %q", n.Category)
	}
	if !InRange(n.CurrentStock) {
		return apperr.Invalid("current stock must be between 0 and %s", MaxQuantity)
	}
	if !InRange(n.MinStockLevel) {
		return apperr.Invalid("min stock level must be between 0 and %s", MaxQuantity)
	}
	if n.CostPerUnit.Valid && !InRange(n.CostPerUnit.Decimal) {
		return apperr.Invalid("cost per unit must be between 0 and %s", MaxQuantity)
	}
	return nil
}

type Summary struct {
	TotalMaterials int64           `json:"total_materials"`
	LowStockCount  int64           `json:"low_stock_count"`
	TotalValue     decimal.Decimal `json:"total_value"`
}
