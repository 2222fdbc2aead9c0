package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	Addition   TransactionType = "addition"
	Deduction  TransactionType = "deduction"
	Adjustment TransactionType = "adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case Addition, Deduction, Adjustment:
		return true
	}
	return false
}

// Transaction запись журнала; после вставки не меняется.
type Transaction struct {
	ID             int64           `json:"id"`
	MaterialID     int64           `json:"material_id"`
	Type           TransactionType `json:"transaction_type"`
	QuantityChange decimal.Decimal `json:"quantity_change"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	MaterialName   string          `json:"material_name,omitempty"`
	UnitType       string          `json:"unit_type,omitempty"`
}

type StockChange struct {
	OldStock       decimal.Decimal `json:"old_stock"`
	NewStock       decimal.Decimal `json:"new_stock"`
	QuantityChange decimal.Decimal `json:"quantity_change"`
}

type LineItem struct {
	MaterialID int64           `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity_used"`
	Notes      string          `json:"notes,omitempty"`
}

type ServiceInput struct {
	ClientID    int64      `json:"client_id"`
	ServiceType string     `json:"service_type"`
	Notes       string     `json:"notes"`
	Items       []LineItem `json:"materials"`
}

// Reset фактический остаток материала по результатам пересчёта.
type Reset struct {
	MaterialID int64           `json:"material_id"`
	Stock      decimal.Decimal `json:"stock"`
}

// Drift расхождение остатка с суммой журнала.
type Drift struct {
	MaterialID   int64           `json:"material_id"`
	Name         string          `json:"name"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	LoggedStock  decimal.Decimal `json:"logged_stock"`
}

func (d Drift) Delta() decimal.Decimal {
	return d.CurrentStock.Sub(d.LoggedStock)
}
