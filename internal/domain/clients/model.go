package clients

import (
	"strings"
	"time"

	"github.com/Spok95/salon-ledger/internal/apperr"

	"github.com/shopspring/decimal"
)

type Client struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone,omitempty"`
	Email         string     `json:"email,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	LastVisitDate *time.Time `json:"last_visit_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type NewClient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

func (n NewClient) Normalize() NewClient {
	n.Name = strings.TrimSpace(n.Name)
	n.Phone = strings.TrimSpace(n.Phone)
	n.Email = strings.TrimSpace(n.Email)
	n.Notes = strings.TrimSpace(n.Notes)
	return n
}

func (n NewClient) Validate() error {
	if n.Name == "" {
		return apperr.Invalid("name is required")
	}
	return nil
}

// Service визит клиента. MaterialsDeducted выставляется один раз, после списания.
type Service struct {
	ID                int64               `json:"id"`
	ClientID          int64               `json:"client_id"`
	ServiceDate       time.Time           `json:"service_date"`
	ServiceType       string              `json:"service_type,omitempty"`
	Notes             string              `json:"notes,omitempty"`
	TotalCost         decimal.NullDecimal `json:"total_cost"`
	MaterialsDeducted bool                `json:"materials_deducted"`
	CreatedAt         time.Time           `json:"created_at"`
	Materials         []ServiceMaterial   `json:"materials"`
}

// ServiceMaterial позиция визита; поля Material* приходят из join с materials.
type ServiceMaterial struct {
	ID              int64           `json:"id"`
	ClientServiceID int64           `json:"client_service_id"`
	MaterialID      int64           `json:"material_id"`
	QuantityUsed    decimal.Decimal `json:"quantity_used"`
	Notes           string          `json:"notes,omitempty"`
	MaterialName    string          `json:"material_name"`
	MaterialBrand   string          `json:"material_brand,omitempty"`
	MaterialColor   string          `json:"material_color,omitempty"`
	UnitType        string          `json:"unit_type"`
}
