package http

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Spok95/salon-ledger/internal/apperr"
	"github.com/Spok95/salon-ledger/internal/domain/catalog"
	"github.com/Spok95/salon-ledger/internal/domain/clients"
	"github.com/Spok95/salon-ledger/internal/domain/inventory"
	"github.com/Spok95/salon-ledger/internal/domain/materials"
	"github.com/Spok95/salon-ledger/internal/infra/metrics"
	"github.com/Spok95/salon-ledger/internal/report"

	"github.com/shopspring/decimal"
)

type Ledger interface {
	CreateMaterial(ctx context.Context, n materials.NewMaterial) (*materials.Material, error)
	GetMaterial(ctx context.Context, id int64) (*materials.Material, error)
	AdjustStock(ctx context.Context, materialID int64, t inventory.TransactionType, qty decimal.Decimal, notes string) (inventory.StockChange, error)
	ResetStock(ctx context.Context, materialID int64, value decimal.Decimal, notes string) (inventory.StockChange, error)
	ResetMany(ctx context.Context, resets []inventory.Reset, notes string) ([]inventory.StockChange, error)
	CompleteClientService(ctx context.Context, in inventory.ServiceInput) (int64, error)
	Transactions(ctx context.Context, materialID int64, limit int) ([]inventory.Transaction, error)
}

type Materials interface {
	List(ctx context.Context, onlyActive bool) ([]materials.Material, error)
	ListLowStock(ctx context.Context) ([]materials.Material, error)
	Summary(ctx context.Context) (materials.Summary, error)
	SetActive(ctx context.Context, id int64, active bool) (*materials.Material, error)
}

type Clients interface {
	Create(ctx context.Context, n clients.NewClient) (*clients.Client, error)
	GetByID(ctx context.Context, id int64) (*clients.Client, error)
	List(ctx context.Context) ([]clients.Client, error)
	LastService(ctx context.Context, clientID int64) (*clients.Service, error)
}

// API JSON-ручки поверх складского журнала.
type API struct {
	log       *slog.Logger
	ledger    Ledger
	materials Materials
	clients   Clients
	loc       *time.Location
}

func NewAPI(log *slog.Logger, ledger Ledger, materialsRepo Materials, clientsRepo Clients, loc *time.Location) *API {
	if loc == nil {
		loc = time.UTC
	}
	return &API{log: log, ledger: ledger, materials: materialsRepo, clients: clientsRepo, loc: loc}
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/materials", a.listMaterials)
	mux.HandleFunc("POST /api/materials", a.createMaterial)
	mux.HandleFunc("GET /api/materials/low-stock", a.lowStock)
	mux.HandleFunc("GET /api/materials/summary", a.summary)
	mux.HandleFunc("GET /api/materials/export", a.exportStock)
	mux.HandleFunc("POST /api/materials/import", a.importStock)
	mux.HandleFunc("GET /api/materials/{id}", a.getMaterial)
	mux.HandleFunc("DELETE /api/materials/{id}", a.deactivateMaterial)
	mux.HandleFunc("POST /api/materials/{id}/restore", a.restoreMaterial)
	mux.HandleFunc("GET /api/materials/{id}/transactions", a.materialTransactions)
	mux.HandleFunc("POST /api/materials/{id}/adjust", a.adjustStock)
	mux.HandleFunc("POST /api/materials/{id}/reset", a.resetStock)
	mux.HandleFunc("GET /api/transactions", a.allTransactions)

	mux.HandleFunc("GET /api/clients", a.listClients)
	mux.HandleFunc("POST /api/clients", a.createClient)
	mux.HandleFunc("GET /api/clients/{id}/last-service", a.lastService)
	mux.HandleFunc("POST /api/client-services", a.completeService)

	mux.HandleFunc("GET /api/catalog", a.listCatalog)
}

/* Materials */

func (a *API) listMaterials(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("all") != "true"
	list, err := a.materials.List(r.Context(), onlyActive)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch materials")
		return
	}
	if list == nil {
		list = []materials.Material{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createMaterial(w http.ResponseWriter, r *http.Request) {
	var in materials.NewMaterial
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err, "Failed to create material")
		return
	}
	m, err := a.ledger.CreateMaterial(r.Context(), in)
	if err != nil {
		a.fail(w, r, err, "Failed to create material")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) getMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch material")
		return
	}
	m, err := a.ledger.GetMaterial(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch material")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// deactivateMaterial мягкое удаление: материал пропадает из списков, журнал остаётся.
func (a *API) deactivateMaterial(w http.ResponseWriter, r *http.Request) {
	a.setActive(w, r, false)
}

func (a *API) restoreMaterial(w http.ResponseWriter, r *http.Request) {
	a.setActive(w, r, true)
}

func (a *API) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err, "Failed to update material")
		return
	}
	m, err := a.materials.SetActive(r.Context(), id, active)
	if err != nil {
		a.fail(w, r, err, "Failed to update material")
		return
	}
	if m == nil {
		a.fail(w, r, apperr.NotFound("material %d", id), "Failed to update material")
		return
	}
	a.log.Info("material active flag changed", "material_id", id, "active", active)
	writeJSON(w, http.StatusOK, m)
}

func (a *API) lowStock(w http.ResponseWriter, r *http.Request) {
	list, err := a.materials.ListLowStock(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to fetch low stock materials")
		return
	}
	if list == nil {
		list = []materials.Material{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	s, err := a.materials.Summary(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to fetch stock summary")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type adjustRequest struct {
	AdjustmentType inventory.TransactionType `json:"adjustment_type"`
	Quantity       *decimal.Decimal          `json:"quantity"`
	Notes          string                    `json:"notes"`
}

type stockChangeResponse struct {
	Message string `json:"message"`
	inventory.StockChange
}

func (a *API) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err, "Failed to adjust stock")
		return
	}
	var req adjustRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err, "Failed to adjust stock")
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity provided")
		return
	}
	ch, err := a.ledger.AdjustStock(r.Context(), id, req.AdjustmentType, *req.Quantity, req.Notes)
	if err != nil {
		a.fail(w, r, err, "Failed to adjust stock")
		return
	}
	metrics.StockAdjustments.WithLabelValues(string(req.AdjustmentType)).Inc()
	writeJSON(w, http.StatusOK, stockChangeResponse{Message: "Stock adjusted successfully", StockChange: ch})
}

type resetRequest struct {
	Stock *decimal.Decimal `json:"stock"`
	Notes string           `json:"notes"`
}

func (a *API) resetStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err, "Failed to reset stock")
		return
	}
	var req resetRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err, "Failed to reset stock")
		return
	}
	if req.Stock == nil {
		writeError(w, http.StatusBadRequest, "Valid stock amount is required")
		return
	}
	ch, err := a.ledger.ResetStock(r.Context(), id, *req.Stock, req.Notes)
	if err != nil {
		a.fail(w, r, err, "Failed to reset stock")
		return
	}
	metrics.StockAdjustments.WithLabelValues(string(inventory.Adjustment)).Inc()
	writeJSON(w, http.StatusOK, stockChangeResponse{Message: "Stock reset successfully", StockChange: ch})
}

func (a *API) materialTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch transactions")
		return
	}
	if _, err := a.ledger.GetMaterial(r.Context(), id); err != nil {
		a.fail(w, r, err, "Failed to fetch transactions")
		return
	}
	a.transactions(w, r, id)
}

func (a *API) allTransactions(w http.ResponseWriter, r *http.Request) {
	a.transactions(w, r, 0)
}

func (a *API) transactions(w http.ResponseWriter, r *http.Request, materialID int64) {
	limit, err := queryLimit(r)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch transactions")
		return
	}
	list, err := a.ledger.Transactions(r.Context(), materialID, limit)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch transactions")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) exportStock(w http.ResponseWriter, r *http.Request) {
	list, err := a.materials.List(r.Context(), true)
	if err != nil {
		a.fail(w, r, err, "Failed to export stock")
		return
	}
	now := time.Now().In(a.loc)
	var buf bytes.Buffer
	if err := report.WriteStock(&buf, list, now); err != nil {
		a.fail(w, r, err, "Failed to export stock")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="stock_%s.xlsx"`, now.Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) importStock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10*maxBodyBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "xlsx file is required in form field \"file\"")
		return
	}
	defer func() { _ = file.Close() }()

	res, err := report.ImportStockCounts(r.Context(), file, a.ledger)
	if err != nil {
		a.fail(w, r, err, "Failed to import stock counts")
		return
	}
	if res.Changed > 0 {
		metrics.StockAdjustments.WithLabelValues(string(inventory.Adjustment)).Add(float64(res.Changed))
	}
	writeJSON(w, http.StatusOK, res)
}

/* Clients */

func (a *API) listClients(w http.ResponseWriter, r *http.Request) {
	list, err := a.clients.List(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to fetch clients")
		return
	}
	if list == nil {
		list = []clients.Client{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createClient(w http.ResponseWriter, r *http.Request) {
	var in clients.NewClient
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err, "Failed to create client")
		return
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		a.fail(w, r, err, "Failed to create client")
		return
	}
	c, err := a.clients.Create(r.Context(), in)
	if err != nil {
		a.fail(w, r, err, "Failed to create client")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) lastService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch last service")
		return
	}
	c, err := a.clients.GetByID(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch last service")
		return
	}
	if c == nil {
		a.fail(w, r, apperr.NotFound("client %d", id), "Failed to fetch last service")
		return
	}
	s, err := a.clients.LastService(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch last service")
		return
	}
	// null, если визитов ещё не было
	writeJSON(w, http.StatusOK, s)
}

type serviceResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

func (a *API) completeService(w http.ResponseWriter, r *http.Request) {
	var in inventory.ServiceInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err, "Failed to complete service")
		return
	}
	id, err := a.ledger.CompleteClientService(r.Context(), in)
	if err != nil {
		a.fail(w, r, err, "Failed to complete service")
		return
	}
	metrics.ClientServices.Inc()
	writeJSON(w, http.StatusCreated, serviceResponse{ID: id, Message: "Service completed and inventory updated"})
}

/* Catalog */

type catalogResponse struct {
	Categories   []catalog.Category `json:"categories"`
	UnitTypes    []catalog.Unit     `json:"unit_types"`
	ServiceTypes []string           `json:"service_types"`
}

func (a *API) listCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalogResponse{
		Categories:   catalog.Categories,
		UnitTypes:    catalog.Units,
		ServiceTypes: catalog.ServiceTypes,
	})
}
