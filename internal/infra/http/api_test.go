package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Spok95/salon-ledger/internal/apperr"
	"github.com/Spok95/salon-ledger/internal/domain/clients"
	"github.com/Spok95/salon-ledger/internal/domain/inventory"
	"github.com/Spok95/salon-ledger/internal/domain/materials"
	"github.com/Spok95/salon-ledger/internal/report"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeLedger struct {
	mats     map[int64]*materials.Material
	services []inventory.ServiceInput
	resets   map[int64]decimal.Decimal
	adjustT  inventory.TransactionType
	txLimit  int
	txMatID  int64
	failWith error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		mats: map[int64]*materials.Material{
			1: {ID: 1, Name: "Гель-лак", CurrentStock: decimal.NewFromInt(10), MinStockLevel: decimal.NewFromInt(2), UnitType: "ml", Active: true},
		},
		resets: map[int64]decimal.Decimal{},
	}
}

func (f *fakeLedger) CreateMaterial(_ context.Context, n materials.NewMaterial) (*materials.Material, error) {
	n = n.Normalize()
	if err := n.Validate(); err != nil {
		return nil, err
	}
	m := &materials.Material{ID: int64(len(f.mats) + 1), Name: n.Name, UnitType: n.UnitType, CurrentStock: n.CurrentStock}
	f.mats[m.ID] = m
	return m, nil
}

func (f *fakeLedger) GetMaterial(_ context.Context, id int64) (*materials.Material, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	m, ok := f.mats[id]
	if !ok {
		return nil, apperr.NotFound("material %d", id)
	}
	return m, nil
}

func (f *fakeLedger) AdjustStock(_ context.Context, id int64, t inventory.TransactionType, qty decimal.Decimal, _ string) (inventory.StockChange, error) {
	m, ok := f.mats[id]
	if !ok {
		return inventory.StockChange{}, apperr.NotFound("material %d", id)
	}
	ch, err := inventory.Apply(m.CurrentStock, t, qty)
	if err != nil {
		return ch, err
	}
	f.adjustT = t
	m.CurrentStock = ch.NewStock
	return ch, nil
}

func (f *fakeLedger) ResetStock(ctx context.Context, id int64, value decimal.Decimal, notes string) (inventory.StockChange, error) {
	ch, err := f.AdjustStock(ctx, id, inventory.Adjustment, value, notes)
	if err == nil {
		f.resets[id] = value
	}
	return ch, err
}

func (f *fakeLedger) ResetMany(ctx context.Context, resets []inventory.Reset, notes string) ([]inventory.StockChange, error) {
	for _, r := range resets {
		if _, ok := f.mats[r.MaterialID]; !ok {
			return nil, apperr.NotFound("material %d", r.MaterialID)
		}
	}
	out := make([]inventory.StockChange, 0, len(resets))
	for _, r := range resets {
		ch, err := f.ResetStock(ctx, r.MaterialID, r.Stock, notes)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

func (f *fakeLedger) CompleteClientService(_ context.Context, in inventory.ServiceInput) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	if in.ClientID <= 0 {
		return 0, apperr.Invalid("client id is required")
	}
	f.services = append(f.services, in)
	return int64(len(f.services)), nil
}

func (f *fakeLedger) Transactions(_ context.Context, materialID int64, limit int) ([]inventory.Transaction, error) {
	f.txMatID, f.txLimit = materialID, limit
	return []inventory.Transaction{}, nil
}

type fakeMaterials struct {
	list []materials.Material
	err  error
}

func (f *fakeMaterials) SetActive(_ context.Context, id int64, active bool) (*materials.Material, error) {
	for i := range f.list {
		if f.list[i].ID == id {
			f.list[i].Active = active
			m := f.list[i]
			return &m, f.err
		}
	}
	return nil, f.err
}

func (f *fakeMaterials) List(context.Context, bool) ([]materials.Material, error) { return f.list, f.err }

func (f *fakeMaterials) ListLowStock(context.Context) ([]materials.Material, error) {
	var out []materials.Material
	for _, m := range f.list {
		if m.LowStock() {
			out = append(out, m)
		}
	}
	return out, f.err
}

func (f *fakeMaterials) Summary(context.Context) (materials.Summary, error) {
	return materials.Summary{TotalMaterials: int64(len(f.list))}, f.err
}

type fakeClients struct {
	byID map[int64]*clients.Client
	last map[int64]*clients.Service
}

func (f *fakeClients) Create(_ context.Context, n clients.NewClient) (*clients.Client, error) {
	c := &clients.Client{ID: int64(len(f.byID) + 1), Name: n.Name, Phone: n.Phone}
	f.byID[c.ID] = c
	return c, nil
}

func (f *fakeClients) GetByID(_ context.Context, id int64) (*clients.Client, error) {
	return f.byID[id], nil
}

func (f *fakeClients) List(context.Context) ([]clients.Client, error) { return nil, nil }

func (f *fakeClients) LastService(_ context.Context, id int64) (*clients.Service, error) {
	return f.last[id], nil
}

type env struct {
	h      http.Handler
	ledger *fakeLedger
	mats   *fakeMaterials
	cls    *fakeClients
}

func newEnv() env {
	e := env{
		ledger: newFakeLedger(),
		mats:   &fakeMaterials{},
		cls: &fakeClients{
			byID: map[int64]*clients.Client{7: {ID: 7, Name: "Анна"}},
			last: map[int64]*clients.Service{},
		},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := NewAPI(log, e.ledger, e.mats, e.cls, time.UTC)
	e.h = New(":0", api, false).srv.Handler
	return e
}

func (e env) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var m apperr.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m.Error
}

func TestHealth(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAdjustStock(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodPost, "/api/materials/1/adjust", `{"adjustment_type":"deduction","quantity":3,"notes":"окрашивание"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Message        string          `json:"message"`
		OldStock       decimal.Decimal `json:"old_stock"`
		NewStock       decimal.Decimal `json:"new_stock"`
		QuantityChange decimal.Decimal `json:"quantity_change"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Stock adjusted successfully", resp.Message)
	assert.True(t, resp.OldStock.Equal(decimal.NewFromInt(10)))
	assert.True(t, resp.NewStock.Equal(decimal.NewFromInt(7)))
	assert.True(t, resp.QuantityChange.Equal(decimal.NewFromInt(-3)))
	assert.Equal(t, inventory.Deduction, e.ledger.adjustT)
}

func TestAdjustStock_BadRequests(t *testing.T) {
	cases := []struct {
		name string
		path string
		body string
		code int
	}{
		{"missing quantity", "/api/materials/1/adjust", `{"adjustment_type":"addition"}`, http.StatusBadRequest},
		{"negative quantity", "/api/materials/1/adjust", `{"adjustment_type":"addition","quantity":-1}`, http.StatusBadRequest},
		{"unknown type", "/api/materials/1/adjust", `{"adjustment_type":"refund","quantity":1}`, http.StatusBadRequest},
		{"malformed json", "/api/materials/1/adjust", `{`, http.StatusBadRequest},
		{"bad id", "/api/materials/abc/adjust", `{"adjustment_type":"addition","quantity":1}`, http.StatusBadRequest},
		{"unknown material", "/api/materials/99/adjust", `{"adjustment_type":"addition","quantity":1}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv()
			rec := e.do(http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.code, rec.Code)
			assert.NotEmpty(t, errorOf(t, rec))
			assert.True(t, e.ledger.mats[1].CurrentStock.Equal(decimal.NewFromInt(10)))
		})
	}
}

func TestResetStock(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodPost, "/api/materials/1/reset", `{"stock":4.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, e.ledger.resets[1].Equal(decimal.RequireFromString("4.5")))

	rec = e.do(http.MethodPost, "/api/materials/1/reset", `{"notes":"пересчёт"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Valid stock amount is required", errorOf(t, rec))
}

func TestCreateMaterial(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodPost, "/api/materials", `{"name":"  Шампунь ","unit_type":"ml","current_stock":500}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var m materials.Material
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "Шампунь", m.Name)

	rec = e.do(http.MethodPost, "/api/materials", `{"unit_type":"ml"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMaterial(t *testing.T) {
	e := newEnv()
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/materials/1", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/materials/2", "").Code)
}

func TestInternalErrorHidesDetails(t *testing.T) {
	e := newEnv()
	e.ledger.failWith = errors.New("pool exhausted")

	rec := e.do(http.MethodGet, "/api/materials/1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch material", errorOf(t, rec))
}

func TestListsReturnEmptyArrays(t *testing.T) {
	e := newEnv()
	for _, path := range []string{"/api/materials", "/api/materials/low-stock", "/api/clients"} {
		rec := e.do(http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, "[]", rec.Body.String(), path)
	}
}

func TestLowStock(t *testing.T) {
	e := newEnv()
	e.mats.list = []materials.Material{
		{ID: 1, Name: "A", CurrentStock: decimal.NewFromInt(1), MinStockLevel: decimal.NewFromInt(2)},
		{ID: 2, Name: "B", CurrentStock: decimal.NewFromInt(5), MinStockLevel: decimal.NewFromInt(2)},
	}
	rec := e.do(http.MethodGet, "/api/materials/low-stock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []materials.Material
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].ID)
}

func TestTransactions(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodGet, "/api/materials/1/transactions?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), e.ledger.txMatID)
	assert.Equal(t, 5, e.ledger.txLimit)

	rec = e.do(http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), e.ledger.txMatID)
	assert.Equal(t, 0, e.ledger.txLimit)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/transactions?limit=x", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/materials/42/transactions", "").Code)
}

func TestCompleteClientService(t *testing.T) {
	e := newEnv()

	body := `{"client_id":7,"service_type":"Окрашивание","materials":[{"material_id":1,"quantity_used":30}]}`
	rec := e.do(http.MethodPost, "/api/client-services", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp serviceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ID)
	require.Len(t, e.ledger.services, 1)
	in := e.ledger.services[0]
	assert.Equal(t, int64(7), in.ClientID)
	require.Len(t, in.Items, 1)
	assert.True(t, in.Items[0].Quantity.Equal(decimal.NewFromInt(30)))

	rec = e.do(http.MethodPost, "/api/client-services", `{"materials":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClients(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodPost, "/api/clients", `{"name":" Мария ","phone":"+7 900 000-00-00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c clients.Client
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, "Мария", c.Name)

	rec = e.do(http.MethodPost, "/api/clients", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLastService(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodGet, "/api/clients/7/last-service", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	e.cls.last[7] = &clients.Service{ID: 3, ClientID: 7, ServiceType: "Стрижка", MaterialsDeducted: true}
	rec = e.do(http.MethodGet, "/api/clients/7/last-service", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var s clients.Service
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, int64(3), s.ID)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/clients/8/last-service", "").Code)
}

func TestExportImportStock(t *testing.T) {
	e := newEnv()
	e.mats.list = []materials.Material{*e.ledger.mats[1]}

	rec := e.do(http.MethodGet, "/api/materials/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "stock_")
	rows, err := report.ReadStockCounts(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, rows)

	rec = e.upload(t, []materials.Material{*e.ledger.mats[1]}, "6")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res report.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, report.ImportResult{Rows: 1, Changed: 1}, res)
	assert.True(t, e.ledger.mats[1].CurrentStock.Equal(decimal.NewFromInt(6)))
}

func TestImportStock_NoFile(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodPost, "/api/materials/import", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportStock_UnknownMaterialOnLastRow(t *testing.T) {
	e := newEnv()
	gone := materials.Material{ID: 99, Name: "Снят с продажи", UnitType: "ml"}

	rec := e.upload(t, []materials.Material{*e.ledger.mats[1], gone}, "5", "7")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, errorOf(t, rec), "material 99")
	assert.True(t, e.ledger.mats[1].CurrentStock.Equal(decimal.NewFromInt(10)))
	assert.Empty(t, e.ledger.resets)
}

func TestDeactivateAndRestoreMaterial(t *testing.T) {
	e := newEnv()
	e.mats.list = []materials.Material{{ID: 1, Name: "Гель-лак", UnitType: "ml", Active: true}}

	rec := e.do(http.MethodDelete, "/api/materials/1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var m materials.Material
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.False(t, m.Active)
	assert.False(t, e.mats.list[0].Active)

	rec = e.do(http.MethodPost, "/api/materials/1/restore", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, e.mats.list[0].Active)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/api/materials/5", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodDelete, "/api/materials/x", "").Code)
}

func TestCatalog(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodGet, "/api/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var c struct {
		Categories   []string `json:"categories"`
		UnitTypes    []string `json:"unit_types"`
		ServiceTypes []string `json:"service_types"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Contains(t, c.Categories, "color_polish")
	assert.Contains(t, c.UnitTypes, "ml")
	assert.Contains(t, c.ServiceTypes, "Gel Manicure")
}

func TestAdjustStock_OverColumnLimit(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodPost, "/api/materials/1/adjust", `{"adjustment_type":"addition","quantity":100000000000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec), "exceeds")
	assert.True(t, e.ledger.mats[1].CurrentStock.Equal(decimal.NewFromInt(10)))
}

// upload отправляет выгрузку с проставленными counted_stock (по строке на материал).
func (e env) upload(t *testing.T, list []materials.Material, counted ...string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "stock.xlsx")
	require.NoError(t, err)
	require.NoError(t, writeCounted(part, list, counted))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/materials/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

// writeCounted выгружает материалы и проставляет counted_stock, как при инвентаризации.
func writeCounted(w io.Writer, list []materials.Material, counted []string) error {
	var buf bytes.Buffer
	if err := report.WriteStock(&buf, list, time.Now()); err != nil {
		return err
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	for i, v := range counted {
		if err := f.SetCellValue(report.SheetName, fmt.Sprintf("I%d", i+2), v); err != nil {
			return err
		}
	}
	_, err = f.WriteTo(w)
	return err
}
