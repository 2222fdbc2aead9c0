package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Spok95/salon-ledger/internal/apperr"
	"github.com/Spok95/salon-ledger/internal/domain/clients"
	"github.com/Spok95/salon-ledger/internal/domain/materials"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	initialStockNote  = "Initial stock"
	resetNote         = "Stock reset to clean value"
	serviceNote       = "Client service deduction"
	reconcileNote     = "Ledger reconciliation"
	defaultTxListSize = 50
)

// Ledger единственное место, где меняется materials.current_stock.
// Каждая операция: одна транзакция, строки материалов под FOR UPDATE.
type Ledger struct {
	pool      *pgxpool.Pool
	log       *slog.Logger
	materials *materials.Repo
	clients   *clients.Repo
	watcher   StockWatcher
}

func NewLedger(pool *pgxpool.Pool, log *slog.Logger, watcher StockWatcher) *Ledger {
	if watcher == nil {
		watcher = Watchers{}
	}
	return &Ledger{
		pool:      pool,
		log:       log,
		materials: materials.NewRepo(pool),
		clients:   clients.NewRepo(pool),
		watcher:   watcher,
	}
}

func (l *Ledger) GetMaterial(ctx context.Context, id int64) (*materials.Material, error) {
	m, err := l.materials.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get material %d: %w", id, err)
	}
	if m == nil {
		return nil, apperr.NotFound("material %d", id)
	}
	return m, nil
}

// CreateMaterial заводит материал; ненулевой стартовый остаток пишется в журнал приходом,
// чтобы журнал сходился с остатком с нуля.
func (l *Ledger) CreateMaterial(ctx context.Context, n materials.NewMaterial) (*materials.Material, error) {
	n = n.Normalize()
	if err := n.Validate(); err != nil {
		return nil, err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m, err := l.materials.CreateTx(ctx, tx, n)
	if err != nil {
		return nil, fmt.Errorf("insert material: %w", err)
	}
	if m.CurrentStock.IsPositive() {
		if err := insertTransaction(ctx, tx, m.ID, Addition, m.CurrentStock, initialStockNote); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	l.log.Info("material created", "material_id", m.ID, "name", m.Name, "stock", m.CurrentStock.String())
	return m, nil
}

// AdjustStock приход, списание или установка точного остатка.
func (l *Ledger) AdjustStock(ctx context.Context, materialID int64, t TransactionType, qty decimal.Decimal, notes string) (StockChange, error) {
	if err := validateAdjustment(t, qty); err != nil {
		return StockChange{}, err
	}
	if notes == "" {
		notes = "Manual " + string(t)
	}
	return l.apply(ctx, materialID, t, qty, notes)
}

// ResetStock административная установка остатка; в журнал идёт как adjustment.
func (l *Ledger) ResetStock(ctx context.Context, materialID int64, value decimal.Decimal, notes string) (StockChange, error) {
	if err := validateQuantity(value); err != nil {
		return StockChange{}, err
	}
	if notes == "" {
		notes = resetNote
	}
	return l.apply(ctx, materialID, Adjustment, value, notes)
}

func (l *Ledger) apply(ctx context.Context, materialID int64, t TransactionType, qty decimal.Decimal, notes string) (StockChange, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return StockChange{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m, err := l.materials.LockTx(ctx, tx, materialID)
	if err != nil {
		return StockChange{}, fmt.Errorf("lock material %d: %w", materialID, err)
	}
	if m == nil {
		return StockChange{}, apperr.NotFound("material %d", materialID)
	}

	ch, err := Apply(m.CurrentStock, t, qty)
	if err != nil {
		return StockChange{}, err
	}
	if err := l.materials.SetStockTx(ctx, tx, materialID, ch.NewStock); err != nil {
		return StockChange{}, fmt.Errorf("update stock of material %d: %w", materialID, err)
	}
	if t == Deduction {
		notes = deductionNote(notes, qty, ch)
	}
	if err := insertTransaction(ctx, tx, materialID, t, ch.QuantityChange, notes); err != nil {
		return StockChange{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return StockChange{}, fmt.Errorf("commit: %w", err)
	}

	l.log.Info("stock adjusted",
		"material_id", materialID,
		"type", t,
		"old", ch.OldStock.String(),
		"new", ch.NewStock.String(),
		"change", ch.QuantityChange.String(),
	)
	l.notifyIfLow(ctx, *m, ch.NewStock)
	return ch, nil
}

// CompleteClientService записывает визит и списывает материалы одной транзакцией:
// либо всё, либо ничего.
func (l *Ledger) CompleteClientService(ctx context.Context, in ServiceInput) (int64, error) {
	in, err := prepareService(in)
	if err != nil {
		return 0, err
	}
	items := in.Items

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := l.clients.ExistsTx(ctx, tx, in.ClientID)
	if err != nil {
		return 0, fmt.Errorf("check client %d: %w", in.ClientID, err)
	}
	if !ok {
		return 0, apperr.NotFound("client %d", in.ClientID)
	}

	locked, err := l.materials.LockManyTx(ctx, tx, sortedIDs(items))
	if err != nil {
		return 0, fmt.Errorf("lock materials: %w", err)
	}
	for _, it := range items {
		if _, ok := locked[it.MaterialID]; !ok {
			return 0, apperr.NotFound("material %d", it.MaterialID)
		}
	}

	svc, err := l.clients.CreateServiceTx(ctx, tx, in.ClientID, in.ServiceType, in.Notes)
	if err != nil {
		return 0, fmt.Errorf("insert client service: %w", err)
	}

	type lowCheck struct {
		before materials.Material
		after  decimal.Decimal
	}
	checks := make([]lowCheck, 0, len(items))
	total := decimal.Zero
	priced := false

	for _, it := range items {
		m := locked[it.MaterialID]
		if err := l.clients.AddServiceMaterialTx(ctx, tx, svc.ID, it.MaterialID, it.Quantity, it.Notes); err != nil {
			return 0, fmt.Errorf("insert service material %d: %w", it.MaterialID, err)
		}
		ch, err := Apply(m.CurrentStock, Deduction, it.Quantity)
		if err != nil {
			return 0, err
		}
		if err := l.materials.SetStockTx(ctx, tx, it.MaterialID, ch.NewStock); err != nil {
			return 0, fmt.Errorf("update stock of material %d: %w", it.MaterialID, err)
		}
		if err := insertTransaction(ctx, tx, it.MaterialID, Deduction, ch.QuantityChange, deductionNote(serviceNote, it.Quantity, ch)); err != nil {
			return 0, err
		}
		if m.CostPerUnit.Valid {
			total = total.Add(m.CostPerUnit.Decimal.Mul(it.Quantity))
			priced = true
		}
		checks = append(checks, lowCheck{before: *m, after: ch.NewStock})
	}

	cost := decimal.NullDecimal{}
	if priced {
		total = total.Round(scale)
		if total.GreaterThan(materials.MaxQuantity) {
			return 0, apperr.Invalid("service total cost %s exceeds %s", total, materials.MaxQuantity)
		}
		cost = decimal.NewNullDecimal(total)
	}
	if err := l.clients.SettleTx(ctx, tx, svc.ID, cost); err != nil {
		return 0, fmt.Errorf("settle client service %d: %w", svc.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	l.log.Info("client service completed",
		"service_id", svc.ID,
		"client_id", in.ClientID,
		"materials", len(items),
	)
	for _, c := range checks {
		l.notifyIfLow(ctx, c.before, c.after)
	}
	return svc.ID, nil
}

// ResetMany выставляет остатки по пересчёту одной транзакцией: неизвестный материал
// или ошибка в любой строке отменяет весь пересчёт.
func (l *Ledger) ResetMany(ctx context.Context, resets []Reset, notes string) ([]StockChange, error) {
	resets, err := normalizeResets(resets)
	if err != nil {
		return nil, err
	}
	if len(resets) == 0 {
		return []StockChange{}, nil
	}
	if notes == "" {
		notes = resetNote
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	locked, err := l.materials.LockManyTx(ctx, tx, resetIDs(resets))
	if err != nil {
		return nil, fmt.Errorf("lock materials: %w", err)
	}
	for _, r := range resets {
		if _, ok := locked[r.MaterialID]; !ok {
			return nil, apperr.NotFound("material %d", r.MaterialID)
		}
	}

	changes := make([]StockChange, 0, len(resets))
	for _, r := range resets {
		m := locked[r.MaterialID]
		ch, err := Apply(m.CurrentStock, Adjustment, r.Stock)
		if err != nil {
			return nil, err
		}
		if err := l.materials.SetStockTx(ctx, tx, r.MaterialID, ch.NewStock); err != nil {
			return nil, fmt.Errorf("update stock of material %d: %w", r.MaterialID, err)
		}
		if err := insertTransaction(ctx, tx, r.MaterialID, Adjustment, ch.QuantityChange, notes); err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	l.log.Info("stock recounted", "materials", len(resets), "notes", notes)
	for i, r := range resets {
		l.notifyIfLow(ctx, *locked[r.MaterialID], changes[i].NewStock)
	}
	return changes, nil
}

// Transactions история движений; materialID == 0 значит по всем материалам.
func (l *Ledger) Transactions(ctx context.Context, materialID int64, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = defaultTxListSize
	}
	q := `
		SELECT it.id, it.material_id, it.transaction_type, it.quantity_change, COALESCE(it.notes,''),
		       it.created_at, m.name, m.unit_type
		FROM inventory_transactions it
		JOIN materials m ON m.id = it.material_id
	`
	args := []any{limit}
	if materialID > 0 {
		q += ` WHERE it.material_id = $2`
		args = append(args, materialID)
	}
	q += ` ORDER BY it.created_at DESC, it.id DESC LIMIT $1`

	rows, err := l.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []Transaction{}
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.MaterialID, &t.Type, &t.QuantityChange, &t.Notes,
			&t.CreatedAt, &t.MaterialName, &t.UnitType); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Reconcile сравнивает остаток с суммой журнала. С fix=true дописывает
// компенсирующую корректировку: фактический остаток считается верным.
func (l *Ledger) Reconcile(ctx context.Context, fix bool) ([]Drift, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if fix {
		// остатки не должны меняться между подсчётом и записью компенсации
		if _, err := tx.Exec(ctx, `SELECT id FROM materials ORDER BY id FOR UPDATE`); err != nil {
			return nil, fmt.Errorf("lock materials: %w", err)
		}
	}

	rows, err := tx.Query(ctx, `
		SELECT m.id, m.name, m.current_stock, COALESCE(SUM(it.quantity_change), 0)
		FROM materials m
		LEFT JOIN inventory_transactions it ON it.material_id = m.id
		GROUP BY m.id
		HAVING m.current_stock <> COALESCE(SUM(it.quantity_change), 0)
		ORDER BY m.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query drift: %w", err)
	}
	drifts := []Drift{}
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.MaterialID, &d.Name, &d.CurrentStock, &d.LoggedStock); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan drift: %w", err)
		}
		drifts = append(drifts, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read drift: %w", err)
	}

	if !fix || len(drifts) == 0 {
		return drifts, nil
	}
	for _, d := range drifts {
		if err := insertTransaction(ctx, tx, d.MaterialID, Adjustment, d.Delta(), reconcileNote); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	l.log.Info("ledger reconciled", "materials", len(drifts))
	return drifts, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, materialID int64, t TransactionType, change decimal.Decimal, notes string) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_transactions (material_id, transaction_type, quantity_change, notes)
		VALUES ($1, $2, $3, NULLIF($4,''))
	`, materialID, string(t), change, notes); err != nil {
		return fmt.Errorf("insert %s transaction for material %d: %w", t, materialID, err)
	}
	return nil
}

func (l *Ledger) notifyIfLow(ctx context.Context, before materials.Material, newStock decimal.Decimal) {
	after := before
	after.CurrentStock = newStock
	if !CrossedLow(before, after) {
		return
	}
	l.log.Warn("material stock is low",
		"material_id", after.ID,
		"name", after.Name,
		"stock", newStock.String(),
		"min", after.MinStockLevel.String(),
	)
	l.watcher.StockLow(ctx, after)
}
