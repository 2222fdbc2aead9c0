package materials

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const selectColumns = `
	SELECT id, name, COALESCE(brand,''), COALESCE(color,''), COALESCE(category,''), unit_type,
	       current_stock, min_stock_level, cost_per_unit, COALESCE(supplier,''), COALESCE(notes,''),
	       is_active, created_at, updated_at
	FROM materials
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (*Material, error) {
	var m Material
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Brand,
		&m.Color,
		&m.Category,
		&m.UnitType,
		&m.CurrentStock,
		&m.MinStockLevel,
		&m.CostPerUnit,
		&m.Supplier,
		&m.Notes,
		&m.Active,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func collect(rows pgx.Rows) ([]Material, error) {
	defer rows.Close()
	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Material, error) {
	m, err := scanMaterial(r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *Repo) List(ctx context.Context, onlyActive bool) ([]Material, error) {
	q := selectColumns
	if onlyActive {
		q += " WHERE is_active = TRUE"
	}
	q += " ORDER BY name, id"

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListLowStock активные материалы с остатком <= минимума, самые «пустые» первыми.
func (r *Repo) ListLowStock(ctx context.Context) ([]Material, error) {
	rows, err := r.pool.Query(ctx, selectColumns+`
		WHERE is_active = TRUE AND current_stock <= min_stock_level
		ORDER BY current_stock / NULLIF(min_stock_level, 0) ASC NULLS FIRST, name
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE current_stock <= min_stock_level),
		       COALESCE(SUM(current_stock * COALESCE(cost_per_unit, 0)), 0)
		FROM materials
		WHERE is_active = TRUE
	`).Scan(&s.TotalMaterials, &s.LowStockCount, &s.TotalValue)
	if err != nil {
		return Summary{}, err
	}
	s.TotalValue = s.TotalValue.Round(2)
	return s, nil
}

func (r *Repo) SetActive(ctx context.Context, id int64, active bool) (*Material, error) {
	m, err := scanMaterial(r.pool.QueryRow(ctx, `
		UPDATE materials SET is_active = $2, updated_at = now() WHERE id = $1
		RETURNING id, name, COALESCE(brand,''), COALESCE(color,''), COALESCE(category,''), unit_type,
		          current_stock, min_stock_level, cost_per_unit, COALESCE(supplier,''), COALESCE(notes,''),
		          is_active, created_at, updated_at
	`, id, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

/* Операции внутри транзакции: остаток меняет только складской журнал (inventory). */

// CreateTx вставляет материал; n должен быть нормализован и проверен.
func (r *Repo) CreateTx(ctx context.Context, tx pgx.Tx, n NewMaterial) (*Material, error) {
	return scanMaterial(tx.QueryRow(ctx, `
		INSERT INTO materials (
			name, brand, color, category, unit_type,
			current_stock, min_stock_level, cost_per_unit,
			supplier, notes, is_active
		) VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), $5, $6, $7, $8, NULLIF($9,''), NULLIF($10,''), $11)
		RETURNING id, name, COALESCE(brand,''), COALESCE(color,''), COALESCE(category,''), unit_type,
		          current_stock, min_stock_level, cost_per_unit, COALESCE(supplier,''), COALESCE(notes,''),
		          is_active, created_at, updated_at
	`,
		n.Name, n.Brand, n.Color, string(n.Category), string(n.UnitType),
		n.CurrentStock, n.MinStockLevel, n.CostPerUnit,
		n.Supplier, n.Notes, *n.Active,
	))
}

// LockTx читает материал с блокировкой строки (nil, nil если нет).
func (r *Repo) LockTx(ctx context.Context, tx pgx.Tx, id int64) (*Material, error) {
	m, err := scanMaterial(tx.QueryRow(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// LockManyTx блокирует материалы в порядке id, чтобы параллельные списания не ловили deadlock.
// Отсутствующих id в результате нет.
func (r *Repo) LockManyTx(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]*Material, error) {
	rows, err := tx.Query(ctx, selectColumns+` WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	list, err := collect(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*Material, len(list))
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

func (r *Repo) SetStockTx(ctx context.Context, tx pgx.Tx, id int64, stock decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
		UPDATE materials
		SET current_stock = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, stock)
	return err
}
