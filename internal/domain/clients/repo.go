package clients

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrAlreadySettled = errors.New("clients: service already settled")

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const clientColumns = `id, name, COALESCE(phone,''), COALESCE(email,''), COALESCE(notes,''), last_visit_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*Client, error) {
	var c Client
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Notes, &c.LastVisitDate, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) Create(ctx context.Context, n NewClient) (*Client, error) {
	return scanClient(r.pool.QueryRow(ctx, `
		INSERT INTO clients (name, phone, email, notes)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''))
		RETURNING `+clientColumns,
		n.Name, n.Phone, n.Email, n.Notes,
	))
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// List недавние визиты первыми, клиенты без визитов в конце.
func (r *Repo) List(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		ORDER BY last_visit_date DESC NULLS LAST, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// LastService последний визит с материалами; nil, nil если визитов нет.
func (r *Repo) LastService(ctx context.Context, clientID int64) (*Service, error) {
	var s Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, service_date, COALESCE(service_type,''), COALESCE(notes,''),
		       total_cost, materials_deducted, created_at
		FROM client_services
		WHERE client_id = $1
		ORDER BY service_date DESC, id DESC
		LIMIT 1
	`, clientID).Scan(&s.ID, &s.ClientID, &s.ServiceDate, &s.ServiceType, &s.Notes,
		&s.TotalCost, &s.MaterialsDeducted, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT csm.id, csm.client_service_id, csm.material_id, csm.quantity_used, COALESCE(csm.notes,''),
		       m.name, COALESCE(m.brand,''), COALESCE(m.color,''), m.unit_type
		FROM client_service_materials csm
		JOIN materials m ON m.id = csm.material_id
		WHERE csm.client_service_id = $1
		ORDER BY csm.id
	`, s.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s.Materials = []ServiceMaterial{}
	for rows.Next() {
		var sm ServiceMaterial
		if err := rows.Scan(&sm.ID, &sm.ClientServiceID, &sm.MaterialID, &sm.QuantityUsed, &sm.Notes,
			&sm.MaterialName, &sm.MaterialBrand, &sm.MaterialColor, &sm.UnitType); err != nil {
			return nil, err
		}
		s.Materials = append(s.Materials, sm)
	}
	return &s, rows.Err()
}

/* Запись визита идёт в транзакции складского журнала. */

func (r *Repo) ExistsTx(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	var ok bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// CreateServiceTx вставляет визит; last_visit_date клиента обновляет триггер.
func (r *Repo) CreateServiceTx(ctx context.Context, tx pgx.Tx, clientID int64, serviceType, notes string) (*Service, error) {
	var s Service
	err := tx.QueryRow(ctx, `
		INSERT INTO client_services (client_id, service_type, notes)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''))
		RETURNING id, client_id, service_date, COALESCE(service_type,''), COALESCE(notes,''),
		          total_cost, materials_deducted, created_at
	`, clientID, serviceType, notes).Scan(&s.ID, &s.ClientID, &s.ServiceDate, &s.ServiceType, &s.Notes,
		&s.TotalCost, &s.MaterialsDeducted, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) AddServiceMaterialTx(ctx context.Context, tx pgx.Tx, serviceID, materialID int64, qty decimal.Decimal, notes string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO client_service_materials (client_service_id, material_id, quantity_used, notes)
		VALUES ($1, $2, $3, NULLIF($4,''))
	`, serviceID, materialID, qty, notes)
	return err
}

// SettleTx отмечает визит как списанный; повторно не срабатывает.
func (r *Repo) SettleTx(ctx context.Context, tx pgx.Tx, serviceID int64, totalCost decimal.NullDecimal) error {
	tag, err := tx.Exec(ctx, `
		UPDATE client_services
		SET materials_deducted = TRUE,
		    total_cost = $2
		WHERE id = $1 AND materials_deducted = FALSE
	`, serviceID, totalCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadySettled
	}
	return nil
}
