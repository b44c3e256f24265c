package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for purchase orders.
type Repository interface {
	Create(ctx context.Context, order Order) (Order, error)
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, approvedBy *int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const orderColumns = `id, project_id, po_number, supplier_name, description, currency, total_amount, status, created_by, approved_by, created_at, updated_at`

// Create inserts the order and its lines in one transaction.
func (r *PGRepository) Create(ctx context.Context, order Order) (Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	row := tx.QueryRow(ctx, `INSERT INTO purchase_orders (id, project_id, po_number, supplier_name, description, currency, total_amount, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10) RETURNING `+orderColumns,
		order.ID, order.ProjectID, order.PONumber, order.SupplierName, order.Description,
		order.Currency, order.TotalAmount, string(order.Status), order.CreatedBy, now)
	created, err := scanOrder(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Order{}, ErrDuplicateNumber
		}
		return Order{}, err
	}
	for _, line := range order.Lines {
		var id int64
		err := tx.QueryRow(ctx, `INSERT INTO purchase_order_lines (order_id, description, quantity, unit_price, total_price)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			created.ID, line.Description, line.Quantity, line.UnitPrice, line.TotalPrice).Scan(&id)
		if err != nil {
			return Order{}, err
		}
		line.ID = id
		line.OrderID = created.ID
		created.Lines = append(created.Lines, line)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return created, nil
}

// Get fetches an order with its lines.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	lines, err := r.lines(ctx, id)
	if err != nil {
		return Order{}, err
	}
	order.Lines = lines
	return order, nil
}

// ListByProject returns the project's orders, newest first, with lines.
func (r *PGRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE project_id=$1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		lines, err := r.lines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

// UpdateStatus transitions the order status and stamps the approver.
func (r *PGRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, approvedBy *int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE purchase_orders SET status=$2, approved_by=COALESCE($3, approved_by), updated_at=NOW() WHERE id=$1`,
		id, string(status), approvedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) lines(ctx context.Context, orderID uuid.UUID) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, description, quantity, unit_price, total_price
FROM purchase_order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.OrderID, &line.Description, &line.Quantity, &line.UnitPrice, &line.TotalPrice); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.ProjectID, &o.PONumber, &o.SupplierName, &o.Description, &o.Currency,
		&o.TotalAmount, &status, &o.CreatedBy, &o.ApprovedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

var _ Repository = (*PGRepository)(nil)
