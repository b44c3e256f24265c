package scope

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for scope items.
type Repository interface {
	Create(ctx context.Context, item Item) (Item, error)
	Get(ctx context.Context, id uuid.UUID) (Item, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]Item, error)
	Update(ctx context.Context, item Item) error
	NextItemNo(ctx context.Context, projectID uuid.UUID) (int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const itemColumns = `id, project_id, item_no, description, quantity, unit, unit_price, total_price, created_by, created_at, updated_at`

// Create inserts a scope item row.
func (r *PGRepository) Create(ctx context.Context, item Item) (Item, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `INSERT INTO scope_items (id, project_id, item_no, description, quantity, unit, unit_price, total_price, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10) RETURNING `+itemColumns,
		item.ID, item.ProjectID, item.ItemNo, item.Description, item.Quantity, item.Unit, item.UnitPrice, item.TotalPrice, item.CreatedBy, now)
	return scanItem(row)
}

// Get fetches a scope item by ID.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM scope_items WHERE id=$1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// ListByProject returns the project's scope items ordered by item number.
func (r *PGRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM scope_items WHERE project_id=$1 ORDER BY item_no`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update rewrites the mutable fields of a scope item.
func (r *PGRepository) Update(ctx context.Context, item Item) error {
	tag, err := r.pool.Exec(ctx, `UPDATE scope_items
SET description=$2, quantity=$3, unit=$4, unit_price=$5, total_price=$6, updated_at=NOW()
WHERE id=$1`, item.ID, item.Description, item.Quantity, item.Unit, item.UnitPrice, item.TotalPrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// NextItemNo returns the next sequential item number within the project.
func (r *PGRepository) NextItemNo(ctx context.Context, projectID uuid.UUID) (int, error) {
	var next int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(item_no), 0) + 1 FROM scope_items WHERE project_id=$1`, projectID).Scan(&next)
	return next, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.ProjectID, &item.ItemNo, &item.Description, &item.Quantity, &item.Unit,
		&item.UnitPrice, &item.TotalPrice, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

var _ Repository = (*PGRepository)(nil)
