package documents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for documents.
type Repository interface {
	Create(ctx context.Context, doc Document) (Document, error)
	Get(ctx context.Context, id uuid.UUID) (Document, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, clientVisibleOnly bool) ([]Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, reviewedBy *int64) error
	SetClientVisible(ctx context.Context, id uuid.UUID, visible bool) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const docColumns = `id, project_id, title, kind, storage_path, version, status, client_visible, uploaded_by, reviewed_by, created_at, updated_at`

// Create inserts a document row, versioned per (project, title).
func (r *PGRepository) Create(ctx context.Context, doc Document) (Document, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `INSERT INTO documents (id, project_id, title, kind, storage_path, version, status, client_visible, uploaded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5,
    (SELECT COALESCE(MAX(version), 0) + 1 FROM documents WHERE project_id=$2 AND title=$3),
    $6, $7, $8, $9, $9) RETURNING `+docColumns,
		doc.ID, doc.ProjectID, doc.Title, doc.Kind, doc.StoragePath, string(doc.Status), doc.ClientVisible, doc.UploadedBy, now)
	return scanDocument(row)
}

// Get fetches a document by ID.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+docColumns+` FROM documents WHERE id=$1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListByProject returns project documents, optionally narrowed to the
// approved client-visible subset.
func (r *PGRepository) ListByProject(ctx context.Context, projectID uuid.UUID, clientVisibleOnly bool) ([]Document, error) {
	query := `SELECT ` + docColumns + ` FROM documents WHERE project_id=$1 ORDER BY title, version DESC`
	if clientVisibleOnly {
		query = `SELECT ` + docColumns + ` FROM documents WHERE project_id=$1 AND client_visible AND status='APPROVED' ORDER BY title, version DESC`
	}
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateStatus transitions the workflow status and stamps the reviewer.
func (r *PGRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, reviewedBy *int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE documents SET status=$2, reviewed_by=COALESCE($3, reviewed_by), updated_at=NOW() WHERE id=$1`,
		id, string(status), reviewedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetClientVisible flips the client visibility flag.
func (r *PGRepository) SetClientVisible(ctx context.Context, id uuid.UUID, visible bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE documents SET client_visible=$2, updated_at=NOW() WHERE id=$1`, id, visible)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	var status string
	err := row.Scan(&d.ID, &d.ProjectID, &d.Title, &d.Kind, &d.StoragePath, &d.Version, &status,
		&d.ClientVisible, &d.UploadedBy, &d.ReviewedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	d.Status = Status(status)
	return d, nil
}

var _ Repository = (*PGRepository)(nil)
