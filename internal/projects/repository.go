package projects

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for the projects module.
type Repository interface {
	Create(ctx context.Context, project Project) (Project, error)
	Get(ctx context.Context, id uuid.UUID) (Project, error)
	List(ctx context.Context, limit, offset int) ([]Project, int, error)
	ListForMember(ctx context.Context, userID int64, limit, offset int) ([]Project, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error

	UpsertMembership(ctx context.Context, m Membership) error
	SetMembershipActive(ctx context.Context, projectID uuid.UUID, userID int64, active bool) error
	ListMembers(ctx context.Context, projectID uuid.UUID) ([]Membership, error)
	HasActiveMembership(ctx context.Context, userID int64, projectID uuid.UUID) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const projectColumns = `id, code, name, description, status, created_by, created_at, updated_at`

// Create inserts a project row.
func (r *PGRepository) Create(ctx context.Context, project Project) (Project, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `INSERT INTO projects (id, code, name, description, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING `+projectColumns,
		project.ID, project.Code, project.Name, project.Description, string(project.Status), project.CreatedBy, now)
	created, err := scanProject(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Project{}, ErrDuplicateCode
		}
		return Project{}, err
	}
	return created, nil
}

// Get fetches a project by ID.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	return project, nil
}

// List returns projects ordered by code.
func (r *PGRepository) List(ctx context.Context, limit, offset int) ([]Project, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return collectProjects(rows, total)
}

// ListForMember returns projects the user holds an active membership on.
func (r *PGRepository) ListForMember(ctx context.Context, userID int64, limit, offset int) ([]Project, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM projects p
JOIN project_memberships m ON m.project_id = p.id
WHERE m.user_id=$1 AND m.is_active`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+prefixedProjectColumns("p")+` FROM projects p
JOIN project_memberships m ON m.project_id = p.id
WHERE m.user_id=$1 AND m.is_active
ORDER BY p.code LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return collectProjects(rows, total)
}

// UpdateStatus transitions the project status.
func (r *PGRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE projects SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertMembership inserts or reactivates a membership row.
func (r *PGRepository) UpsertMembership(ctx context.Context, m Membership) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO project_memberships (project_id, user_id, access_level, is_active, added_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (project_id, user_id)
DO UPDATE SET access_level=EXCLUDED.access_level, is_active=EXCLUDED.is_active, updated_at=NOW()`,
		m.ProjectID, m.UserID, m.AccessLevel, m.IsActive, m.AddedBy)
	return err
}

// SetMembershipActive flips a membership's active flag.
func (r *PGRepository) SetMembershipActive(ctx context.Context, projectID uuid.UUID, userID int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE project_memberships SET is_active=$3, updated_at=NOW()
WHERE project_id=$1 AND user_id=$2`, projectID, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMembers returns all memberships for a project.
func (r *PGRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `SELECT project_id, user_id, access_level, is_active, added_by, created_at, updated_at
FROM project_memberships WHERE project_id=$1 ORDER BY user_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.AccessLevel, &m.IsActive, &m.AddedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// HasActiveMembership reports whether the user is an active member.
func (r *PGRepository) HasActiveMembership(ctx context.Context, userID int64, projectID uuid.UUID) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM project_memberships
WHERE project_id=$1 AND user_id=$2 AND is_active LIMIT 1`, projectID, userID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return active, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var p Project
	var status string
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Project{}, err
	}
	p.Status = Status(status)
	return p, nil
}

func collectProjects(rows pgx.Rows, total int) ([]Project, int, error) {
	defer rows.Close()
	var projects []Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func prefixedProjectColumns(alias string) string {
	return alias + ".id, " + alias + ".code, " + alias + ".name, " + alias + ".description, " +
		alias + ".status, " + alias + ".created_by, " + alias + ".created_at, " + alias + ".updated_at"
}

var _ Repository = (*PGRepository)(nil)
