package complaint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiciq/civiciq/internal/domain"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// Repo persists complaints, votes, and resolution logs in Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// Open connects a complaint repository to Postgres and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Repo, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// New wraps an existing pool (tests).
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Close releases the pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

const complaintColumns = `id, user_id, title, description, category, severity, priority_score,
	location, status, image_url, ai_summary, keywords, is_duplicate, duplicate_of,
	created_at, updated_at`

// Insert writes a fully scored complaint row. Failures are fatal to the
// submission and wrap domain.ErrPersistence.
func (r *Repo) Insert(ctx context.Context, c domain.Complaint) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO complaints (
			id, user_id, title, description, category, severity, priority_score,
			location, status, image_url, ai_summary, keywords, is_duplicate, duplicate_of,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULLIF($14,''),$15,$16)`,
		c.ID, c.UserID, c.Title, c.Description, c.Category, string(c.Severity), c.PriorityScore,
		c.Location, string(c.Status), c.ImageURL, c.Summary, c.Keywords, c.IsDuplicate, c.DuplicateOf,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert complaint: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Get returns a complaint by id.
func (r *Repo) Get(ctx context.Context, id string) (domain.Complaint, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id)
	c, err := scanComplaint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Complaint{}, domain.ErrNotFound
		}
		return domain.Complaint{}, fmt.Errorf("get complaint %s: %w", id, err)
	}
	return c, nil
}

// ListFilter narrows and orders complaint listings.
type ListFilter struct {
	Location          string // substring match
	Category          string
	Status            domain.Status
	IncludeDuplicates bool
	SortBy            string // priority_score (default) or created_at
	Page              int
	PageSize          int
}

// Listed is a complaint with its current vote count attached.
type Listed struct {
	domain.Complaint
	VoteCount int
}

// List returns a filtered, sorted page of complaints plus the total count.
// Duplicates are excluded unless the filter asks for them, so ranking views
// surface only originals.
func (r *Repo) List(ctx context.Context, f ListFilter) ([]Listed, int, error) {
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.IncludeDuplicates {
		where = append(where, "c.is_duplicate = FALSE")
	}
	if f.Location != "" {
		where = append(where, "c.location ILIKE "+arg("%"+f.Location+"%"))
	}
	if f.Category != "" {
		where = append(where, "c.category = "+arg(f.Category))
	}
	if f.Status != "" {
		where = append(where, "c.status = "+arg(string(f.Status)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	orderBy := "c.priority_score DESC"
	if f.SortBy == "created_at" {
		orderBy = "c.created_at DESC"
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM complaints c"+whereClause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}

	query := `SELECT ` + prefixColumns("c", complaintColumns) + `,
			COALESCE(v.votes, 0)
		FROM complaints c
		LEFT JOIN (
			SELECT complaint_id, COUNT(*) AS votes FROM votes GROUP BY complaint_id
		) v ON v.complaint_id = c.id` +
		whereClause +
		" ORDER BY " + orderBy +
		fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (f.Page-1)*f.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()

	var out []Listed
	for rows.Next() {
		var item Listed
		if err := scanComplaintInto(rows, &item.Complaint, &item.VoteCount); err != nil {
			return nil, 0, fmt.Errorf("scan complaint: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}
	return out, total, nil
}

// InsertVote records one user's vote. A repeat vote maps the unique
// constraint to domain.ErrAlreadyVoted.
func (r *Repo) InsertVote(ctx context.Context, complaintID, userID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO votes (complaint_id, user_id, created_at) VALUES ($1, $2, now())`,
		complaintID, userID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyVoted
		}
		return fmt.Errorf("%w: insert vote: %w", domain.ErrPersistence, err)
	}
	return nil
}

// VoteCount returns the number of votes on a complaint.
func (r *Repo) VoteCount(ctx context.Context, complaintID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM votes WHERE complaint_id = $1`, complaintID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("vote count %s: %w", complaintID, err)
	}
	return n, nil
}

// DuplicateCount returns how many complaints reference this one as parent.
func (r *Repo) DuplicateCount(ctx context.Context, complaintID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM complaints WHERE duplicate_of = $1`, complaintID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("duplicate count %s: %w", complaintID, err)
	}
	return n, nil
}

// UpdateScore writes a recomputed priority score.
func (r *Repo) UpdateScore(ctx context.Context, complaintID string, score float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE complaints SET priority_score = $2, updated_at = now() WHERE id = $1`,
		complaintID, score,
	)
	if err != nil {
		return fmt.Errorf("%w: update score %s: %w", domain.ErrPersistence, complaintID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatus writes a new lifecycle status. Transition validity is checked
// in the usecase layer.
func (r *Repo) UpdateStatus(ctx context.Context, complaintID string, status domain.Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE complaints SET status = $2, updated_at = now() WHERE id = $1`,
		complaintID, string(status),
	)
	if err != nil {
		return fmt.Errorf("%w: update status %s: %w", domain.ErrPersistence, complaintID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// InsertResolutionLog records who resolved a complaint and why.
func (r *Repo) InsertResolutionLog(ctx context.Context, complaintID, resolvedBy, note string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO resolution_logs (complaint_id, resolved_by, resolution_note, resolved_at)
		 VALUES ($1, $2, $3, now())`,
		complaintID, resolvedBy, note,
	)
	if err != nil {
		return fmt.Errorf("%w: insert resolution log: %w", domain.ErrPersistence, err)
	}
	return nil
}

// ListUnresolvedIDs returns ids of original complaints still pending or in
// progress, for the periodic rescore pass.
func (r *Repo) ListUnresolvedIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM complaints WHERE status <> $1 AND is_duplicate = FALSE`,
		string(domain.StatusResolved),
	)
	if err != nil {
		return nil, fmt.Errorf("list unresolved: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unresolved: %w", err)
	}
	return ids, nil
}

// ListRecent returns the newest complaints for the AI locality summary.
func (r *Repo) ListRecent(ctx context.Context, limit int) ([]domain.Complaint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+complaintColumns+` FROM complaints ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()

	var out []domain.Complaint
	for rows.Next() {
		var c domain.Complaint
		if err := scanComplaintInto(rows, &c); err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	return out, nil
}
