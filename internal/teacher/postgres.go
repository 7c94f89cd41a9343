package teacher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const teacherColumns = `id, name, email, password_hash, subject, department, phone, office,
	status, status_note, status_until, available_until, qr_code, created_at, updated_at`

// PostgresRepository persists teachers in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeacher(row rowScanner) (Teacher, error) {
	var t Teacher
	var status sql.NullString
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.PasswordHash, &t.Subject, &t.Department, &t.Phone, &t.Office,
		&status, &t.StatusNote, &t.StatusUntil, &t.AvailableUntil, &t.QRCode, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Teacher{}, err
	}
	t.Status = status.String
	return t, nil
}

func (r *PostgresRepository) queryTeachers(ctx context.Context, query string, args ...any) ([]Teacher, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Teacher
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// Create inserts a new teacher and returns it with server timestamps.
func (r *PostgresRepository) Create(ctx context.Context, t Teacher) (Teacher, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = StatusAvailable
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO teachers (id, name, email, password_hash, subject, department, phone, office, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at
	`, t.ID, t.Name, t.Email, t.PasswordHash, t.Subject, t.Department, t.Phone, t.Office, t.Status)
	if err := row.Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Teacher{}, ErrEmailTaken
		}
		return Teacher{}, err
	}
	return t, nil
}

// GetByID returns a single teacher.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Teacher, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Teacher{}, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE id = $1`, id)
	t, err := scanTeacher(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Teacher{}, ErrNotFound
	}
	return t, err
}

// GetByEmail returns the teacher registered with email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (Teacher, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE email = $1`, email)
	t, err := scanTeacher(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Teacher{}, ErrNotFound
	}
	return t, err
}

// List returns teachers ordered by name, or newest first.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers`
	args := []any{}
	if opts.Department != "" {
		query += " WHERE department = $" + itoa(len(args)+1)
		args = append(args, opts.Department)
	}
	if opts.NewestFirst {
		query += " ORDER BY created_at DESC"
	} else {
		query += " ORDER BY name"
	}
	return r.queryTeachers(ctx, query, args...)
}

// Search matches query case-insensitively against name, subject and department.
func (r *PostgresRepository) Search(ctx context.Context, query string) ([]Teacher, error) {
	pattern := "%" + escapeLike(query) + "%"
	return r.queryTeachers(ctx, `
		SELECT `+teacherColumns+` FROM teachers
		WHERE name ILIKE $1 OR subject ILIKE $1 OR department ILIKE $1
		ORDER BY name
	`, pattern)
}

// Departments returns the distinct non-empty departments in alphabetical order.
func (r *PostgresRepository) Departments(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT department FROM teachers
		WHERE department IS NOT NULL AND department <> ''
		ORDER BY department
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// Update applies the set fields of c and returns the updated row.
func (r *PostgresRepository) Update(ctx context.Context, id string, c Changes) (Teacher, error) {
	if c.empty() {
		return r.GetByID(ctx, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return Teacher{}, ErrNotFound
	}
	sets := []string{}
	args := []any{}
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, column+" = $"+itoa(len(args)))
	}
	if c.Name != nil {
		set("name", *c.Name)
	}
	if c.Subject != nil {
		set("subject", *c.Subject)
	}
	if c.Department != nil {
		set("department", *c.Department)
	}
	if c.Status != nil {
		set("status", *c.Status)
	}
	if c.Phone.Set {
		set("phone", c.Phone.Value)
	}
	if c.Office.Set {
		set("office", c.Office.Value)
	}
	if c.StatusNote.Set {
		set("status_note", c.StatusNote.Value)
	}
	if c.StatusUntil.Set {
		set("status_until", c.StatusUntil.Value)
		sets = append(sets, "available_until = NULL")
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	query := "UPDATE teachers SET " + joinClauses(sets, ", ") +
		" WHERE id = $" + itoa(len(args)) + " RETURNING " + teacherColumns
	t, err := scanTeacher(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Teacher{}, ErrNotFound
	}
	return t, err
}

// SetQRCode overwrites the stored QR image URL.
func (r *PostgresRepository) SetQRCode(ctx context.Context, id, url string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `UPDATE teachers SET qr_code = $2, updated_at = NOW() WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Delete removes a teacher together with its scans.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// InsertScan appends a scan event.
func (r *PostgresRepository) InsertScan(ctx context.Context, evt ScanEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.ScannedAt.IsZero() {
		evt.ScannedAt = time.Now().UTC()
	}
	var ip any
	if evt.IPAddress != "" {
		ip = evt.IPAddress
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO qr_scans (id, teacher_id, scanned_at, ip_address)
		VALUES ($1, $2, $3, $4)
	`, evt.ID, evt.TeacherID, evt.ScannedAt, ip)
	return err
}

// ListScans returns the scans of one teacher, most recent first.
func (r *PostgresRepository) ListScans(ctx context.Context, teacherID string) ([]ScanEvent, error) {
	return r.queryScans(ctx, `
		SELECT id, teacher_id, scanned_at, COALESCE(ip_address, '')
		FROM qr_scans WHERE teacher_id = $1
		ORDER BY scanned_at DESC
	`, teacherID)
}

// ScansSince returns every scan at or after since, most recent first.
func (r *PostgresRepository) ScansSince(ctx context.Context, since time.Time) ([]ScanEvent, error) {
	return r.queryScans(ctx, `
		SELECT id, teacher_id, scanned_at, COALESCE(ip_address, '')
		FROM qr_scans WHERE scanned_at >= $1
		ORDER BY scanned_at DESC
	`, since)
}

func (r *PostgresRepository) queryScans(ctx context.Context, query string, args ...any) ([]ScanEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ScanEvent
	for rows.Next() {
		var evt ScanEvent
		if err := rows.Scan(&evt.ID, &evt.TeacherID, &evt.ScannedAt, &evt.IPAddress); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *PostgresRepository) SaveRefreshToken(ctx context.Context, teacherID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (teacher_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, teacherID, token, expiresAt)
	return err
}

// RefreshTokenActive reports whether token is stored, unrevoked and unexpired.
func (r *PostgresRepository) RefreshTokenActive(ctx context.Context, token string) (bool, error) {
	var active bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM refresh_tokens
			WHERE token = $1 AND NOT revoked AND expires_at > NOW()
		)
	`, token).Scan(&active)
	return active, err
}

// RevokeRefreshToken marks a token revoked.
func (r *PostgresRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
