package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("member not found")

const schema = `CREATE TABLE IF NOT EXISTS members (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	email     TEXT NOT NULL DEFAULT '',
	age       INTEGER NOT NULL DEFAULT 0,
	active    INTEGER NOT NULL DEFAULT 1,
	joined_at TEXT NOT NULL DEFAULT ''
)`

const memberColumns = "id, name, email, age, active, joined_at"

// Store keeps members in a database/sql handle opened with the "sqlite"
// (modernc) or "pgx" driver. Queries are written with ? placeholders and
// rebound for postgres.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects, pings and creates the members table.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}
	s := NewStore(db, driver)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver, now: time.Now}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate members: %w", err)
	}
	return nil
}

func (s *Store) rebind(q string) string {
	if s.driver != "pgx" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) List(ctx context.Context) ([]Member, error) {
	return s.query(ctx, "SELECT "+memberColumns+" FROM members ORDER BY name, id")
}

// Search matches name and email case-insensitively by substring. A non-nil
// active restricts the status.
func (s *Store) Search(ctx context.Context, text string, active *bool) ([]Member, error) {
	q := "SELECT " + memberColumns + " FROM members WHERE (LOWER(name) LIKE ? OR LOWER(email) LIKE ?)"
	like := "%" + strings.ToLower(strings.TrimSpace(text)) + "%"
	args := []any{like, like}
	if active != nil {
		q += " AND active = ?"
		args = append(args, boolInt(*active))
	}
	return s.query(ctx, q+" ORDER BY name, id", args...)
}

func (s *Store) Get(ctx context.Context, id string) (Member, error) {
	out, err := s.query(ctx, "SELECT "+memberColumns+" FROM members WHERE id = ?", id)
	if err != nil {
		return Member{}, err
	}
	if len(out) == 0 {
		return Member{}, ErrNotFound
	}
	return out[0], nil
}

// Save upserts members in one transaction. Members without an id get a new
// UUID and a zero JoinedAt is set to now; the stored values are returned.
func (s *Store) Save(ctx context.Context, members []Member) (out []Member, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	q := s.rebind(`INSERT INTO members (` + memberColumns + `) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email,
age = excluded.age, active = excluded.active, joined_at = excluded.joined_at`)
	out = make([]Member, 0, len(members))
	for _, m := range members {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.JoinedAt.IsZero() {
			m.JoinedAt = s.now()
		}
		m.JoinedAt = m.JoinedAt.UTC().Truncate(time.Second)
		if _, err = tx.ExecContext(ctx, q, m.ID, m.Name, m.Email, m.Age, boolInt(m.Active), m.JoinedAt.Format(time.RFC3339)); err != nil {
			return nil, fmt.Errorf("save member %s: %w", m.ID, err)
		}
		out = append(out, m)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM members WHERE id = ?"), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns member counts grouped by status as a raw cursor; the caller
// closes it.
func (s *Store) Stats(ctx context.Context) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, `SELECT CASE WHEN active = 1 THEN 'active' ELSE 'inactive' END AS status,
COUNT(*) AS members, COALESCE(AVG(age), 0) AS avg_age FROM members GROUP BY active ORDER BY status`)
}

// Seed inserts a few members when the table is empty.
func (s *Store) Seed(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM members").Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	seed := []Member{
		{Name: "Ada Lovelace", Email: "ada@example.com", Age: 36, Active: true, JoinedAt: base},
		{Name: "Grace Hopper", Email: "grace@example.com", Age: 45, Active: true, JoinedAt: base.AddDate(0, 2, 0)},
		{Name: "Alan Turing", Email: "alan@example.com", Age: 41, Active: false, JoinedAt: base.AddDate(0, 5, 3)},
	}
	saved, err := s.Save(ctx, seed)
	return len(saved), err
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Member
	for rows.Next() {
		var (
			m      Member
			active int
			joined string
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Age, &active, &joined); err != nil {
			return nil, err
		}
		m.Active = active != 0
		if joined != "" {
			t, err := time.Parse(time.RFC3339, joined)
			if err != nil {
				return nil, fmt.Errorf("member %s joined_at: %w", m.ID, err)
			}
			m.JoinedAt = t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
