package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"captioner/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// ServiceLLM is the ledger key for shared-endpoint LLM calls.
const ServiceLLM = "llm"

// Ledger tracks per-day usage counts backed by SQLite.
type Ledger struct {
	db    *sql.DB
	limit int
	now   func() time.Time
}

// Open initializes or connects to the usage database at the given path and
// prunes records older than retentionDays.
func Open(dbPath string, limit, retentionDays int) (*Ledger, error) {
	if limit <= 0 {
		return nil, errors.New("ledger limit must be positive")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	l := &Ledger{db: db, limit: limit, now: time.Now}
	if retentionDays > 0 {
		if err := l.prune(retentionDays); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return l, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Limit returns the configured daily limit.
func (l *Ledger) Limit() int {
	return l.limit
}

func (l *Ledger) day() string {
	return l.now().Format("2006-01-02")
}

// CheckAvailable reports whether the service has remaining quota today and
// the count consumed so far. It reserves nothing; only Increment does.
func (l *Ledger) CheckAvailable(ctx context.Context, service string) (bool, int, error) {
	var count int
	err := l.db.QueryRowContext(
		ctx,
		`SELECT count FROM service_usage WHERE service = ? AND day = ?`,
		service, l.day(),
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("query usage: %w", err)
	}
	return count < l.limit, count, nil
}

// Increment consumes one unit of today's quota. The check and the increment
// are one statement, so concurrent callers cannot exceed the limit. When
// the limit is already reached it returns a quota error and the count is
// unchanged.
func (l *Ledger) Increment(ctx context.Context, service string) error {
	res, err := l.db.ExecContext(
		ctx,
		`INSERT INTO service_usage (service, day, count) VALUES (?, ?, 1)
         ON CONFLICT(service, day) DO UPDATE SET count = count + 1 WHERE count < ?`,
		service, l.day(), l.limit,
	)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrQuotaExceeded, "quota", "increment",
			fmt.Sprintf("shared endpoint daily limit of %d calls reached, configure your own api_key and base_url", l.limit), nil)
	}
	return nil
}

// DayUsage is one row of historical usage.
type DayUsage struct {
	Service string
	Day     string
	Count   int
}

// History returns recorded usage for the most recent days, newest first.
func (l *Ledger) History(ctx context.Context, days int) ([]DayUsage, error) {
	if days <= 0 {
		days = 1
	}
	cutoff := l.now().AddDate(0, 0, -days+1).Format("2006-01-02")
	rows, err := l.db.QueryContext(
		ctx,
		`SELECT service, day, count FROM service_usage WHERE day >= ? ORDER BY day DESC, service ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage history: %w", err)
	}
	defer rows.Close()

	var usage []DayUsage
	for rows.Next() {
		var u DayUsage
		if err := rows.Scan(&u.Service, &u.Day, &u.Count); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}
	return usage, nil
}

func (l *Ledger) prune(retentionDays int) error {
	cutoff := l.now().AddDate(0, 0, -retentionDays).Format("2006-01-02")
	if _, err := l.db.Exec(`DELETE FROM service_usage WHERE day < ?`, cutoff); err != nil {
		return fmt.Errorf("prune usage: %w", err)
	}
	return nil
}
