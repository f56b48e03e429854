// Package storage persists calls, transcripts, summaries, service requests
// and orders in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sjawhar/roomline/internal/transcript"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

const (
	SummaryPending   = "pending"
	SummaryRunning   = "running"
	SummaryCompleted = "completed"
	SummaryFailed    = "failed"
)

const (
	CallActive = "active"
	CallEnded  = "ended"
)

type Call struct {
	ID            string     `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Status        string     `json:"status"`
	Language      string     `json:"language"`
	RoomNumber    string     `json:"room_number,omitempty"`
	SummaryStatus string     `json:"summary_status"`
	AudioPath     string     `json:"audio_path,omitempty"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "roomline.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

var schema = []struct {
	name string
	ddl  string
}{
	{"calls table", `
		CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT 'en',
			room_number TEXT NOT NULL DEFAULT '',
			summary_status TEXT NOT NULL DEFAULT 'pending',
			audio_path TEXT NOT NULL DEFAULT ''
		)`},
	{"transcript_entries table", `
		CREATE TABLE IF NOT EXISTS transcript_entries (
			call_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			occurred_at TEXT NOT NULL,
			PRIMARY KEY (call_id, seq),
			FOREIGN KEY(call_id) REFERENCES calls(id) ON DELETE CASCADE
		)`},
	{"call_summaries table", `
		CREATE TABLE IF NOT EXISTS call_summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT NOT NULL,
			text TEXT NOT NULL,
			generated_by TEXT NOT NULL,
			language TEXT NOT NULL,
			room_number TEXT NOT NULL DEFAULT '',
			duration_seconds REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			FOREIGN KEY(call_id) REFERENCES calls(id) ON DELETE CASCADE
		)`},
	{"service_requests table", `
		CREATE TABLE IF NOT EXISTS service_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			category TEXT NOT NULL,
			free_text TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '{}',
			FOREIGN KEY(call_id) REFERENCES calls(id) ON DELETE CASCADE
		)`},
	{"pipeline_runs table", `
		CREATE TABLE IF NOT EXISTS pipeline_runs (
			call_id TEXT NOT NULL,
			transcript_hash TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(call_id, transcript_hash)
		)`},
	{"orders table", `
		CREATE TABLE IF NOT EXISTS orders (
			reference TEXT PRIMARY KEY,
			call_id TEXT NOT NULL,
			room_number TEXT NOT NULL,
			order_type TEXT NOT NULL,
			delivery_timing TEXT NOT NULL,
			special_instructions TEXT NOT NULL DEFAULT '',
			total_amount REAL NOT NULL,
			status TEXT NOT NULL,
			guest_email TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`},
	{"order_items table", `
		CREATE TABLE IF NOT EXISTS order_items (
			order_ref TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL,
			unit_price REAL NOT NULL,
			PRIMARY KEY (order_ref, position),
			FOREIGN KEY(order_ref) REFERENCES orders(reference) ON DELETE CASCADE
		)`},
	{"order_status_history table", `
		CREATE TABLE IF NOT EXISTS order_status_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_ref TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			changed_by TEXT NOT NULL,
			changed_at TEXT NOT NULL,
			FOREIGN KEY(order_ref) REFERENCES orders(reference) ON DELETE CASCADE
		)`},
	{"calls index", "CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls(started_at)"},
	{"summaries index", "CREATE INDEX IF NOT EXISTS idx_call_summaries_call_id ON call_summaries(call_id, id)"},
	{"requests index", "CREATE INDEX IF NOT EXISTS idx_service_requests_call_id ON service_requests(call_id, position)"},
	{"orders index", "CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)"},
	{"orders call index", "CREATE INDEX IF NOT EXISTS idx_orders_call_id ON orders(call_id)"},
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt.ddl); err != nil {
			return fmt.Errorf("create %s: %w", stmt.name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}

func (s *SQLiteStore) CreateCall(id, language string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("call id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO calls(id, started_at, status, language, summary_status) VALUES(?, ?, ?, ?, ?)`,
		id,
		formatTime(startedAt),
		CallActive,
		language,
		SummaryPending,
	)
	if err != nil {
		return fmt.Errorf("create call %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) EndCall(id string, endedAt time.Time, audioPath string) error {
	res, err := s.db.Exec(
		`UPDATE calls SET ended_at = ?, status = ?, audio_path = ? WHERE id = ?`,
		formatTime(endedAt),
		CallEnded,
		audioPath,
		id,
	)
	if err != nil {
		return fmt.Errorf("end call %s: %w", id, err)
	}
	return expectRow(res, "end call "+id)
}

func (s *SQLiteStore) SetSummaryStatus(callID, status string) error {
	res, err := s.db.Exec(`UPDATE calls SET summary_status = ? WHERE id = ?`, status, callID)
	if err != nil {
		return fmt.Errorf("set summary status for call %s: %w", callID, err)
	}
	return expectRow(res, "set summary status "+callID)
}

func expectRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

const callColumns = `id, started_at, ended_at, status, language, room_number, summary_status, audio_path`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	var startedAt string
	var endedAt sql.NullString
	if err := row.Scan(&c.ID, &startedAt, &endedAt, &c.Status, &c.Language, &c.RoomNumber, &c.SummaryStatus, &c.AudioPath); err != nil {
		return Call{}, err
	}

	parsedStart, err := parseTime(startedAt)
	if err != nil {
		return Call{}, fmt.Errorf("parse started_at: %w", err)
	}
	c.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := parseTime(endedAt.String)
		if err != nil {
			return Call{}, fmt.Errorf("parse ended_at: %w", err)
		}
		c.EndedAt = &parsedEnd
	}
	return c, nil
}

func (s *SQLiteStore) GetCall(id string) (Call, error) {
	row := s.db.QueryRow(`SELECT `+callColumns+` FROM calls WHERE id = ?`, id)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, fmt.Errorf("query call %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Call{}, fmt.Errorf("query call %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCallsByDate(date string) ([]Call, error) {
	rows, err := s.db.Query(
		`SELECT `+callColumns+`
		 FROM calls
		 WHERE substr(started_at, 1, 10) = ?
		 ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query calls by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	calls := make([]Call, 0, 16)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls rows: %w", err)
	}
	return calls, nil
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM calls ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) AppendEntry(e transcript.Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO transcript_entries(call_id, seq, speaker, text, occurred_at) VALUES(?, ?, ?, ?, ?)`,
		e.SessionID,
		e.Seq,
		string(e.Speaker),
		strings.TrimSpace(e.Text),
		formatTime(e.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("append entry for call %s: %w", e.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) GetEntries(callID string) ([]transcript.Entry, error) {
	rows, err := s.db.Query(
		`SELECT seq, speaker, text, occurred_at
		 FROM transcript_entries
		 WHERE call_id = ?
		 ORDER BY seq ASC`,
		callID,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries for call %s: %w", callID, err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]transcript.Entry, 0, 32)
	for rows.Next() {
		e := transcript.Entry{SessionID: callID}
		var speaker, ts string
		if err := rows.Scan(&e.Seq, &speaker, &e.Text, &ts); err != nil {
			return nil, fmt.Errorf("scan entry for call %s: %w", callID, err)
		}
		e.Speaker = transcript.Speaker(speaker)

		parsedTS, err := parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parse entry timestamp for call %s: %w", callID, err)
		}
		e.OccurredAt = parsedTS

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows for call %s: %w", callID, err)
	}

	return entries, nil
}
