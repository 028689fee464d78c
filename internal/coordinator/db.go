package coordinator

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/signalnine/autoback/internal/protocol"
)

// receivedLayout is fixed-width so received_at sorts as text
const receivedLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps SQLite connection
type DB struct {
	db *sql.DB
}

// NewDB opens or creates the SQLite database
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Connections are served concurrently; one writer avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		hostname TEXT NOT NULL,
		outcome TEXT NOT NULL,
		remote_addr TEXT,
		received_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_hostname ON reports(hostname);
	CREATE INDEX IF NOT EXISTS idx_reports_outcome ON reports(outcome);
	CREATE INDEX IF NOT EXISTS idx_reports_received_at ON reports(received_at);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertReport stores a received report, filling in ID and ReceivedAt when
// they are unset.
func (d *DB) InsertReport(r *protocol.StoredReport) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now()
	}

	_, err := d.db.Exec(`
		INSERT INTO reports (id, hostname, outcome, remote_addr, received_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Hostname, r.Outcome.String(), r.RemoteAddr, r.ReceivedAt.UTC().Format(receivedLayout))

	return err
}

// QueryByHostname returns recent reports for a host
func (d *DB) QueryByHostname(hostname string, limit int) ([]protocol.StoredReport, error) {
	rows, err := d.db.Query(`
		SELECT id, hostname, outcome, remote_addr, received_at
		FROM reports
		WHERE hostname = ?
		ORDER BY received_at DESC
		LIMIT ?
	`, hostname, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReports(rows)
}

// QueryRecent returns the most recent reports from all hosts
func (d *DB) QueryRecent(limit int) ([]protocol.StoredReport, error) {
	rows, err := d.db.Query(`
		SELECT id, hostname, outcome, remote_addr, received_at
		FROM reports
		ORDER BY received_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReports(rows)
}

// QueryFailures returns recent FAILURE reports
func (d *DB) QueryFailures(limit int) ([]protocol.StoredReport, error) {
	rows, err := d.db.Query(`
		SELECT id, hostname, outcome, remote_addr, received_at
		FROM reports
		WHERE outcome = ?
		ORDER BY received_at DESC
		LIMIT ?
	`, protocol.Failure.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReports(rows)
}

// OutcomeCounts returns count of reports by outcome
func (d *DB) OutcomeCounts() (map[string]int, error) {
	rows, err := d.db.Query(`
		SELECT outcome, COUNT(*) FROM reports GROUP BY outcome
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		counts[outcome] = count
	}
	return counts, rows.Err()
}

func scanReports(rows *sql.Rows) ([]protocol.StoredReport, error) {
	var reports []protocol.StoredReport
	for rows.Next() {
		var r protocol.StoredReport
		var outcome, receivedStr string
		var remote sql.NullString

		if err := rows.Scan(&r.ID, &r.Hostname, &outcome, &remote, &receivedStr); err != nil {
			return nil, err
		}

		r.Outcome, _ = protocol.ParseOutcome(outcome)
		r.ReceivedAt, _ = time.Parse(receivedLayout, receivedStr)
		if remote.Valid {
			r.RemoteAddr = remote.String
		}

		reports = append(reports, r)
	}
	return reports, rows.Err()
}
