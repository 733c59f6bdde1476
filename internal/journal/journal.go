// Package journal persists an append-only record of every trade the
// Executor attempts, independent of the process's log output. It is a
// supplement to the core loop: the solver runs identically with or
// without it wired in.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/onlyswaps/solver/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	request_id    TEXT NOT NULL,
	src_chain_id  INTEGER NOT NULL,
	dst_chain_id  INTEGER NOT NULL,
	token_out     TEXT NOT NULL,
	swap_amount   TEXT NOT NULL,
	status        TEXT NOT NULL,
	tx_hash       TEXT,
	error         TEXT,
	decided_at    INTEGER NOT NULL,
	PRIMARY KEY (request_id, decided_at, status)
);
`

// Status is the outcome of one Executor attempt at a Trade.
type Status string

// Recognized statuses.
const (
	StatusSubmitted Status = "submitted"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Journal is a sqlite-backed append-only log of execution attempts.
type Journal struct {
	db *sql.DB
}

// Open creates (if needed) and opens the journal database at dbPath,
// enabling WAL mode for concurrent reads while the Executor writes.
func Open(dbPath string) (*Journal, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one execution outcome. decidedAtUnix is passed in by
// the caller rather than computed here, keeping the journal free of a
// wall-clock dependency of its own.
func (j *Journal) Record(trade *model.Trade, status Status, txHash string, execErr error, decidedAtUnix int64) error {
	var errText sql.NullString
	if execErr != nil {
		errText = sql.NullString{String: execErr.Error(), Valid: true}
	}
	var txHashCol sql.NullString
	if txHash != "" {
		txHashCol = sql.NullString{String: txHash, Valid: true}
	}

	amount := "0"
	if trade.SwapAmount != nil {
		amount = trade.SwapAmount.String()
	}

	_, err := j.db.Exec(
		`INSERT OR REPLACE INTO executions
			(request_id, src_chain_id, dst_chain_id, token_out, swap_amount, status, tx_hash, error, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		model.CanonicalizeRequestID(trade.RequestID),
		trade.SrcChainID,
		trade.DestChainID,
		model.CanonicalizeAddress(trade.TokenOutAddr),
		amount,
		string(status),
		txHashCol,
		errText,
		decidedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// LatestStatus returns the most recently recorded status for a request
// ID, or ("", false) if it has never been journaled.
func (j *Journal) LatestStatus(requestID string) (Status, bool) {
	var status string
	err := j.db.QueryRow(
		"SELECT status FROM executions WHERE request_id = ? ORDER BY decided_at DESC, rowid DESC LIMIT 1",
		model.CanonicalizeRequestID(requestID),
	).Scan(&status)
	if err != nil {
		return "", false
	}
	return Status(status), true
}

// CountByStatus reports how many journaled attempts carry a given
// status, for a lightweight operational summary.
func (j *Journal) CountByStatus(status Status) (int64, error) {
	var count int64
	err := j.db.QueryRow("SELECT COUNT(*) FROM executions WHERE status = ?", string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by status: %w", err)
	}
	return count, nil
}
