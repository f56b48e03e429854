package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sjawhar/roomline/internal/catalog"
	"github.com/sjawhar/roomline/internal/summary"
)

// SaveSummary stores a new summary generation for a call. Earlier
// generations stay in the history.
func (s *SQLiteStore) SaveSummary(cs summary.CallSummary) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save summary: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO call_summaries(call_id, text, generated_by, language, room_number, duration_seconds, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		cs.CallID,
		cs.Text,
		string(cs.GeneratedBy),
		cs.Language,
		cs.RoomNumber,
		cs.DurationSeconds,
		formatTime(cs.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert summary for call %s: %w", cs.CallID, err)
	}

	if _, err := tx.Exec(
		`UPDATE calls SET summary_status = ?, room_number = CASE WHEN ? = '' THEN room_number ELSE ? END WHERE id = ?`,
		SummaryCompleted,
		cs.RoomNumber,
		cs.RoomNumber,
		cs.CallID,
	); err != nil {
		return fmt.Errorf("update call %s after summary: %w", cs.CallID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit summary for call %s: %w", cs.CallID, err)
	}
	return nil
}

const summaryColumns = `call_id, text, generated_by, language, room_number, duration_seconds, created_at`

func scanSummary(row rowScanner) (summary.CallSummary, error) {
	var cs summary.CallSummary
	var generatedBy, createdAt string
	if err := row.Scan(&cs.CallID, &cs.Text, &generatedBy, &cs.Language, &cs.RoomNumber, &cs.DurationSeconds, &createdAt); err != nil {
		return summary.CallSummary{}, err
	}
	cs.GeneratedBy = summary.Source(generatedBy)
	parsed, err := parseTime(createdAt)
	if err != nil {
		return summary.CallSummary{}, fmt.Errorf("parse summary created_at: %w", err)
	}
	cs.CreatedAt = parsed
	return cs, nil
}

// LatestSummary returns the most recent generation for a call.
func (s *SQLiteStore) LatestSummary(callID string) (summary.CallSummary, error) {
	row := s.db.QueryRow(
		`SELECT `+summaryColumns+` FROM call_summaries WHERE call_id = ? ORDER BY id DESC LIMIT 1`,
		callID,
	)
	cs, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return summary.CallSummary{}, fmt.Errorf("latest summary for call %s: %w", callID, ErrNotFound)
	}
	if err != nil {
		return summary.CallSummary{}, fmt.Errorf("latest summary for call %s: %w", callID, err)
	}
	return cs, nil
}

// SummaryHistory lists every generation for a call, newest first.
func (s *SQLiteStore) SummaryHistory(callID string) ([]summary.CallSummary, error) {
	rows, err := s.db.Query(
		`SELECT `+summaryColumns+` FROM call_summaries WHERE call_id = ? ORDER BY id DESC`,
		callID,
	)
	if err != nil {
		return nil, fmt.Errorf("query summaries for call %s: %w", callID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []summary.CallSummary
	for rows.Next() {
		cs, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary for call %s: %w", callID, err)
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows for call %s: %w", callID, err)
	}
	return out, nil
}

// SaveRequests replaces the request set of a call.
func (s *SQLiteStore) SaveRequests(callID string, requests []summary.ServiceRequest) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save requests: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM service_requests WHERE call_id = ?`, callID); err != nil {
		return fmt.Errorf("clear requests for call %s: %w", callID, err)
	}

	for i, req := range requests {
		details, err := json.Marshal(req.Details)
		if err != nil {
			return fmt.Errorf("encode request details: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO service_requests(call_id, position, category, free_text, details) VALUES(?, ?, ?, ?, ?)`,
			callID,
			i,
			string(req.Category),
			req.FreeText,
			string(details),
		); err != nil {
			return fmt.Errorf("insert request for call %s: %w", callID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit requests for call %s: %w", callID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRequests(callID string) ([]summary.ServiceRequest, error) {
	rows, err := s.db.Query(
		`SELECT category, free_text, details FROM service_requests WHERE call_id = ? ORDER BY position ASC`,
		callID,
	)
	if err != nil {
		return nil, fmt.Errorf("query requests for call %s: %w", callID, err)
	}
	defer func() { _ = rows.Close() }()

	requests := []summary.ServiceRequest{}
	for rows.Next() {
		var category, freeText, details string
		if err := rows.Scan(&category, &freeText, &details); err != nil {
			return nil, fmt.Errorf("scan request for call %s: %w", callID, err)
		}
		req := summary.ServiceRequest{
			Category: catalog.ParseOr(category, catalog.Other),
			FreeText: freeText,
		}
		if err := json.Unmarshal([]byte(details), &req.Details); err != nil {
			return nil, fmt.Errorf("decode request details for call %s: %w", callID, err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request rows for call %s: %w", callID, err)
	}
	return requests, nil
}

// ClaimPipelineRun records that the summary pipeline ran over a transcript
// with the given hash. It reports false when that run was already claimed.
func (s *SQLiteStore) ClaimPipelineRun(callID, transcriptHash string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO pipeline_runs(call_id, transcript_hash) VALUES(?, ?)`,
		callID,
		transcriptHash,
	)
	if err != nil {
		return false, fmt.Errorf("claim pipeline run for call %s: %w", callID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim pipeline rows affected: %w", err)
	}

	return rows > 0, nil
}
