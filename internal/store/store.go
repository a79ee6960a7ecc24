// Package store persists per-owner input collections and the engine's
// summary documents in a SQLite-backed document store.
//
// Records and documents are stored as JSON bodies. Summary writes use merge
// semantics: fields present on the stored document but never written by this
// engine survive an upsert, so other systems can annotate the same document.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"finance-alignment-engine/internal/engine"
	"finance-alignment-engine/internal/models"
	apperrors "finance-alignment-engine/pkg/errors"
	"finance-alignment-engine/pkg/logger"
)

// Collection names for the per-owner input collections.
const (
	CollectionTransactions = "transactions"
	CollectionPots         = "pots"
	CollectionGoals        = "goals"
	CollectionBudgetConfig = "budget_config"
)

// Document types for the summary_documents table.
const (
	DocBudgetSummary = "budget_summary"
	DocGoalAlignment = "goal_alignment"
)

const schema = `
CREATE TABLE IF NOT EXISTS collection_records (
	owner_uid  TEXT NOT NULL,
	collection TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	body       TEXT NOT NULL,
	PRIMARY KEY (owner_uid, collection, record_id)
);

CREATE TABLE IF NOT EXISTS summary_documents (
	owner_uid  TEXT NOT NULL,
	doc_type   TEXT NOT NULL,
	body       TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (owner_uid, doc_type)
);
`

// DocumentStore is a SQLite-backed implementation of engine.Store.
type DocumentStore struct {
	db     *sql.DB
	logger logger.Logger
}

// engine.Store conformance.
var _ engine.Store = (*DocumentStore)(nil)

// Open opens (creating if necessary) the document store at the given path.
func Open(dbPath string) (*DocumentStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.StoreError(apperrors.CodeStoreUnavailable, "create db directory", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, apperrors.StoreError(apperrors.CodeStoreUnavailable, "open database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.StoreError(apperrors.CodeStoreUnavailable, "ping database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.StoreError(apperrors.CodeStoreUnavailable, "initialize schema", err)
	}

	return &DocumentStore{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("store"),
	}, nil
}

// Close closes the underlying database.
func (s *DocumentStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// readCollection streams every record body for one owner and collection,
// decoding each into T. Rows that fail to decode are skipped and counted,
// never fatal; a partially malformed collection still aggregates.
func readCollection[T any](ctx context.Context, s *DocumentStore, ownerUID, collection string) ([]T, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, body FROM collection_records
		 WHERE owner_uid = ? AND collection = ?
		 ORDER BY record_id`,
		ownerUID, collection)
	if err != nil {
		return nil, apperrors.StoreError(apperrors.CodeQueryFailed, "query "+collection, err)
	}
	defer rows.Close()

	var out []T
	skipped := 0
	for rows.Next() {
		var recordID, body string
		if err := rows.Scan(&recordID, &body); err != nil {
			return nil, apperrors.StoreError(apperrors.CodeQueryFailed, "scan "+collection, err)
		}
		var record T
		if err := json.Unmarshal([]byte(body), &record); err != nil {
			skipped++
			s.logger.WithFields(logger.Fields{
				"collection": collection,
				"record_id":  recordID,
			}).WithError(err).Warn("Skipping malformed record")
			continue
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreError(apperrors.CodeQueryFailed, "iterate "+collection, err)
	}
	if skipped > 0 {
		s.logger.WithFields(logger.Fields{
			"collection": collection,
			"skipped":    skipped,
		}).Warn("Collection contained malformed records")
	}
	return out, nil
}

// Transactions returns the owner's transaction records.
func (s *DocumentStore) Transactions(ctx context.Context, ownerUID string) ([]models.TransactionRecord, error) {
	return readCollection[models.TransactionRecord](ctx, s, ownerUID, CollectionTransactions)
}

// Pots returns the owner's pot records.
func (s *DocumentStore) Pots(ctx context.Context, ownerUID string) ([]models.PotRecord, error) {
	return readCollection[models.PotRecord](ctx, s, ownerUID, CollectionPots)
}

// Goals returns the owner's goal records.
func (s *DocumentStore) Goals(ctx context.Context, ownerUID string) ([]models.GoalRecord, error) {
	return readCollection[models.GoalRecord](ctx, s, ownerUID, CollectionGoals)
}

// BudgetConfig returns the owner's budget configuration, or nil when none is
// stored. When several records exist the first by record id wins.
func (s *DocumentStore) BudgetConfig(ctx context.Context, ownerUID string) (*models.BudgetConfig, error) {
	configs, err := readCollection[models.BudgetConfig](ctx, s, ownerUID, CollectionBudgetConfig)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, nil
	}
	return &configs[0], nil
}

// UpsertBudgetSummary merge-upserts the owner's budget summary document.
func (s *DocumentStore) UpsertBudgetSummary(ctx context.Context, doc *engine.BudgetSummaryDocument) error {
	return s.mergeUpsert(ctx, doc.OwnerUID, DocBudgetSummary, doc, doc.UpdatedAt)
}

// UpsertGoalAlignment merge-upserts the owner's goal alignment document.
func (s *DocumentStore) UpsertGoalAlignment(ctx context.Context, doc *engine.GoalAlignmentDocument) error {
	return s.mergeUpsert(ctx, doc.OwnerUID, DocGoalAlignment, doc, doc.UpdatedAt)
}

// mergeUpsert writes a summary document, overlaying the engine's fields onto
// whatever is already stored. Top-level fields absent from doc are kept.
func (s *DocumentStore) mergeUpsert(ctx context.Context, ownerUID, docType string, doc interface{}, updatedAt time.Time) error {
	incoming, err := json.Marshal(doc)
	if err != nil {
		return apperrors.StoreError(apperrors.CodeWriteFailed, "encode "+docType, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.StoreError(apperrors.CodeWriteFailed, "begin "+docType+" upsert", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT body FROM summary_documents WHERE owner_uid = ? AND doc_type = ?`,
		ownerUID, docType).Scan(&existing)

	body := string(incoming)
	switch {
	case err == sql.ErrNoRows:
		// first write, nothing to merge
	case err != nil:
		return apperrors.StoreError(apperrors.CodeQueryFailed, "read existing "+docType, err)
	default:
		merged, mergeErr := mergeDocuments([]byte(existing), incoming)
		if mergeErr != nil {
			return mergeErr
		}
		body = string(merged)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO summary_documents (owner_uid, doc_type, body, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (owner_uid, doc_type) DO UPDATE SET
		   body = excluded.body,
		   updated_at = excluded.updated_at`,
		ownerUID, docType, body, updatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return apperrors.StoreError(apperrors.CodeWriteFailed, "write "+docType, err)
	}
	return tx.Commit()
}

// mergeDocuments overlays every top-level field of incoming onto existing.
func mergeDocuments(existing, incoming []byte) ([]byte, error) {
	var base map[string]json.RawMessage
	if err := json.Unmarshal(existing, &base); err != nil {
		// A corrupt stored body is replaced wholesale rather than failing
		// the run.
		return incoming, nil
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(incoming, &overlay); err != nil {
		return nil, apperrors.StoreError(apperrors.CodeWriteFailed, "decode incoming document", err)
	}
	for key, value := range overlay {
		base[key] = value
	}
	return json.Marshal(base)
}

// SummaryDocument reads a stored summary document body. The second return is
// false when no document exists for the owner.
func (s *DocumentStore) SummaryDocument(ctx context.Context, ownerUID, docType string) (json.RawMessage, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM summary_documents WHERE owner_uid = ? AND doc_type = ?`,
		ownerUID, docType).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.StoreError(apperrors.CodeQueryFailed, "read "+docType, err)
	}
	return json.RawMessage(body), true, nil
}

// ReplaceCollection replaces an owner's collection with the given record
// bodies. Record identifiers are extracted from the body's id fields; bodies
// without one get a generated identifier.
func (s *DocumentStore) ReplaceCollection(ctx context.Context, ownerUID, collection string, records []json.RawMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.StoreError(apperrors.CodeWriteFailed, "begin "+collection+" replace", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM collection_records WHERE owner_uid = ? AND collection = ?`,
		ownerUID, collection); err != nil {
		return apperrors.StoreError(apperrors.CodeWriteFailed, "clear "+collection, err)
	}

	for _, body := range records {
		recordID := extractRecordID(body)
		if recordID == "" {
			recordID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collection_records (owner_uid, collection, record_id, body)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (owner_uid, collection, record_id) DO UPDATE SET
			   body = excluded.body`,
			ownerUID, collection, recordID, string(body)); err != nil {
			return apperrors.StoreError(apperrors.CodeWriteFailed, "insert into "+collection, err)
		}
	}
	return tx.Commit()
}

// recordIDFields is the ordered list of body fields tried as record
// identifiers.
var recordIDFields = []string{"transactionId", "potId", "id"}

func extractRecordID(body json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, name := range recordIDFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var id string
		if err := json.Unmarshal(raw, &id); err == nil {
			if id = strings.TrimSpace(id); id != "" {
				return id
			}
		}
	}
	return ""
}
