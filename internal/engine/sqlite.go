package engine

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single SQLite database. Batches map to
// real transactions, so the all-or-nothing guarantee comes from the storage
// layer instead of lock discipline.
type SQLiteStore struct {
	db  *sql.DB
	hub *watchHub
}

// OpenSQLite opens (or creates) a SQLite-backed store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, hub: newWatchHub()}, nil
}

func (s *SQLiteStore) Get(collection, id string) (Document, error) {
	var data string
	err := s.db.QueryRow(
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeDoc(data)
}

// Find loads the whole collection and filters in process. Filtering on JSON
// fields keeps the schema to a single table and matches the equality-only
// query contract of the engine.
func (s *SQLiteStore) Find(collection string, q Query) ([]Document, error) {
	if collection == "" {
		return nil, ErrInvalidQuery
	}
	rows, err := s.db.Query("SELECT data FROM documents WHERE collection = ?", collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		doc, err := decodeDoc(data)
		if err != nil {
			return nil, err
		}
		if matches(doc, q) {
			results = append(results, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortDocs(results, q)
	return results, nil
}

func (s *SQLiteStore) Insert(collection string, doc Document) (string, error) {
	if collection == "" {
		return "", ErrInvalidQuery
	}
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	stored := copyDoc(doc)
	stored["id"] = id

	data, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	if _, err := s.db.Exec(
		"INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)",
		collection, id, string(data),
	); err != nil {
		return "", err
	}

	s.hub.notify(collection, s.Find)
	return id, nil
}

func (s *SQLiteStore) Update(collection, id string, fields Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := updateInTx(tx, collection, id, fields); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.hub.notify(collection, s.Find)
	return nil
}

func (s *SQLiteStore) Delete(collection, id string) error {
	if _, err := s.db.Exec(
		"DELETE FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	); err != nil {
		return err
	}

	s.hub.notify(collection, s.Find)
	return nil
}

func (s *SQLiteStore) NewBatch() Batch {
	return &sqliteBatch{store: s}
}

func (s *SQLiteStore) Watch(collection string, q Query) (Subscription, error) {
	if collection == "" {
		return nil, ErrInvalidQuery
	}
	return s.hub.subscribe(collection, q, s.Find), nil
}

func (s *SQLiteStore) Collections() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT collection FROM documents ORDER BY collection")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		list = append(list, name)
	}
	return list, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteBatch commits all buffered operations inside one SQL transaction.
type sqliteBatch struct {
	store *SQLiteStore
	ops   []batchOp
}

func (b *sqliteBatch) Update(collection, id string, fields Document) {
	b.ops = append(b.ops, batchOp{kind: opUpdate, collection: collection, id: id, fields: copyDoc(fields)})
}

func (b *sqliteBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{kind: opDelete, collection: collection, id: id})
}

func (b *sqliteBatch) Commit() error {
	tx, err := b.store.db.Begin()
	if err != nil {
		return err
	}

	touched := make(map[string]bool)
	for _, op := range b.ops {
		touched[op.collection] = true
		switch op.kind {
		case opUpdate:
			if err := updateInTx(tx, op.collection, op.id, op.fields); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("batch update %s/%s: %w", op.collection, op.id, err)
			}
		case opDelete:
			if _, err := tx.Exec(
				"DELETE FROM documents WHERE collection = ? AND id = ?",
				op.collection, op.id,
			); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("batch delete %s/%s: %w", op.collection, op.id, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for collection := range touched {
		b.store.hub.notify(collection, b.store.Find)
	}
	return nil
}

// updateInTx merges fields into a stored document within a transaction.
func updateInTx(tx *sql.Tx, collection, id string, fields Document) error {
	var data string
	err := tx.QueryRow(
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrDocumentNotFound
	}
	if err != nil {
		return err
	}

	doc, err := decodeDoc(data)
	if err != nil {
		return err
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		doc[k] = v
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		"UPDATE documents SET data = ? WHERE collection = ? AND id = ?",
		string(merged), collection, id,
	)
	return err
}

func decodeDoc(data string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("corrupt document payload: %w", err)
	}
	return doc, nil
}
