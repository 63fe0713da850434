package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks draftmind/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// DocumentStore defines read access to the document store, plus the upsert
// the reindex CLI needs. The indexing core itself only reads.
type DocumentStore interface {
	// GetByID gets a document by id. Returns nil and ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*DocumentRecord, error)
	// ListIDsByOwner returns the ids of all documents owned by a user.
	ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error)
	// ListAll returns every document, ordered by owner then title.
	ListAll(ctx context.Context) ([]*DocumentRecord, error)
	// Upsert inserts a document or updates it in place, bumping the version
	// when content changes.
	Upsert(ctx context.Context, doc *DocumentRecord) error
}

// DocumentRepo implements DocumentStore over SQLite.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// GetByID gets a document by id. Returns nil and ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*DocumentRecord, error) {
	var doc DocumentRecord
	var updatedAtStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, owner_id, title, content, version, updated_at FROM documents WHERE id = ?",
		id,
	).Scan(&doc.ID, &doc.OwnerID, &doc.Title, &doc.Content, &doc.Version, &updatedAtStr)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	doc.UpdatedAt, err = parseSQLiteTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
	}

	return &doc, nil
}

// ListIDsByOwner returns the ids of all documents owned by a user.
func (r *DocumentRepo) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM documents WHERE owner_id = ? ORDER BY title",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents by owner: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// ListAll returns every document, ordered by owner then title.
func (r *DocumentRepo) ListAll(ctx context.Context) ([]*DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, owner_id, title, content, version, updated_at FROM documents ORDER BY owner_id, title",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []*DocumentRecord
	for rows.Next() {
		var doc DocumentRecord
		var updatedAtStr string
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.Title, &doc.Content, &doc.Version, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.UpdatedAt, err = parseSQLiteTime(updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
		}
		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}

// Upsert inserts a document or updates it in place. A missing id gets a
// fresh UUID; an update with changed content bumps the version.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *DocumentRecord) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	existing, err := r.GetByID(ctx, doc.ID)
	if err != nil && err != ErrNotFound {
		return fmt.Errorf("failed to check existing document: %w", err)
	}

	doc.Version = 1
	if existing != nil {
		doc.Version = existing.Version
		if existing.Content != doc.Content {
			doc.Version = existing.Version + 1
		}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (id, owner_id, title, content, version, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (id) DO UPDATE SET
		 owner_id = excluded.owner_id, title = excluded.title,
		 content = excluded.content, version = excluded.version,
		 updated_at = CURRENT_TIMESTAMP`,
		doc.ID, doc.OwnerID, doc.Title, doc.Content, doc.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

// parseSQLiteTime handles the two timestamp formats SQLite emits.
func parseSQLiteTime(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", value)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
