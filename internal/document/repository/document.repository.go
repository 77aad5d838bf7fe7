package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/docerr"
	"collabdocs/pkg/logger"

	"github.com/lib/pq"
)

const documentColumns = `id, title, content, owner_email, owner_name, collaborators,
	last_updated_by_email, last_updated_by_name, last_updated_at, created_at`

// orderColumns whitelists the fields ListOrderedBy accepts.
var orderColumns = map[string]string{
	"lastUpdatedAt":   "last_updated_at",
	"last_updated_at": "last_updated_at",
	"createdAt":       "created_at",
	"created_at":      "created_at",
	"title":           "title",
}

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row scanner) (model.Snapshot, error) {
	var s model.Snapshot
	err := row.Scan(&s.ID, &s.Title, &s.Content, &s.OwnerEmail, &s.OwnerName, pq.Array(&s.Collaborators),
		&s.LastUpdatedByEmail, &s.LastUpdatedByName, &s.LastUpdatedAt, &s.CreatedAt)
	return s, err
}

// Create inserts a new document. Owner and creation time are fixed from here on.
func (r *DocumentRepository) Create(ctx context.Context, doc model.Snapshot) (model.Snapshot, error) {
	doc.Normalize()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO documents (id, title, content, owner_email, owner_name, collaborators,
			last_updated_by_email, last_updated_by_name, last_updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING `+documentColumns,
		doc.ID, doc.Title, doc.Content, doc.OwnerEmail, doc.OwnerName, pq.Array(doc.Collaborators),
		doc.LastUpdatedByEmail, doc.LastUpdatedByName)
	created, err := scanSnapshot(row)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document: %v", err)
		return model.Snapshot{}, translate(err)
	}
	return created, nil
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (model.Snapshot, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanSnapshot(row)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Sugar.Errorf("Failed to get doc %s: %v", id, err)
		}
		return model.Snapshot{}, translate(err)
	}
	return doc, nil
}

// Mutation computes the row to write from the locked current row. Returning
// an error aborts the write.
type Mutation func(current model.Snapshot) (model.Snapshot, error)

// PutReturningPrevious locks the row for id, applies mutate to it and writes
// the result in one transaction. It returns the row as it was before the
// write and as written. Title, content, collaborators and last-writer fields
// are taken from the mutation; last_updated_at never moves backwards.
func (r *DocumentRepository) PutReturningPrevious(ctx context.Context, id string, mutate Mutation) (model.Snapshot, model.Snapshot, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		logger.Sugar.Errorf("Failed to begin write of doc %s: %v", id, err)
		return model.Snapshot{}, model.Snapshot{}, translate(err)
	}
	defer tx.Rollback()

	before, err := scanSnapshot(tx.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Sugar.Errorf("Failed to lock doc %s: %v", id, err)
		}
		return model.Snapshot{}, model.Snapshot{}, translate(err)
	}

	doc, err := mutate(before.Clone())
	if err != nil {
		return model.Snapshot{}, model.Snapshot{}, err
	}
	doc.ID = id
	doc.Normalize()

	row := tx.QueryRowContext(ctx, `
		UPDATE documents SET title = $2, content = $3, collaborators = $4,
			last_updated_by_email = $5, last_updated_by_name = $6,
			last_updated_at = GREATEST(last_updated_at, NOW())
		WHERE id = $1
		RETURNING `+documentColumns,
		doc.ID, doc.Title, doc.Content, pq.Array(doc.Collaborators), doc.LastUpdatedByEmail, doc.LastUpdatedByName)
	written, err := scanSnapshot(row)
	if err != nil {
		logger.Sugar.Errorf("Failed to put doc %s: %v", id, err)
		return model.Snapshot{}, model.Snapshot{}, translate(err)
	}
	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit doc %s: %v", id, err)
		return model.Snapshot{}, model.Snapshot{}, translate(err)
	}
	return before, written, nil
}

func (r *DocumentRepository) ListAll(ctx context.Context) ([]model.Snapshot, error) {
	return r.list(ctx, `SELECT `+documentColumns+` FROM documents`)
}

// ListOrderedBy lists every document, newest first for time fields.
func (r *DocumentRepository) ListOrderedBy(ctx context.Context, field string) ([]model.Snapshot, error) {
	column, ok := orderColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: cannot order by %q", docerr.ErrValidation, field)
	}
	direction := "DESC"
	if column == "title" {
		direction = "ASC"
	}
	return r.list(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY `+column+` `+direction)
}

func (r *DocumentRepository) list(ctx context.Context, query string) ([]model.Snapshot, error) {
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents: %v", err)
		return nil, translate(err)
	}
	defer rows.Close()

	var docs []model.Snapshot
	for rows.Next() {
		doc, err := scanSnapshot(rows)
		if err != nil {
			logger.Sugar.Warnf("Skipping unreadable document row: %v", err)
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return docs, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", id, err)
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %s: %w", id, docerr.ErrNotFound)
	}
	return nil
}

// AddCollaborator appends email to the collaborator set unless already present.
func (r *DocumentRepository) AddCollaborator(ctx context.Context, id, email string) (model.Snapshot, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE documents SET collaborators = CASE
			WHEN $2 = ANY(collaborators) THEN collaborators
			ELSE array_append(collaborators, $2) END
		WHERE id = $1
		RETURNING `+documentColumns, id, strings.TrimSpace(email))
	doc, err := scanSnapshot(row)
	if err != nil {
		logger.Sugar.Errorf("Failed to add collaborator %s to doc %s: %v", email, id, err)
		return model.Snapshot{}, translate(err)
	}
	return doc, nil
}

// translate maps driver errors onto the docerr taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", docerr.ErrNotFound, err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", docerr.ErrStoreUnreachable, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			return fmt.Errorf("%w: %v", docerr.ErrStoreUnreachable, err)
		case pqErr.Code == "42501":
			return fmt.Errorf("%w: %v", docerr.ErrPermissionDenied, err)
		case pqErr.Code.Class() == "22", pqErr.Code.Class() == "23":
			return fmt.Errorf("%w: %v", docerr.ErrValidation, err)
		}
		return err
	}
	if docerr.IsTransient(err) {
		return fmt.Errorf("%w: %v", docerr.ErrStoreUnreachable, err)
	}
	return err
}
