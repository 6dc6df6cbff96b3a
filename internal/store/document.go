package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tranvq/exambank/internal/model"
)

const documentColumns = `id, title, description, content, file_path, file_type, owner_id, created_at, updated_at`

// CreateDocument stores a document with its extracted content.
func (s *Store) CreateDocument(d model.Document) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO documents (title, description, content, file_path, file_type, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Title, d.Description, d.Content, d.FilePath, d.FileType, d.OwnerID, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetDocument returns a document by ID.
func (s *Store) GetDocument(id int64) (model.Document, error) {
	var d model.Document
	err := s.db.QueryRow(
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Title, &d.Description, &d.Content, &d.FilePath, &d.FileType,
		&d.OwnerID, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, fmt.Errorf("document %d: %w", id, model.ErrNotFound)
	}
	return d, err
}

// ListDocumentsByOwner returns an owner's documents, newest first.
// A limit of 0 means no limit.
func (s *Store) ListDocumentsByOwner(ownerID int64, limit int) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE owner_id = ? ORDER BY created_at DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

// SearchDocuments matches title, description, or content,
// case-insensitively. An ownerID of 0 searches all documents.
func (s *Store) SearchDocuments(query string, ownerID int64) ([]model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents
		 WHERE (title LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE OR content LIKE ? COLLATE NOCASE)`
	pattern := "%" + query + "%"
	args := []any{pattern, pattern, pattern}
	if ownerID != 0 {
		q += ` AND owner_id = ?`
		args = append(args, ownerID)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

// UpdateDocument replaces the editable fields of a document.
func (s *Store) UpdateDocument(id int64, title, description, content string) error {
	_, err := s.db.Exec(
		`UPDATE documents SET title = ?, description = ?, content = ?, updated_at = ? WHERE id = ?`,
		title, description, content, time.Now().UTC(), id,
	)
	return err
}

// DeleteDocument removes a document.
func (s *Store) DeleteDocument(id int64) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	return err
}

func collectDocuments(rows *sql.Rows) ([]model.Document, error) {
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Description, &d.Content, &d.FilePath,
			&d.FileType, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
