package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Queries use $N placeholders, which both lib/pq and go-sqlite3 bind by position.

// UpsertDocument inserts a document or refreshes the stored row for its link.
func UpsertDocument(db DBExecutor, d Document) error {
	link := strings.TrimSpace(d.Link)
	if link == "" {
		return fmt.Errorf("link must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO documents (link, title, author, body, year)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT(link)
			  DO UPDATE SET
			    title = excluded.title,
			    author = excluded.author,
			    body = excluded.body,
			    year = excluded.year,
			    updated_at = CURRENT_TIMESTAMP`,
		link, d.Title, d.Author, d.Body, d.Year)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// ReplaceCategories stores cats as the ordered category list of link.
func ReplaceCategories(db DBExecutor, link string, cats []string) error {
	if strings.TrimSpace(link) == "" {
		return fmt.Errorf("link must be non-empty")
	}
	if _, err := db.Exec(`DELETE FROM document_categories WHERE link = $1`, link); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	for i, c := range cats {
		if _, err := db.Exec(`INSERT INTO document_categories (link, position, category) VALUES ($1, $2, $3)`, link, i, c); err != nil {
			return fmt.Errorf("insert category %q: %w", c, err)
		}
	}
	return nil
}

// UpsertSource records the catalog reference of a document.
func UpsertSource(db DBExecutor, e SourceEdge) error {
	if strings.TrimSpace(e.Link) == "" || strings.TrimSpace(e.Ref) == "" {
		return fmt.Errorf("link and ref must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO document_sources (link, ref) VALUES ($1, $2)
			  ON CONFLICT(link) DO UPDATE SET ref = excluded.ref`, e.Link, e.Ref)
	if err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}
	return nil
}

// DeleteSource removes the catalog reference of a document, if any.
func DeleteSource(db DBExecutor, link string) error {
	if _, err := db.Exec(`DELETE FROM document_sources WHERE link = $1`, link); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return nil
}

// UpsertDescriptor records the material type found for a document.
func UpsertDescriptor(db DBExecutor, d SourceDescriptor) error {
	if strings.TrimSpace(d.Link) == "" {
		return fmt.Errorf("link must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO source_descriptors (link, descriptor) VALUES ($1, $2)
			  ON CONFLICT(link) DO UPDATE SET descriptor = excluded.descriptor`, d.Link, d.Descriptor)
	if err != nil {
		return fmt.Errorf("upsert descriptor: %w", err)
	}
	return nil
}

// GetDocument returns the stored document for link, or sql.ErrNoRows.
func GetDocument(db DBExecutor, link string) (*Document, error) {
	d := Document{Link: link}
	err := db.QueryRow(`SELECT title, author, body, year FROM documents WHERE link = $1`, link).
		Scan(&d.Title, &d.Author, &d.Body, &d.Year)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetCategories returns the categories of link in stored order.
func GetCategories(db DBExecutor, link string) ([]string, error) {
	rows, err := db.Query(`SELECT category FROM document_categories WHERE link = $1 ORDER BY position`, link)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSources returns all source edges ordered by link.
func GetSources(db DBExecutor) ([]SourceEdge, error) {
	rows, err := db.Query(`SELECT link, ref FROM document_sources ORDER BY link`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SourceEdge
	for rows.Next() {
		var e SourceEdge
		if err := rows.Scan(&e.Link, &e.Ref); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDescriptor returns the stored descriptor for link, or sql.ErrNoRows.
func GetDescriptor(db DBExecutor, link string) (string, error) {
	var d string
	err := db.QueryRow(`SELECT descriptor FROM source_descriptors WHERE link = $1`, link).Scan(&d)
	return d, err
}
