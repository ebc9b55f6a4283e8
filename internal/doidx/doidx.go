// Package doidx maintains a local SQLite index mapping DOIs to library item
// keys, so repeated lookups avoid a full library scan.
package doidx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scholium/zotero-go/s2"
	"github.com/scholium/zotero-go/zotero"
)

const schema = `
CREATE TABLE IF NOT EXISTS doi_index (
  doi TEXT PRIMARY KEY,
  item_key TEXT NOT NULL,
  version INTEGER NOT NULL,
  title TEXT
);
CREATE INDEX IF NOT EXISTS idx_doi_index_item_key ON doi_index(item_key);
CREATE TABLE IF NOT EXISTS _meta (
  key TEXT PRIMARY KEY,
  value TEXT
);`

// Index is a DOI-to-item-key lookup table backed by SQLite.
type Index struct {
	db *sql.DB
}

// Entry is one indexed attachment of a DOI to a library item.
type Entry struct {
	DOI     string
	ItemKey string
	Version int
	Title   string
}

// Open opens (and initializes when necessary) the index database at path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Lookup returns the item key indexed for a DOI, or "" when the DOI is not
// indexed. The DOI is normalized before the lookup.
func (ix *Index) Lookup(ctx context.Context, doi string) (string, error) {
	var key sql.NullString
	err := ix.db.QueryRowContext(ctx,
		"SELECT item_key FROM doi_index WHERE doi = ?", s2.NormalizeDOI(doi)).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return key.String, nil
}

// Put records or replaces the index entry for a DOI.
func (ix *Index) Put(ctx context.Context, e Entry) error {
	_, err := ix.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO doi_index (doi, item_key, version, title) VALUES (?, ?, ?, ?)`,
		s2.NormalizeDOI(e.DOI), e.ItemKey, e.Version, e.Title)
	return err
}

// Entries returns every indexed entry, ordered by DOI.
func (ix *Index) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := ix.db.QueryContext(ctx,
		"SELECT doi, item_key, version, title FROM doi_index ORDER BY doi")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var title sql.NullString
		if err := rows.Scan(&e.DOI, &e.ItemKey, &e.Version, &title); err != nil {
			return nil, err
		}
		e.Title = title.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of indexed DOIs.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM doi_index").Scan(&n)
	return n, err
}

// LastBuilt returns the time of the last successful Build, or the zero time
// when the index has never been built.
func (ix *Index) LastBuilt(ctx context.Context) (time.Time, error) {
	var raw sql.NullString
	err := ix.db.QueryRowContext(ctx,
		"SELECT value FROM _meta WHERE key = 'last_built'").Scan(&raw)
	if err == sql.ErrNoRows || !raw.Valid {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw.String)
}

func (ix *Index) setLastBuilt(ctx context.Context, t time.Time) error {
	_, err := ix.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO _meta (key, value) VALUES ('last_built', ?)`,
		t.Format(time.RFC3339))
	return err
}

// Build scans the whole library and indexes every item carrying a DOI.
// Existing entries are replaced; items without DOIs are skipped.
func (ix *Index) Build(ctx context.Context, client *zotero.Client) (int, error) {
	first, err := client.Items(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing items: %w", err)
	}
	items, err := client.Everything(ctx, first)
	if err != nil {
		return 0, fmt.Errorf("draining item pages: %w", err)
	}

	indexed := 0
	for _, item := range items {
		data := item.Data()
		doi, _ := data["DOI"].(string)
		if doi == "" {
			continue
		}
		title, _ := data["title"].(string)
		err := ix.Put(ctx, Entry{
			DOI:     doi,
			ItemKey: item.Key(),
			Version: item.Version(),
			Title:   title,
		})
		if err != nil {
			return indexed, fmt.Errorf("indexing %s: %w", item.Key(), err)
		}
		indexed++
	}
	if err := ix.setLastBuilt(ctx, time.Now().UTC()); err != nil {
		return indexed, err
	}
	return indexed, nil
}
