// Package sheet is a self-hosted stand-in for the spreadsheet web app that
// stores archive objects: a row table keyed by the object column headers, an
// image folder, and the action-based HTTP protocol in front of them.
package sheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/archivist/catalog"
)

// ErrDisabled is returned by writes when the table is switched off.
var ErrDisabled = errors.New("Sheets disabled")

// Table stores one object per row. Each row holds one cell per column in
// catalog.Columns order; array columns hold JSON text.
type Table struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// OpenTable opens (or creates) the SQLite database at path.
func OpenTable(path string) (*Table, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(1)
	t := &Table{db: db, now: time.Now}
	if err := t.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

// Close closes the underlying database.
func (t *Table) Close() error {
	return t.db.Close()
}

func (t *Table) ensureSchema() error {
	_, err := t.db.Exec(`
CREATE TABLE IF NOT EXISTS sheet_rows (
    pos INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL DEFAULT '',
    cells TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sheet_rows_id ON sheet_rows(id);
`)
	return err
}

// Headers returns the fixed header row.
func (t *Table) Headers() []string {
	return append([]string(nil), catalog.Columns...)
}

// AppendRow stores raw cells as typed into a sheet by hand. Missing cells
// read as empty strings.
func (t *Table) AppendRow(ctx context.Context, cells []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insert(ctx, cells)
}

// All returns every row with a non-empty id, in row order.
func (t *Table) All(ctx context.Context) ([]catalog.Object, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT cells FROM sheet_rows WHERE id <> '' ORDER BY pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	objects := []catalog.Object{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			continue
		}
		objects = append(objects, fromCells(cells))
	}
	return objects, rows.Err()
}

// Create appends obj, assigning a timestamp id when it has none. createdAt
// is kept when set; updatedAt is always stamped.
func (t *Table) Create(ctx context.Context, obj catalog.Object) (catalog.Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.create(ctx, obj)
}

func (t *Table) create(ctx context.Context, obj catalog.Object) (catalog.Object, error) {
	now := t.now()
	if obj.ID == "" {
		obj.ID = catalog.NewID(now)
	}
	stamp := now.UTC().Format(time.RFC3339)
	if obj.CreatedAt == "" {
		obj.CreatedAt = stamp
	}
	obj.UpdatedAt = stamp
	if err := t.insert(ctx, toCells(obj)); err != nil {
		return catalog.Object{}, err
	}
	return obj, nil
}

// Update rewrites the first row carrying obj.ID, or creates it when absent.
func (t *Table) Update(ctx context.Context, obj catalog.Object) (catalog.Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if strings.TrimSpace(obj.ID) == "" {
		obj.ID = ""
		return t.create(ctx, obj)
	}
	pos, err := t.find(ctx, obj.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return t.create(ctx, obj)
	}
	if err != nil {
		return catalog.Object{}, err
	}
	obj.UpdatedAt = t.now().UTC().Format(time.RFC3339)
	raw, err := json.Marshal(toCells(obj))
	if err != nil {
		return catalog.Object{}, err
	}
	if _, err := t.db.ExecContext(ctx, `UPDATE sheet_rows SET id = ?, cells = ? WHERE pos = ?`, obj.ID, string(raw), pos); err != nil {
		return catalog.Object{}, err
	}
	return obj, nil
}

// DeleteResult reports the outcome of Delete.
type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
	Error   string `json:"error,omitempty"`
}

// Delete removes the first row carrying id.
func (t *Table) Delete(ctx context.Context, id string) (DeleteResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, err := t.find(ctx, id)
	if errors.Is(err, sql.ErrNoRows) || id == "" {
		return DeleteResult{ID: id, Error: "Not found"}, nil
	}
	if err != nil {
		return DeleteResult{}, err
	}
	if _, err := t.db.ExecContext(ctx, `DELETE FROM sheet_rows WHERE pos = ?`, pos); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Deleted: true, ID: id}, nil
}

func (t *Table) find(ctx context.Context, id string) (int64, error) {
	var pos int64
	err := t.db.QueryRowContext(ctx, `SELECT pos FROM sheet_rows WHERE id = ? ORDER BY pos LIMIT 1`, id).Scan(&pos)
	return pos, err
}

func (t *Table) insert(ctx context.Context, cells []string) error {
	id := ""
	if len(cells) > 0 {
		id = strings.TrimSpace(cells[0])
	}
	raw, err := json.Marshal(cells)
	if err != nil {
		return err
	}
	if _, err := t.db.ExecContext(ctx, `INSERT INTO sheet_rows (id, cells) VALUES (?, ?)`, id, string(raw)); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

func toCells(obj catalog.Object) []string {
	text := obj.TextFields()
	cells := make([]string, len(catalog.Columns))
	for i, col := range catalog.Columns {
		switch col {
		case "images":
			cells[i] = arrayCell(obj.Images)
		case "keywords":
			cells[i] = arrayCell(obj.Keywords)
		case "parts":
			cells[i] = arrayCell(obj.Parts)
		default:
			cells[i] = text[col]
		}
	}
	return cells
}

func arrayCell[T any](v []T) string {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func fromCells(cells []string) catalog.Object {
	var obj catalog.Object
	for i, col := range catalog.Columns {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		switch col {
		case "images":
			obj.Images = catalog.NormalizePrimary(parseArray[catalog.Image](cell))
			if obj.Images == nil {
				obj.Images = []catalog.Image{}
			}
		case "keywords":
			obj.Keywords = parseArray[string](cell)
		case "parts":
			obj.Parts = parseArray[string](cell)
		default:
			obj.SetTextField(col, cell)
		}
	}
	return obj
}

// parseArray reads a JSON array cell. Empty and malformed cells are empty
// arrays.
func parseArray[T any](cell string) []T {
	out := []T{}
	if strings.TrimSpace(cell) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(cell), &out); err != nil || out == nil {
		return []T{}
	}
	return out
}
