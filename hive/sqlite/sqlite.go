// Package sqlite provides a durable hive.Key backend stored in a single SQLite file.
//
// # Database Configuration
//
//   - WAL mode: concurrent readers during writes
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: deleting a section cascades to its subtree and parameters
//
// Sections created with hive.CreateVolatile are removed every time the file is opened,
// mirroring registry keys that do not survive a restart.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jacentio/regtree/hive"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Hive is a SQLite-backed store holding any number of named roots.
type Hive struct {
	db *sql.DB
}

// Open creates or opens a hive file at the given path, applying pragmas and the schema
// and discarding volatile sections left by a previous process.
func Open(path string) (*Hive, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if _, err := db.Exec("DELETE FROM sections WHERE volatile = 1"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to drop volatile sections: %w", err)
	}

	return &Hive{db: db}, nil
}

// Close closes the database. Handles obtained from the hive must not be used afterwards.
func (h *Hive) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

// DB returns the underlying sql.DB.
func (h *Hive) DB() *sql.DB {
	return h.db
}

// Root returns a writable handle to the named root, creating it on first use.
func (h *Hive) Root(ctx context.Context, name string) (hive.Key, error) {
	folded := hive.Fold(name)

	var id int64
	var stored string
	err := h.db.QueryRowContext(ctx,
		"SELECT id, name FROM sections WHERE parent_id IS NULL AND folded = ?", folded,
	).Scan(&id, &stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := h.db.ExecContext(ctx,
			"INSERT INTO sections (parent_id, name, folded) VALUES (NULL, ?, ?)", name, folded)
		if err != nil {
			return nil, fmt.Errorf("create root %q: %w", name, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("create root %q: %w", name, err)
		}
		stored = name
	case err != nil:
		return nil, fmt.Errorf("open root %q: %w", name, err)
	}

	return &key{hive: h, id: id, name: stored, writable: true}, nil
}

// dsn carries the connection settings as go-sqlite3 parameters, which the driver
// applies to every connection it opens. Foreign keys must be on for cascading deletes.
func dsn(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")
	return path + "?" + params.Encode()
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type key struct {
	hive     *Hive
	id       int64
	name     string
	writable bool
	closed   atomic.Bool
}

// section is a resolved row of the sections table.
type section struct {
	id       int64
	name     string
	volatile bool
}

// alive verifies the handle is open and its section still exists.
func (k *key) alive(ctx context.Context, q querier) (section, error) {
	if k.closed.Load() {
		return section{}, hive.ErrKeyClosed
	}
	s := section{id: k.id, name: k.name}
	err := q.QueryRowContext(ctx, "SELECT volatile FROM sections WHERE id = ?", k.id).Scan(&s.volatile)
	if errors.Is(err, sql.ErrNoRows) {
		return section{}, hive.ErrKeyDeleted
	}
	if err != nil {
		return section{}, fmt.Errorf("check key %q: %w", k.name, err)
	}
	return s, nil
}

// child looks up a direct child by name. found is false when it does not exist.
func child(ctx context.Context, q querier, parent section, name string) (section, bool, error) {
	c := section{}
	err := q.QueryRowContext(ctx,
		"SELECT id, name, volatile FROM sections WHERE parent_id = ? AND folded = ?",
		parent.id, hive.Fold(name),
	).Scan(&c.id, &c.name, &c.volatile)
	if errors.Is(err, sql.ErrNoRows) {
		return section{}, false, nil
	}
	if err != nil {
		return section{}, false, fmt.Errorf("lookup %q: %w", name, err)
	}
	c.name = parent.name + hive.Separator + c.name
	return c, true, nil
}

func resolve(ctx context.Context, q querier, start section, segments []string) (section, bool, error) {
	cur := start
	for _, s := range segments {
		next, found, err := child(ctx, q, cur, s)
		if err != nil || !found {
			return section{}, found, err
		}
		cur = next
	}
	return cur, true, nil
}

func (k *key) Name() string {
	return k.name
}

func (k *key) CreateSubKey(ctx context.Context, path string, opts hive.CreateOptions) (hive.Key, error) {
	if err := opts.Option.Validate(); err != nil {
		return nil, err
	}
	if opts.Option == hive.CreateBackupRestore {
		return nil, fmt.Errorf("%w: %s", hive.ErrUnsupported, opts.Option)
	}
	segments, err := hive.SplitPath(path)
	if err != nil {
		return nil, err
	}

	tx, err := k.hive.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create subkey: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	cur, err := k.alive(ctx, tx)
	if err != nil {
		return nil, err
	}

	volatile := opts.Option == hive.CreateVolatile
	for _, s := range segments {
		next, found, err := child(ctx, tx, cur, s)
		if err != nil {
			return nil, err
		}
		if !found {
			if !k.writable {
				return nil, hive.ErrReadOnly
			}
			if cur.volatile && !volatile {
				return nil, hive.ErrChildMustBeVolatile
			}
			res, err := tx.ExecContext(ctx,
				"INSERT INTO sections (parent_id, name, folded, volatile) VALUES (?, ?, ?, ?)",
				cur.id, s, hive.Fold(s), volatile,
			)
			if err != nil {
				return nil, fmt.Errorf("create subkey %q: %w", s, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("create subkey %q: %w", s, err)
			}
			next = section{id: id, name: cur.name + hive.Separator + s, volatile: volatile}
		}
		cur = next
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create subkey: commit: %w", err)
	}
	return &key{hive: k.hive, id: cur.id, name: cur.name, writable: opts.Writable}, nil
}

func (k *key) OpenSubKey(ctx context.Context, path string, writable bool) (hive.Key, bool, error) {
	segments, err := hive.SplitPath(path)
	if err != nil {
		return nil, false, err
	}

	start, err := k.alive(ctx, k.hive.db)
	if err != nil {
		return nil, false, err
	}
	target, found, err := resolve(ctx, k.hive.db, start, segments)
	if err != nil || !found {
		return nil, false, err
	}
	return &key{hive: k.hive, id: target.id, name: target.name, writable: writable}, true, nil
}

func (k *key) GetValue(ctx context.Context, name string) (hive.Value, bool, error) {
	if err := hive.ValidateValueName(name); err != nil {
		return hive.Value{}, false, err
	}
	if _, err := k.alive(ctx, k.hive.db); err != nil {
		return hive.Value{}, false, err
	}

	var kind uint32
	var data []byte
	err := k.hive.db.QueryRowContext(ctx,
		"SELECT kind, data FROM parameters WHERE section_id = ? AND folded = ?",
		k.id, hive.Fold(name),
	).Scan(&kind, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return hive.Value{}, false, nil
	}
	if err != nil {
		return hive.Value{}, false, fmt.Errorf("get value %q: %w", name, err)
	}

	v, err := hive.Decode(hive.Kind(kind), data)
	if err != nil {
		return hive.Value{}, false, fmt.Errorf("get value %q: %w", name, err)
	}
	return v, true, nil
}

func (k *key) SetValue(ctx context.Context, name string, value hive.Value) error {
	if err := hive.ValidateValueName(name); err != nil {
		return err
	}
	if !value.Kind().Valid() {
		return fmt.Errorf("%w: %s", hive.ErrUnsupportedType, value.Kind())
	}
	if _, err := k.alive(ctx, k.hive.db); err != nil {
		return err
	}
	if !k.writable {
		return hive.ErrReadOnly
	}

	_, err := k.hive.db.ExecContext(ctx, `
		INSERT INTO parameters (section_id, name, folded, kind, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(section_id, folded) DO UPDATE SET kind = excluded.kind, data = excluded.data
	`,
		k.id, name, hive.Fold(name), uint32(value.Kind()), value.Encode(),
	)
	if err != nil {
		return fmt.Errorf("set value %q: %w", name, err)
	}
	return nil
}

func (k *key) DeleteValue(ctx context.Context, name string) error {
	if _, err := k.alive(ctx, k.hive.db); err != nil {
		return err
	}
	if !k.writable {
		return hive.ErrReadOnly
	}

	res, err := k.hive.db.ExecContext(ctx,
		"DELETE FROM parameters WHERE section_id = ? AND folded = ?", k.id, hive.Fold(name))
	if err != nil {
		return fmt.Errorf("delete value %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete value %q: %w", name, err)
	}
	if n == 0 {
		return hive.ErrValueNotFound
	}
	return nil
}

func (k *key) DeleteSubKey(ctx context.Context, path string) error {
	return k.deleteSubKey(ctx, path, false)
}

func (k *key) DeleteSubKeyTree(ctx context.Context, path string) error {
	return k.deleteSubKey(ctx, path, true)
}

func (k *key) deleteSubKey(ctx context.Context, path string, recursive bool) error {
	segments, err := hive.SplitPath(path)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("%w: cannot delete the key itself", hive.ErrInvalidPath)
	}

	tx, err := k.hive.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete subkey: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	start, err := k.alive(ctx, tx)
	if err != nil {
		return err
	}
	if !k.writable {
		return hive.ErrReadOnly
	}

	target, found, err := resolve(ctx, tx, start, segments)
	if err != nil {
		return err
	}
	if !found {
		return hive.ErrKeyNotFound
	}

	if !recursive {
		var children int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sections WHERE parent_id = ?", target.id,
		).Scan(&children); err != nil {
			return fmt.Errorf("delete subkey: count children: %w", err)
		}
		if children > 0 {
			return hive.ErrHasSubKeys
		}
	}

	// ON DELETE CASCADE removes descendants and parameters.
	if _, err := tx.ExecContext(ctx, "DELETE FROM sections WHERE id = ?", target.id); err != nil {
		return fmt.Errorf("delete subkey %q: %w", target.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete subkey: commit: %w", err)
	}
	return nil
}

func (k *key) ValueCount(ctx context.Context) (int, error) {
	return k.count(ctx, "SELECT COUNT(*) FROM parameters WHERE section_id = ?")
}

func (k *key) SubKeyCount(ctx context.Context) (int, error) {
	return k.count(ctx, "SELECT COUNT(*) FROM sections WHERE parent_id = ?")
}

func (k *key) count(ctx context.Context, query string) (int, error) {
	if _, err := k.alive(ctx, k.hive.db); err != nil {
		return 0, err
	}
	var n int
	if err := k.hive.db.QueryRowContext(ctx, query, k.id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %q: %w", k.name, err)
	}
	return n, nil
}

func (k *key) ValueNames(ctx context.Context) ([]string, error) {
	return k.names(ctx, "SELECT name FROM parameters WHERE section_id = ? ORDER BY folded")
}

func (k *key) SubKeyNames(ctx context.Context) ([]string, error) {
	return k.names(ctx, "SELECT name FROM sections WHERE parent_id = ? ORDER BY folded")
}

func (k *key) names(ctx context.Context, query string) ([]string, error) {
	if _, err := k.alive(ctx, k.hive.db); err != nil {
		return nil, err
	}

	rows, err := k.hive.db.QueryContext(ctx, query, k.id)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", k.name, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list %q: %w", k.name, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (k *key) Close() error {
	k.closed.Store(true)
	return nil
}
