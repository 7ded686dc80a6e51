// Package store implements the persistent store (C2): a single-writer,
// transactionally updated key-value store backed by SQLite, with a
// type-preserving binary value encoding and a scripted read-modify-write
// primitive whose atomicity survives user errors.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/lmberr"
)

// AfterCommit is invoked asynchronously after a successful Put, Delete, or
// Update commit. It never blocks the commit itself and its error (if any)
// is the caller's to log — see internal/store/mirror for the S3 durability
// mirror that hangs off this hook.
type AfterCommit func(ctx context.Context, path string)

// Store is a single SQLite-backed key-value store. The zero Store is not
// usable; construct one with Open.
type Store struct {
	db   *sql.DB
	path string

	mu       sync.Mutex
	updating bool

	afterCommit AfterCommit
}

// Open opens (creating if necessary) the SQLite file at path, applies the
// store's pragmas and schema, and returns a ready Store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, lmberr.Wrap(lmberr.KindStoreBackend, "open store", err)
	}
	db.SetMaxOpenConns(1) // single-writer invariant; SQLite serializes anyway

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, lmberr.Wrap(lmberr.KindStoreBackend, "apply pragma "+p, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetAfterCommit installs a hook run (in a new goroutine) after each
// successful write commit. Passing nil disables the hook.
func (s *Store) SetAfterCommit(fn AfterCommit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterCommit = fn
}

func (s *Store) notifyCommit(ctx context.Context) {
	s.mu.Lock()
	fn := s.afterCommit
	path := s.path
	s.mu.Unlock()
	if fn == nil {
		return
	}
	go fn(context.WithoutCancel(ctx), path)
}

const schemaVersion = 1

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS store(
			name TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			type_hint TEXT NOT NULL,
			size INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return lmberr.Wrap(lmberr.KindStoreBackend, "migrate schema", err)
		}
	}
	var applied bool
	row := s.db.QueryRow(`SELECT 1 FROM schema_migrations WHERE version = ?`, schemaVersion)
	if err := row.Scan(new(int)); err == nil {
		applied = true
	}
	if !applied {
		if _, err := s.db.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, schemaVersion); err != nil {
			return lmberr.Wrap(lmberr.KindStoreBackend, "record schema version", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the store's backing file path.
func (s *Store) Path() string { return s.path }

// KeyInfo is one row of metadata returned by List, for `lmb store
// inspect` — it intentionally omits the value itself (use Get for that)
// since listing is meant to stay cheap over large stores.
type KeyInfo struct {
	Name      string
	TypeHint  string
	Size      int64
	UpdatedAt time.Time
}

// List returns metadata for every key in the store, ordered by name.
func (s *Store) List(ctx context.Context) ([]KeyInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, type_hint, size, updated_at FROM store ORDER BY name`)
	if err != nil {
		return nil, lmberr.Wrap(lmberr.KindStoreBackend, "list keys", err)
	}
	defer rows.Close()

	var out []KeyInfo
	for rows.Next() {
		var k KeyInfo
		var updatedAtMs int64
		if err := rows.Scan(&k.Name, &k.TypeHint, &k.Size, &updatedAtMs); err != nil {
			return nil, lmberr.Wrap(lmberr.KindStoreBackend, "scan key row", err)
		}
		k.UpdatedAt = time.UnixMilli(updatedAtMs)
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, lmberr.Wrap(lmberr.KindStoreBackend, "iterate key rows", err)
	}
	return out, nil
}

// Get reads the named key. ok is false if the key is absent.
func (s *Store) Get(ctx context.Context, name string) (value codec.Value, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM store WHERE name = ?`, name)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return codec.Nil, false, nil
		}
		return codec.Nil, false, lmberr.Wrap(lmberr.KindStoreBackend, "get "+name, err)
	}
	v, err := codec.Decode(blob)
	if err != nil {
		return codec.Nil, false, lmberr.Wrap(lmberr.KindValueCodec, "decode stored value for "+name, err)
	}
	return v, true, nil
}

// Put writes name=value, overwriting any existing entry.
func (s *Store) Put(ctx context.Context, name string, value codec.Value) error {
	blob, err := codec.Encode(value)
	if err != nil {
		return lmberr.Wrap(lmberr.KindValueCodec, "encode value for "+name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO store(name, value, type_hint, size, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value=excluded.value, type_hint=excluded.type_hint,
			size=excluded.size, updated_at=excluded.updated_at
	`, name, blob, value.Kind().String(), len(blob), time.Now().UnixMilli())
	if err != nil {
		return lmberr.Wrap(lmberr.KindStoreBackend, "put "+name, err)
	}
	s.notifyCommit(ctx)
	return nil
}

// Delete removes the named key. existed reports whether it was present.
func (s *Store) Delete(ctx context.Context, name string) (existed bool, err error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM store WHERE name = ?`, name)
	if err != nil {
		return false, lmberr.Wrap(lmberr.KindStoreBackend, "delete "+name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, lmberr.Wrap(lmberr.KindStoreBackend, "delete "+name, err)
	}
	if n > 0 {
		s.notifyCommit(ctx)
	}
	return n > 0, nil
}

// UpdateFn is the callback Update invokes with the loaded mutable table. It
// returns the value to hand back to the caller, or an error to roll back
// the whole transaction — no spec key is persisted in that case.
type UpdateFn func(v map[string]codec.Value) (codec.Value, error)

// Update performs the scripted read-modify-write primitive: begin an
// exclusive transaction, load spec's keys (filling absent-and-defaulted
// keys, nil otherwise), invoke fn, and on success persist every spec key's
// final value from fn's table and commit; on error or panic, roll back
// with no key mutated and re-raise.
//
// Re-entrant calls (a fn that calls Update again on the same Store) fail
// immediately with reentrant_update — nesting is never supported regardless
// of depth, grounded on a single owned boolean rather than a counter.
func (s *Store) Update(ctx context.Context, spec Spec, fn UpdateFn) (result codec.Value, err error) {
	s.mu.Lock()
	if s.updating {
		s.mu.Unlock()
		return codec.Nil, lmberr.New(lmberr.KindReentrantUpdate, "update called re-entrantly on the same store")
	}
	s.updating = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.updating = false
		s.mu.Unlock()
	}()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return codec.Nil, lmberr.Wrap(lmberr.KindStoreBackend, "begin update transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	v := make(map[string]codec.Value, len(spec.Entries))
	for _, e := range spec.Entries {
		row := tx.QueryRowContext(ctx, `SELECT value FROM store WHERE name = ?`, e.Name)
		var blob []byte
		switch scanErr := row.Scan(&blob); scanErr {
		case nil:
			val, decErr := codec.Decode(blob)
			if decErr != nil {
				return codec.Nil, lmberr.Wrap(lmberr.KindValueCodec, "decode stored value for "+e.Name, decErr)
			}
			v[e.Name] = val
		case sql.ErrNoRows:
			if e.HasDefault {
				v[e.Name] = e.Default
			} else {
				v[e.Name] = codec.Nil
			}
		default:
			return codec.Nil, lmberr.Wrap(lmberr.KindStoreBackend, "load "+e.Name, scanErr)
		}
	}

	result, fnErr := runUpdateFn(fn, v)
	if fnErr != nil {
		return codec.Nil, fnErr
	}

	now := time.Now().UnixMilli()
	for _, e := range spec.Entries {
		val := v[e.Name]
		blob, encErr := codec.Encode(val)
		if encErr != nil {
			return codec.Nil, lmberr.Wrap(lmberr.KindValueCodec, "encode value for "+e.Name, encErr)
		}
		_, execErr := tx.ExecContext(ctx, `
			INSERT INTO store(name, value, type_hint, size, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET value=excluded.value, type_hint=excluded.type_hint,
				size=excluded.size, updated_at=excluded.updated_at
		`, e.Name, blob, val.Kind().String(), len(blob), now)
		if execErr != nil {
			return codec.Nil, lmberr.Wrap(lmberr.KindStoreBackend, "persist "+e.Name, execErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return codec.Nil, lmberr.Wrap(lmberr.KindStoreBackend, "commit update", err)
	}
	committed = true
	s.notifyCommit(ctx)
	return result, nil
}

// runUpdateFn invokes fn and converts a panic (e.g. from a Lua error
// propagated as a Go panic at the sandbox boundary) into the same rollback
// path as a returned error, preserving the original reason.
func runUpdateFn(fn UpdateFn, v map[string]codec.Value) (result codec.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*lmberr.Error); ok {
				err = e
				return
			}
			err = lmberr.New(lmberr.KindRuntime, fmt.Sprintf("update callback panicked: %v", r))
		}
	}()
	return fn(v)
}
