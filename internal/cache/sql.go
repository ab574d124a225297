package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/dshills/chzapp/internal/component"
)

// DefaultTable is the table SQL uses when none is given.
const DefaultTable = "cache_storage"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQL stores JSON-encoded entries in a database table:
//
//	index_name TEXT PRIMARY KEY
//	type       TEXT      Go type of the stored value
//	content    TEXT      JSON
//	expires_at BIGINT    unix seconds, 0 for never
//
// The schema is installed when the cache starts and expired rows are
// deleted. A hook unit may declare a performInstall method, which runs after
// the schema is in place.
type SQL struct {
	component.Component

	opts  options
	db    *sqlx.DB
	table string
}

// NewSQL creates a cache on an open database.
func NewSQL(app component.Context, db *sqlx.DB, table string, opts ...Option) (*SQL, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil database", ErrInvalidArgument)
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: table name %q", ErrInvalidArgument, table)
	}

	s := &SQL{
		opts:  defaultOptions(),
		db:    db,
		table: table,
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	if err := s.Setup(s, app, s.opts.component...); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQL connects with driver and dsn and creates a cache on the connection.
func OpenSQL(app component.Context, driver, dsn, table string, opts ...Option) (*SQL, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s cache database: %w", driver, err)
	}
	s, err := NewSQL(app, db, table, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// CanHook implements component.Hookable.
func (s *SQL) CanHook() bool { return true }

// Exports implements component.Exporter.
func (s *SQL) Exports() map[string]func(args ...any) (any, error) {
	table := exports(s)
	table["Clean"] = func(args ...any) (any, error) {
		return s.Clean(context.Background())
	}
	return table
}

// EventMethods implements component.EventSource.
func (s *SQL) EventMethods() map[string]func(args ...any) error {
	return map[string]func(args ...any) error{
		"init": func(args ...any) error {
			ctx := context.Background()
			if err := s.install(ctx); err != nil {
				return err
			}
			_, err := s.Clean(ctx)
			return err
		},
	}
}

// Init implements component.Initializer.
func (s *SQL) Init() error {
	return s.Emit("init")
}

// Table returns the table name.
func (s *SQL) Table() string { return s.table }

// DB returns the underlying database.
func (s *SQL) DB() *sqlx.DB { return s.db }

func (s *SQL) install(ctx context.Context) error {
	if err := s.InstallSchema(ctx); err != nil {
		return err
	}
	if s.IsHookedMethod("performInstall") {
		if _, err := s.CallHooked("performInstall", true); err != nil {
			return fmt.Errorf("hooked install: %w", err)
		}
	}
	return nil
}

// InstallSchema creates the cache table if it does not exist.
func (s *SQL) InstallSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	index_name TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	content TEXT NOT NULL,
	expires_at BIGINT NOT NULL DEFAULT 0
)`, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("installing cache schema: %w", err)
	}
	return nil
}

// UninstallSchema drops the cache table.
func (s *SQL) UninstallSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.table); err != nil {
		return fmt.Errorf("dropping cache schema: %w", err)
	}
	return nil
}

// Clean deletes expired rows and returns how many were deleted.
func (s *SQL) Clean(ctx context.Context) (int64, error) {
	q := s.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE expires_at > 0 AND expires_at <= ?", s.table))
	res, err := s.db.ExecContext(ctx, q, s.opts.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cleaning cache: %w", err)
	}
	return res.RowsAffected()
}

type row struct {
	Type    string `db:"type"`
	Content string `db:"content"`
}

// Get implements Cache.
func (s *SQL) Get(ctx context.Context, index string) (any, bool, error) {
	q := s.db.Rebind(fmt.Sprintf(
		"SELECT type, content FROM %s WHERE index_name = ? AND (expires_at = 0 OR expires_at > ?)",
		s.table))

	var r row
	err := s.db.GetContext(ctx, &r, q, index, s.opts.now().Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache %s: %w", index, err)
	}
	v, err := decode(r.Content)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Create implements Cache.
func (s *SQL) Create(ctx context.Context, index string, data any, ttl time.Duration) (any, error) {
	value, err := produce(data)
	if err != nil {
		return nil, err
	}
	content, err := encode(value)
	if err != nil {
		return nil, err
	}

	var expires int64
	if life := s.opts.lifetime(ttl); life > 0 {
		expires = s.opts.now().Add(life).Unix()
	}

	q := s.db.Rebind(fmt.Sprintf(`INSERT INTO %s (index_name, type, content, expires_at) VALUES (?, ?, ?, ?)
ON CONFLICT (index_name) DO UPDATE SET type = EXCLUDED.type, content = EXCLUDED.content, expires_at = EXCLUDED.expires_at`,
		s.table))
	if _, err := s.db.ExecContext(ctx, q, index, fmt.Sprintf("%T", value), content, expires); err != nil {
		return nil, fmt.Errorf("writing cache %s: %w", index, err)
	}
	if err := s.Emit("create", index); err != nil {
		return nil, err
	}
	return decode(content)
}

// Remove implements Cache.
func (s *SQL) Remove(ctx context.Context, index string) (bool, error) {
	q := s.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE index_name = ?", s.table))
	res, err := s.db.ExecContext(ctx, q, index)
	if err != nil {
		return false, fmt.Errorf("removing cache %s: %w", index, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if err := s.Emit("remove", index); err != nil {
		return true, err
	}
	return true, nil
}

// Parse implements Cache.
func (s *SQL) Parse(ctx context.Context, index string, data any, ttl time.Duration, force bool) (any, error) {
	return parse(ctx, s, index, data, ttl, force)
}

// Close releases hook units and the database.
func (s *SQL) Close() error {
	err := s.Component.Close()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

var _ Cache = (*SQL)(nil)
