// Package migrate runs the goose SQL migrations shipped with the binary.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where the SQL files live in the repository. It is only read
// from disk when creating or validating migrations.
const DefaultDir = "pkg/migrate/migrations"

const (
	embeddedDir = "migrations"
	dialect     = "postgres"
)

//go:embed migrations/*.sql
var embedded embed.FS

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

// Embedded exposes the compiled-in migration files.
func Embedded() fs.FS {
	return embedded
}

// Runner applies migrations from a filesystem to one database.
type Runner struct {
	db   *sql.DB
	fsys fs.FS
	dir  string
}

// NewRunner builds a runner over the embedded migrations.
func NewRunner(db *sql.DB) (*Runner, error) {
	return NewRunnerFS(db, embedded, embeddedDir)
}

// NewRunnerFS builds a runner over an arbitrary migration tree. A nil fsys
// reads dir from the OS filesystem.
func NewRunnerFS(db *sql.DB, fsys fs.FS, dir string) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	return &Runner{db: db, fsys: fsys, dir: dir}, nil
}

func (r *Runner) with(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(r.fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return fn()
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	return r.with(func() error {
		if err := goose.UpContext(ctx, r.db, r.dir); err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
		return nil
	})
}

// Down rolls back the latest migration.
func (r *Runner) Down(ctx context.Context) error {
	return r.with(func() error {
		if err := goose.DownContext(ctx, r.db, r.dir); err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
		return nil
	})
}

// Status prints the applied state of every migration to stdout.
func (r *Runner) Status(ctx context.Context) error {
	return r.with(func() error {
		if err := goose.StatusContext(ctx, r.db, r.dir); err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		return nil
	})
}

// Version reports the current database version.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	var current int64
	err := r.with(func() error {
		v, err := goose.GetDBVersionContext(ctx, r.db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		current = v
		return nil
	})
	return current, err
}

// ToVersion migrates up or down until the database sits at target.
func (r *Runner) ToVersion(ctx context.Context, target int64) error {
	return r.with(func() error {
		current, err := goose.GetDBVersionContext(ctx, r.db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current == target:
			return nil
		case current < target:
			if err := goose.UpToContext(ctx, r.db, r.dir, target); err != nil {
				return fmt.Errorf("goose up-to %d: %w", target, err)
			}
		default:
			if err := goose.DownToContext(ctx, r.db, r.dir, target); err != nil {
				return fmt.Errorf("goose down-to %d: %w", target, err)
			}
		}
		return nil
	})
}

// ParseVersion reads a YYYYMMDDHHMMSS migration version.
func ParseVersion(raw string) (int64, error) {
	if len(raw) != len(versionLayout) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	return v, nil
}
