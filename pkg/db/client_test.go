package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), GormConfig())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := FromGorm(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := FromGorm(db)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic rollback, got %d rows", count)
	}
}

func TestPing(t *testing.T) {
	client := FromGorm(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestErrorClassifiers(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", unique), "orders_order_number_key") {
		t.Fatal("expected unique violation")
	}
	if IsUniqueViolation(unique, "other_key") {
		t.Fatal("expected constraint mismatch")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: orders.offer_id"), "offer_id") {
		t.Fatal("expected sqlite unique violation")
	}

	if !IsTransient(&pgconn.PgError{Code: "40001"}) {
		t.Fatal("expected serialization failure to be transient")
	}
	if !IsTransient(&pgconn.PgError{Code: "40P01"}) {
		t.Fatal("expected deadlock to be transient")
	}
	if IsTransient(unique) {
		t.Fatal("unique violation is not transient")
	}
	if IsTransient(nil) {
		t.Fatal("nil is not transient")
	}
}

func TestNew_SelectsDriver(t *testing.T) {
	ctx := context.Background()

	client, err := New(ctx, config.DBConfig{
		DSN:          "file:new_selects_driver?mode=memory&cache=shared",
		Driver:       "SQLite",
		MaxOpenConns: 1,
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.Equal(t, DriverSQLite, client.Driver())
	require.NoError(t, client.Ping(ctx))

	_, err = New(ctx, config.DBConfig{DSN: "mysql://localhost", Driver: "mysql"}, nil)
	require.ErrorContains(t, err, "unsupported database driver")

	_, err = New(ctx, config.DBConfig{Driver: DriverSQLite}, nil)
	require.ErrorContains(t, err, "DSN is required")
}

func TestFromGorm_ReportsDialect(t *testing.T) {
	require.Equal(t, DriverSQLite, FromGorm(newTestDB(t)).Driver())
}

func TestWithTx_RequiresBody(t *testing.T) {
	client := FromGorm(newTestDB(t))
	require.Error(t, client.WithTx(context.Background(), nil))
}

func openLogged(t *testing.T, slow time.Duration) (*gorm.DB, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Format: logger.FormatJSON, Output: &buf})
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 newQueryLogger(logg, slow),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	buf.Reset()
	return conn, &buf
}

func TestQueryLogger_FailuresOnly(t *testing.T) {
	conn, buf := openLogged(t, 0)

	var row testModel
	err := conn.First(&row).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.Empty(t, buf.String())

	require.Error(t, conn.Exec("SELECT * FROM missing_table").Error)
	require.Contains(t, buf.String(), "db.query_failed")
	require.Contains(t, buf.String(), "missing_table")
}

func TestQueryLogger_SlowStatements(t *testing.T) {
	conn, buf := openLogged(t, time.Nanosecond)

	require.NoError(t, conn.Create(&testModel{Name: "slow"}).Error)
	require.Contains(t, buf.String(), "db.query_slow")
	require.Contains(t, buf.String(), `"rows":1`)
}

func TestQueryLogger_SilentWithoutLogger(t *testing.T) {
	q := newQueryLogger(nil, time.Nanosecond)
	require.False(t, q.enabled(gormlogger.Error))
	q.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		t.Fatal("statement should not be rendered")
		return "", 0
	}, errors.New("boom"))
}
