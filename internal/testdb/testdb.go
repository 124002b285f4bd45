// Package testdb opens isolated in-memory SQLite databases carrying the full
// schema, for repository and engine tests.
package testdb

import (
	"context"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/binarycomp-backend/pkg/migrate"
)

var nameReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// Open returns a connection to a fresh database named after the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + nameReplacer.Replace(t.Name()) + "?mode=memory&cache=shared&_foreign_keys=off"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.EnsureSQLiteSchema(context.Background(), conn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return conn
}
