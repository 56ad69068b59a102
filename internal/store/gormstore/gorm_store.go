// Package gormstore implements journal persistence on Gorm + SQLite.
package gormstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/apple-taste/trade-view/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store owns the sqlite database holding trades, strategies, snapshots and
// forex accounts.
type Store struct {
	db *gorm.DB
}

// Open initializes the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: 数据库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	return openDSN(dsn)
}

// OpenMemory opens a throwaway in-memory database, used by tests. Each call
// gets its own database so parallel tests never share state.
func OpenMemory() (*Store, error) {
	name := fmt.Sprintf("journal-test-%d", atomic.AddInt64(&memSeq, 1))
	return openDSN(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}

var memSeq int64

func openDSN(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&model.User{},
		&model.Strategy{},
		&model.StockTrade{},
		&model.ForexTrade{},
		&model.CapitalSnapshot{},
		&model.ForexAccount{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormDB exposes the underlying *gorm.DB (read-only reference).
func (s *Store) GormDB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
