package sqlite

import (
	"fmt"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memSeq atomic.Int64

// Open creates a GORM *DB backed by a SQLite file.
func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// OpenMemory creates a private in-memory database. Every call gets its own
// named shared-cache database so pooled connections see the same tables.
func OpenMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:eldergod_mem_%d?mode=memory&cache=shared&_busy_timeout=5000", memSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one writer at a time avoids "database table is locked" under shared cache
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
