// Package history persists a record of each decode run to a SQLite
// database via GORM, the way the teacher's internal/database package
// persists DMR user records — always as a post-decode side effect, never
// from inside a decoder package.
package history

import (
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// DecodeRun is one row of decode-run history.
type DecodeRun struct {
	ID            string `gorm:"primarykey;size:36"`
	StartedAt     time.Time
	DecoderKind   string `gorm:"size:16"` // "fano" or "stack"
	Success       bool
	Score         float64
	NodeCount     uint64
	MaxDepth      int
	NbMoves       uint64
	FailureReason string `gorm:"size:256"`
}

// TableName specifies the table name for GORM.
func (DecodeRun) TableName() string { return "decode_runs" }

// Store wraps the GORM database instance holding decode-run history.
type Store struct {
	db *gorm.DB
}

// Open creates (or reuses) a SQLite database at path using the pure-Go
// driver, and migrates the decode_runs table.
func Open(path string, logOut *log.Logger) (*Store, error) {
	var gormLog logger.Interface
	if logOut != nil {
		gormLog = logger.New(logOut, logger.Config{
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		})
	} else {
		gormLog = logger.Default.LogMode(logger.Silent)
	}

	dialector := sqlite.Dialector{DriverName: "sqlite", DSN: path}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&DecodeRun{}); err != nil {
		return nil, err
	}

	if logOut != nil {
		logOut.Printf("decode-run history initialized: %s", path)
	}

	return &Store{db: db}, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record inserts a new decode-run row, assigning it a fresh UUID when
// run.ID is empty, and returns the row's run id.
func (s *Store) Record(run DecodeRun) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if err := s.db.Create(&run).Error; err != nil {
		return "", err
	}
	return run.ID, nil
}

// Recent returns the most recent limit decode runs, newest first.
func (s *Store) Recent(limit int) ([]DecodeRun, error) {
	var runs []DecodeRun
	err := s.db.Order("started_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}
