package db

import (
	"fmt"
	"strings"
	"time"

	"memotags/internal/jobs"
	"memotags/internal/memo"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"moul.io/zapgorm2"
)

// Connect opens postgres for postgres:// DSNs and sqlite for file: or
// sqlite: DSNs. SQL errors and slow queries go to log; a missing row is an
// expected outcome and is not logged.
func Connect(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gl := zapgorm2.New(log.Named("gorm"))
	gl.LogLevel = gormlogger.Warn
	gl.SlowThreshold = 200 * time.Millisecond
	gl.IgnoreRecordNotFoundError = true
	cfg := &gorm.Config{Logger: gl}

	var (
		gdb *gorm.DB
		err error
	)
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		gdb, err = gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), cfg)
	case strings.HasPrefix(dsn, "file:"):
		gdb, err = gorm.Open(sqlite.Open(dsn), cfg)
	default:
		gdb, err = gorm.Open(postgres.Open(dsn), cfg)
	}
	if err != nil {
		return nil, err
	}

	if gdb.Dialector.Name() == "sqlite" {
		// sqlite allows one writer; a single connection turns lock contention
		// into queueing instead of SQLITE_BUSY.
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&memo.Memo{},
		&memo.Tag{},
		&memo.MemoTag{},
		&memo.MemoCategory{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}
