package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/studyroom/internal/logger"
	"github.com/julianstephens/studyroom/internal/migration"
	"github.com/julianstephens/studyroom/internal/storage/sqlstore"
	"github.com/julianstephens/studyroom/migrations"
)

type Store struct {
	*sqlstore.DB
	path string
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
	}
}

func (s *Store) open() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; transactions queue on the pool instead of
	// failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	s.DB = sqlstore.New(db, sqlstore.Question)
	return nil
}

func (s *Store) Init(ctx context.Context) error {
	if s.DB == nil {
		if err := s.open(); err != nil {
			return err
		}
	}

	if _, err := s.Migrate(ctx, func(msg string) { logger.Info(msg) }); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return s.EnsureSettings(ctx)
}

func (s *Store) Load(ctx context.Context) error {
	if s.DB != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'studyroom init' first")
	}

	if err := s.open(); err != nil {
		return err
	}

	runner, err := s.runner()
	if err != nil {
		return err
	}
	return runner.ValidateVersion(ctx)
}

func (s *Store) Migrate(ctx context.Context, logFn func(string)) (int, error) {
	if s.DB == nil {
		if err := s.open(); err != nil {
			return 0, err
		}
	}
	runner, err := s.runner()
	if err != nil {
		return 0, err
	}
	return runner.ApplyMigrations(ctx, logFn)
}

func (s *Store) runner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(s.SQL(), subFS, migration.DriverSQLite), nil
}

// SchemaStatus reports the applied and the latest known schema versions.
func (s *Store) SchemaStatus(ctx context.Context) (current, latest int, err error) {
	if s.DB == nil {
		return 0, 0, fmt.Errorf("database not loaded")
	}
	runner, err := s.runner()
	if err != nil {
		return 0, 0, err
	}
	if current, err = runner.GetCurrentVersion(ctx); err != nil {
		return 0, 0, err
	}
	if latest, err = runner.GetLatestVersion(); err != nil {
		return 0, 0, err
	}
	return current, latest, nil
}

func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	err := s.SQL().Close()
	s.DB = nil
	return err
}

func (s *Store) GetConfigPath() string {
	return s.path
}

// GetDB returns the underlying database connection, or nil before
// Init or Load.
func (s *Store) GetDB() *sql.DB {
	if s.DB == nil {
		return nil
	}
	return s.SQL()
}
