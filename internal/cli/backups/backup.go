package backups

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/studyroom/internal/backup"
	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/pidfile"
)

var errPostgres = errors.New("backups are only supported for SQLite databases; use pg_dump for PostgreSQL")

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	if !ctx.IsSQLite() {
		return errPostgres
	}
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	path, err := mgr.Create(context.Background())
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	fmt.Printf("✓ Backup created: %s\n", filepath.Base(path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	if !ctx.IsSQLite() {
		return errPostgres
	}
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		fmt.Println("No backups found.")
		fmt.Printf("Backups are stored in: %s\n", mgr.Dir())
		return nil
	}

	fmt.Printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), constants.MaxBackups)
	for _, b := range backups {
		fmt.Printf("  %s  %s  (%.1f KB)\n", b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), float64(b.Size)/1024.0)
	}
	fmt.Printf("\nBackup directory: %s\n", mgr.Dir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	if !ctx.IsSQLite() {
		return errPostgres
	}
	if info, err := pidfile.Check(ctx.LockfilePath()); err == nil {
		return fmt.Errorf("server is running (pid %d), stop it before restoring", info.PID)
	}

	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	path := c.BackupFile
	if _, err := os.Stat(path); os.IsNotExist(err) && !filepath.IsAbs(path) {
		path = filepath.Join(mgr.Dir(), path)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup file not found: %s", c.BackupFile)
	}

	if !c.Yes {
		confirmed := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Restore %s?", filepath.Base(path))).
			Description("The current database is backed up first.").
			Value(&confirmed).
			Run()
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Restore cancelled.")
			return nil
		}
	}

	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	safety, err := mgr.Restore(context.Background(), path)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	if safety != "" {
		fmt.Printf("Created backup of current database: %s\n", filepath.Base(safety))
	}
	fmt.Printf("✓ Database restored from: %s\n", filepath.Base(path))
	return nil
}
