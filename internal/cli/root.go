package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/studyroom/internal/backup"
	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/logger"
	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/pidfile"
	"github.com/julianstephens/studyroom/internal/storage"
	"github.com/julianstephens/studyroom/internal/utils"
)

type Context struct {
	Store storage.Provider
	// ConfigDir holds logs, backups and the server lockfile.
	ConfigDir string
	Debug     bool
}

// IsSQLite reports whether the store is a local database file.
func (c *Context) IsSQLite() bool {
	return c.Store.GetConfigPath() != "postgresql"
}

// LockfilePath is where a running server records itself.
func (c *Context) LockfilePath() string {
	return pidfile.Path(c.ConfigDir)
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup(ctx context.Context) {
	if !c.IsSQLite() {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.Create(ctx); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// Location loads the settings and the timezone they name.
func (c *Context) Location(ctx context.Context) (*time.Location, models.Settings, error) {
	settings, err := c.Store.GetSettings(ctx)
	if err != nil {
		return nil, models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	loc, err := utils.LoadLocation(settings.Timezone)
	if err != nil {
		return nil, models.Settings{}, fmt.Errorf("invalid timezone setting %q: %w", settings.Timezone, err)
	}
	return loc, settings, nil
}

// Today returns the current date in the configured timezone.
func (c *Context) Today(ctx context.Context) (string, error) {
	loc, _, err := c.Location(ctx)
	if err != nil {
		return "", err
	}
	return time.Now().In(loc).Format(constants.DateFormat), nil
}

// ResolveUser finds a user by login ID, falling back to the internal ID.
func (c *Context) ResolveUser(ctx context.Context, ref string) (models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.User{}, errors.New("user is required")
	}
	user, err := c.Store.GetUserByLoginID(ctx, ref)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, err
	}
	user, err = c.Store.GetUser(ctx, ref)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, fmt.Errorf("user %q not found", ref)
	}
	return user, err
}
