package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/julianstephens/studyroom/internal/accounting"
	"github.com/julianstephens/studyroom/internal/auth"
	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/events"
	"github.com/julianstephens/studyroom/internal/gateway"
	"github.com/julianstephens/studyroom/internal/keyring"
	"github.com/julianstephens/studyroom/internal/logger"
	"github.com/julianstephens/studyroom/internal/pidfile"
	"github.com/julianstephens/studyroom/internal/rooms"
	"github.com/julianstephens/studyroom/internal/server"
)

type ServeCmd struct {
	Addr      string   `help:"Address to listen on." default:":8080" env:"STUDYROOM_ADDR"`
	RedisURL  string   `help:"Redis URL for fan-out across instances (redis://host:6379/0)." env:"STUDYROOM_REDIS_URL"`
	JWTSecret string   `help:"Secret used to verify socket tokens. Falls back to the OS keyring." env:"STUDYROOM_JWT_SECRET"`
	Origin    []string `help:"Extra origin patterns allowed to open sockets."`
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	lockPath := ctx.LockfilePath()
	if info, err := pidfile.Check(lockPath); err == nil {
		return fmt.Errorf("%w (pid %d on %s)", pidfile.ErrAlreadyRunning, info.PID, info.Addr)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, settings, err := ctx.Location(runCtx)
	if err != nil {
		return err
	}

	secret, err := resolveSecret(c.JWTSecret)
	if err != nil {
		return err
	}
	authn, err := auth.New(secret)
	if err != nil {
		return err
	}

	bus, err := c.openBus(runCtx, ctx)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx.PerformAutomaticBackup(runCtx)

	acct := accounting.New(ctx.Store, loc)
	roomSvc := rooms.New(ctx.Store, loc)
	hub := gateway.NewHub(ctx.Store, acct, roomSvc, bus, authn, gateway.Options{
		OriginPatterns: c.Origin,
		ChatTimeFormat: settings.ChatTimeFormat,
	})

	srv := server.New(c.Addr, ctx.Store, hub)
	ready := func(addr string) {
		if err := pidfile.Write(lockPath, addr); err != nil {
			logger.Warn("Failed to write server lockfile", "path", lockPath, "error", err)
		}
		fmt.Printf("studyroom listening on %s (timezone %s)\n", addr, loc)
	}
	defer func() {
		if err := pidfile.Remove(lockPath); err != nil {
			logger.Warn("Failed to remove server lockfile", "path", lockPath, "error", err)
		}
	}()

	return srv.Run(runCtx, ready)
}

// openBus picks Redis when configured. A single instance owns all
// presence, so leftovers from a previous run are cleared.
func (c *ServeCmd) openBus(runCtx context.Context, ctx *cli.Context) (events.Bus, error) {
	if c.RedisURL == "" {
		if err := ctx.Store.ClearPresence(runCtx); err != nil {
			return nil, fmt.Errorf("failed to clear stale presence: %w", err)
		}
		logger.Info("Using in-process event bus")
		return events.NewLocalBus(), nil
	}

	client, err := events.ParseRedisURL(c.RedisURL)
	if err != nil {
		return nil, err
	}
	bus, err := events.NewRedisBus(runCtx, client, constants.RedisChannel, uuid.NewString())
	if err != nil {
		client.Close()
		return nil, err
	}
	logger.Info("Using redis event bus", "channel", constants.RedisChannel)
	return bus, nil
}

// resolveSecret prefers the flag or environment and falls back to the keyring.
func resolveSecret(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	secret, err := keyring.GetJWTSecret()
	if err == nil {
		return secret, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", errors.New("no signing secret: pass --jwt-secret, set STUDYROOM_JWT_SECRET or run 'studyroom keyring set-secret'")
	}
	return "", err
}
