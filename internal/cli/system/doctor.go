package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/studyroom/internal/backup"
	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/pidfile"
	"github.com/julianstephens/studyroom/internal/utils"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// errSkip marks a check that does not apply to this setup.
var errSkip = errors.New("skipped")

type schemaStatuser interface {
	SchemaStatus(ctx context.Context) (current, latest int, err error)
}

type check struct {
	name     string
	needsDB  bool
	warnOnly bool
	run      func(ctx context.Context, c *cli.Context) error
}

var checks = []check{
	{name: "Schema version", needsDB: true, run: checkSchemaVersion},
	{name: "Settings", needsDB: true, run: checkSettings},
	{name: "Room occupancy", needsDB: true, run: checkRoomOccupancy},
	{name: "Open sessions", needsDB: true, run: checkSessions},
	{name: "Stale sessions", needsDB: true, warnOnly: true, run: checkStaleSessions},
	{name: "Server process", warnOnly: true, run: checkServerProcess},
	{name: "Backups present", warnOnly: true, run: checkBackupsPresent},
	{name: "Clock/timezone", run: checkClockTimezone},
}

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	dbReachable := true
	if err := checkDBReachable(bg, ctx); err != nil {
		fmt.Printf("%s Database reachable: FAIL\n", failStyle.Render("❌"))
		fmt.Printf("   Error: %v\n", err)
		hasError = true
		dbReachable = false
	} else {
		fmt.Printf("%s Database reachable: OK\n", passStyle.Render("✓"))
	}

	for _, chk := range checks {
		if chk.needsDB && !dbReachable {
			fmt.Printf("%s %s: SKIPPED (database not reachable)\n", skipStyle.Render("⊘"), chk.name)
			continue
		}
		err := chk.run(bg, ctx)
		switch {
		case err == nil:
			fmt.Printf("%s %s: OK\n", passStyle.Render("✓"), chk.name)
		case errors.Is(err, errSkip):
			fmt.Printf("%s %s: SKIPPED (%v)\n", skipStyle.Render("⊘"), chk.name, err)
		case chk.warnOnly:
			fmt.Printf("%s %s: WARNING\n", warnStyle.Render("⚠"), chk.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("%s %s: FAIL\n", failStyle.Render("❌"), chk.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx context.Context, c *cli.Context) error {
	if err := c.Store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if err := c.Store.Ping(ctx); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func checkSchemaVersion(ctx context.Context, c *cli.Context) error {
	s, ok := c.Store.(schemaStatuser)
	if !ok {
		return fmt.Errorf("%w: store does not report a schema version", errSkip)
	}
	current, latest, err := s.SchemaStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current != latest {
		return fmt.Errorf("schema version %d, expected %d (run 'studyroom migrate')", current, latest)
	}
	return nil
}

func checkSettings(ctx context.Context, c *cli.Context) error {
	settings, err := c.Store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if !utils.ValidateTimezone(settings.Timezone) {
		return fmt.Errorf("invalid timezone %q", settings.Timezone)
	}
	if settings.ChatTimeFormat == "" {
		return fmt.Errorf("chat time format is empty")
	}
	if settings.RoomMaxNum < 1 {
		return fmt.Errorf("room_max_num must be at least 1, got %d", settings.RoomMaxNum)
	}
	return nil
}

// checkRoomOccupancy compares each room's seat counter with its member rows.
func checkRoomOccupancy(ctx context.Context, c *cli.Context) error {
	rooms, err := c.Store.ListRooms(ctx, models.RoomFilter{})
	if err != nil {
		return err
	}
	var bad []string
	for _, room := range rooms {
		members, err := c.Store.RoomMembers(ctx, room.ID)
		if err != nil {
			return err
		}
		if room.CurrentNum != len(members) || room.CurrentNum > room.MaxNum {
			bad = append(bad, fmt.Sprintf("%s (%d/%d seats, %d members)", room.Title, room.CurrentNum, room.MaxNum, len(members)))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("inconsistent rooms: %v", bad)
	}
	return nil
}

func checkSessions(ctx context.Context, c *cli.Context) error {
	sessions, err := c.Store.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if err := sess.Validate(); err != nil {
			return fmt.Errorf("session of user %s: %w", sess.UserID, err)
		}
		if sess.PlannerID == "" {
			continue
		}
		if _, err := c.Store.GetPlanner(ctx, sess.PlannerID); err != nil {
			return fmt.Errorf("session of user %s points at planner %s: %w", sess.UserID, sess.PlannerID, err)
		}
	}
	return nil
}

// checkStaleSessions flags sessions left behind by a server that stopped
// without closing them.
func checkStaleSessions(ctx context.Context, c *cli.Context) error {
	if _, err := pidfile.Check(c.LockfilePath()); err == nil {
		return nil
	}
	sessions, err := c.Store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) > 0 {
		return fmt.Errorf("%d session(s) open while the server is not running", len(sessions))
	}
	return nil
}

func checkServerProcess(_ context.Context, c *cli.Context) error {
	info, err := pidfile.Check(c.LockfilePath())
	if errors.Is(err, pidfile.ErrNotRunning) {
		return fmt.Errorf("%w: server not running", errSkip)
	}
	if err != nil {
		return err
	}
	fmt.Printf("   Server pid %d listening on %s\n", info.PID, info.Addr)
	return nil
}

func checkBackupsPresent(_ context.Context, c *cli.Context) error {
	if !c.IsSQLite() {
		return fmt.Errorf("%w: backups are managed by PostgreSQL", errSkip)
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found in %s", mgr.Dir())
	}
	if age := time.Since(backups[0].Timestamp); age > 7*24*time.Hour {
		return fmt.Errorf("latest backup is %d days old", int(age.Hours()/24))
	}
	return nil
}

func checkClockTimezone(_ context.Context, _ *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 {
		return fmt.Errorf("system clock looks wrong: %s", now.Format(time.RFC3339))
	}
	if now.Location() == nil {
		return fmt.Errorf("system timezone is not set")
	}
	return nil
}
