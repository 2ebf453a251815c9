package system

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/monitor"
)

type MonitorCmd struct {
	Interval time.Duration `help:"Refresh interval." default:"2s"`
}

func (c *MonitorCmd) Run(ctx *cli.Context) error {
	loc, _, err := ctx.Location(context.Background())
	if err != nil {
		return err
	}

	p := tea.NewProgram(monitor.New(ctx.Store, loc, ctx.LockfilePath(), c.Interval), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("monitor failed: %w", err)
	}
	return nil
}
