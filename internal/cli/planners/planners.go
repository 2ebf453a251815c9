package planners

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/storage"
	"github.com/julianstephens/studyroom/internal/utils"
)

type PlannerAddCmd struct {
	User string `arg:"" help:"Login ID of the owner."`
	Todo string `arg:"" help:"What to study."`
	Date string `help:"Day of the entry (YYYY-MM-DD). Defaults to today."`
}

func (c *PlannerAddCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	user, err := ctx.ResolveUser(bg, c.User)
	if err != nil {
		return err
	}
	todo := strings.TrimSpace(c.Todo)
	if todo == "" {
		return errors.New("todo cannot be empty")
	}
	date, err := resolveDate(bg, ctx, c.Date)
	if err != nil {
		return err
	}

	entry := models.PlannerEntry{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Date:      date,
		Todo:      todo,
		CreatedAt: time.Now().UTC(),
	}
	if err := ctx.Store.AddPlanner(bg, entry); err != nil {
		return fmt.Errorf("failed to add planner entry: %w", err)
	}
	fmt.Printf("Added %q for %s on %s: %s\n", entry.Todo, user.Nickname, entry.Date, entry.ID)
	return nil
}

type PlannerListCmd struct {
	User string `arg:"" help:"Login ID of the owner."`
	From string `help:"First day (YYYY-MM-DD). Defaults to today."`
	To   string `help:"Last day (YYYY-MM-DD). Defaults to --from."`
}

func (c *PlannerListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	user, err := ctx.ResolveUser(bg, c.User)
	if err != nil {
		return err
	}
	from, err := resolveDate(bg, ctx, c.From)
	if err != nil {
		return err
	}
	to := from
	if c.To != "" {
		if to, err = resolveDate(bg, ctx, c.To); err != nil {
			return err
		}
	}
	if to < from {
		return fmt.Errorf("--to %s is before --from %s", to, from)
	}

	entries, err := ctx.Store.ListPlanners(bg, user.ID, from, to)
	if err != nil {
		return fmt.Errorf("failed to list planner entries: %w", err)
	}
	if len(entries) == 0 {
		fmt.Printf("No planner entries for %s between %s and %s.\n", user.Nickname, from, to)
		return nil
	}
	for _, e := range entries {
		mark := "[ ]"
		if e.IsComplete {
			mark = "[x]"
		}
		fmt.Printf("%s %s  %-30s  %8s  %d interval(s)  %s\n", mark, e.Date, e.Todo, utils.FormatMillis(e.TotalTime), len(e.TimelineList), e.ID)
	}
	return nil
}

type PlannerDoneCmd struct {
	ID   string `arg:"" help:"Planner entry ID."`
	Undo bool   `help:"Mark the entry as not complete."`
}

func (c *PlannerDoneCmd) Run(ctx *cli.Context) error {
	err := ctx.Store.SetPlannerComplete(context.Background(), c.ID, !c.Undo)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNoRowsAffected) {
		return fmt.Errorf("planner entry %s not found", c.ID)
	}
	if err != nil {
		return err
	}
	if c.Undo {
		fmt.Printf("Reopened %s\n", c.ID)
	} else {
		fmt.Printf("Completed %s\n", c.ID)
	}
	return nil
}

type PlannerDeleteCmd struct {
	ID string `arg:"" help:"Planner entry ID."`
}

func (c *PlannerDeleteCmd) Run(ctx *cli.Context) error {
	err := ctx.Store.DeletePlanner(context.Background(), c.ID)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNoRowsAffected) {
		return fmt.Errorf("planner entry %s not found", c.ID)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", c.ID)
	return nil
}

// resolveDate validates date, defaulting to today in the configured timezone.
func resolveDate(bg context.Context, ctx *cli.Context, date string) (string, error) {
	if date == "" {
		return ctx.Today(bg)
	}
	if _, err := time.Parse(constants.DateFormat, date); err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return date, nil
}
