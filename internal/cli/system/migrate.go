package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/studyroom/internal/cli"
)

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	if ctx.IsSQLite() {
		ctx.PerformAutomaticBackup(context.Background())
	}

	count, err := ctx.Store.Migrate(context.Background(), func(msg string) {
		fmt.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		fmt.Println("No migrations to apply. Database is up to date.")
	} else {
		fmt.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}
