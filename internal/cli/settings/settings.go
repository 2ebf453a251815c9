package settings

import (
	"context"
	"fmt"

	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/utils"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	Timezone       *string `help:"IANA timezone for day boundaries (e.g. Asia/Seoul), or Local."`
	ChatTimeFormat *string `help:"Go time layout stamped on chat messages (e.g. 15:04)."`
	RoomMaxNum     *int    `help:"Default capacity of new rooms."`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	settings, err := ctx.Store.GetSettings(bg)
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if c.List {
		fmt.Println("Current Settings:")
		fmt.Printf("  Timezone:          %s\n", settings.Timezone)
		fmt.Printf("  Chat Time Format:  %s\n", settings.ChatTimeFormat)
		fmt.Printf("  Room Max Members:  %d\n", settings.RoomMaxNum)
		return nil
	}

	updated := false
	if c.Timezone != nil {
		if !utils.ValidateTimezone(*c.Timezone) {
			return fmt.Errorf("invalid timezone: %s", *c.Timezone)
		}
		settings.Timezone = *c.Timezone
		updated = true
	}
	if c.ChatTimeFormat != nil {
		if *c.ChatTimeFormat == "" {
			return fmt.Errorf("chat time format cannot be empty")
		}
		settings.ChatTimeFormat = *c.ChatTimeFormat
		updated = true
	}
	if c.RoomMaxNum != nil {
		if *c.RoomMaxNum < 1 {
			return fmt.Errorf("room max members must be at least 1")
		}
		settings.RoomMaxNum = *c.RoomMaxNum
		updated = true
	}

	if !updated {
		fmt.Println("No changes specified. Use --list to view settings or flags to update them.")
		return nil
	}
	if err := ctx.Store.SaveSettings(bg, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Println("Settings updated successfully.")
	fmt.Println("Restart the server for the changes to take effect.")
	return nil
}
