package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) *cli.Context {
	t.Helper()
	dir := t.TempDir()
	store := sqlite.NewStore(filepath.Join(dir, "test.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return &cli.Context{Store: store, ConfigDir: dir}
}

func ptr[T any](v T) *T { return &v }

func TestSettingsCmd_List(t *testing.T) {
	ctx := setupTestDB(t)
	if err := (&SettingsCmd{List: true}).Run(ctx); err != nil {
		t.Errorf("settings list failed: %v", err)
	}
}

func TestSettingsCmd_Update(t *testing.T) {
	ctx := setupTestDB(t)

	cmd := &SettingsCmd{
		Timezone:       ptr("Asia/Seoul"),
		ChatTimeFormat: ptr("3:04 PM"),
		RoomMaxNum:     ptr(12),
	}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("settings update failed: %v", err)
	}

	got, err := ctx.Store.GetSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Timezone != "Asia/Seoul" || got.ChatTimeFormat != "3:04 PM" || got.RoomMaxNum != 12 {
		t.Errorf("settings not saved: %+v", got)
	}

	loc, _, err := ctx.Location(context.Background())
	if err != nil || loc.String() != "Asia/Seoul" {
		t.Errorf("Location() = (%v, %v)", loc, err)
	}
}

func TestSettingsCmd_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cmd  SettingsCmd
	}{
		{"unknown timezone", SettingsCmd{Timezone: ptr("Mars/Olympus")}},
		{"empty chat format", SettingsCmd{ChatTimeFormat: ptr("")}},
		{"zero seats", SettingsCmd{RoomMaxNum: ptr(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := setupTestDB(t)
			before, _ := ctx.Store.GetSettings(context.Background())
			if err := tt.cmd.Run(ctx); err == nil {
				t.Error("expected an error")
			}
			after, _ := ctx.Store.GetSettings(context.Background())
			if after != before {
				t.Errorf("settings changed on a rejected update: %+v -> %+v", before, after)
			}
		})
	}
}
