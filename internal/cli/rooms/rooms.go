package rooms

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/models"
	roomsvc "github.com/julianstephens/studyroom/internal/rooms"
	"github.com/julianstephens/studyroom/internal/storage"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type roomForm struct {
	Title   string
	Notice  string
	Manager string
	MaxNum  string
	Tags    string
	IsChat  bool
}

func newRoomForm(f *roomForm) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&f.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("title cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Notice").
				Value(&f.Notice),
			huh.NewInput().
				Title("Manager (login ID)").
				Value(&f.Manager).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("manager cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Seats").
				Description("Leave empty for the default").
				Value(&f.MaxNum).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					n, err := strconv.Atoi(s)
					if err != nil {
						return err
					}
					if n < 1 {
						return errors.New("a room needs at least one seat")
					}
					return nil
				}),
			huh.NewInput().
				Title("Tags").
				Description("Comma-separated").
				Value(&f.Tags),
			huh.NewConfirm().
				Title("Chat enabled").
				Value(&f.IsChat),
		),
	).WithTheme(huh.ThemeDracula())
}

type RoomCreateCmd struct {
	Title    string   `help:"Room title. Prompts when omitted."`
	Notice   string   `help:"Notice shown to members."`
	Password string   `help:"Password required to join."`
	Manager  string   `help:"Login ID of the room manager. Prompts when omitted."`
	MaxNum   int      `help:"Seats. Defaults to the room_max_num setting."`
	Tags     []string `help:"Tags used by search."`
	Chat     bool     `help:"Enable chat." default:"true" negatable:""`
	Private  bool     `help:"Hide the room from public listings."`
}

func (c *RoomCreateCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	if c.Title == "" || c.Manager == "" {
		f := &roomForm{Title: c.Title, Notice: c.Notice, Manager: c.Manager, Tags: strings.Join(c.Tags, ","), IsChat: c.Chat}
		if c.MaxNum > 0 {
			f.MaxNum = strconv.Itoa(c.MaxNum)
		}
		if err := newRoomForm(f).Run(); err != nil {
			return err
		}
		c.Title, c.Notice, c.Manager, c.Chat = f.Title, f.Notice, f.Manager, f.IsChat
		c.Tags = strings.Split(f.Tags, ",")
		if s := strings.TrimSpace(f.MaxNum); s != "" {
			c.MaxNum, _ = strconv.Atoi(s)
		}
	}

	manager, err := ctx.ResolveUser(bg, c.Manager)
	if err != nil {
		return err
	}
	loc, _, err := ctx.Location(bg)
	if err != nil {
		return err
	}

	room, err := roomsvc.New(ctx.Store, loc).Create(bg, roomsvc.CreateParams{
		Title:     c.Title,
		Notice:    c.Notice,
		Password:  c.Password,
		IsChat:    c.Chat,
		IsPublic:  !c.Private,
		MaxNum:    c.MaxNum,
		Tags:      c.Tags,
		ManagerID: manager.ID,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created room %q (%d seats): %s\n", room.Title, room.MaxNum, room.ID)
	return nil
}

type RoomListCmd struct {
	Search  string `help:"Match title or tags."`
	Public  bool   `help:"Only public rooms."`
	Open    bool   `help:"Only rooms with a free seat."`
	Limit   int    `help:"Page size." default:"20"`
	Offset  int    `help:"Rooms to skip."`
	Members bool   `help:"Show member nicknames."`
}

func (c *RoomListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	filter := models.RoomFilter{Search: c.Search, Limit: c.Limit, Offset: c.Offset}
	if c.Public {
		filter.IsPublic = &c.Public
	}
	if c.Open {
		filter.IsPossible = &c.Open
	}

	loc, _, err := ctx.Location(bg)
	if err != nil {
		return err
	}
	rooms, err := roomsvc.New(ctx.Store, loc).List(bg, filter)
	if err != nil {
		return fmt.Errorf("failed to list rooms: %w", err)
	}
	if len(rooms) == 0 {
		fmt.Println("No rooms found.")
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-36s  %-24s  %-7s  %-5s  %s", "ID", "TITLE", "SEATS", "CHAT", "TAGS")))
	for _, r := range rooms {
		title := r.Title
		if r.Password != "" {
			title += " 🔒"
		}
		if !r.IsPublic {
			title += dimStyle.Render(" (private)")
		}
		chat := "no"
		if r.IsChat {
			chat = "yes"
		}
		fmt.Printf("%-36s  %-24s  %-7s  %-5s  %s\n", r.ID, title, fmt.Sprintf("%d/%d", r.CurrentNum, r.MaxNum), chat, strings.Join(r.TagList, ","))

		if c.Members && r.CurrentNum > 0 {
			members, err := ctx.Store.RoomMembers(bg, r.ID)
			if err != nil {
				return fmt.Errorf("failed to list members of %s: %w", r.ID, err)
			}
			names := make([]string, 0, len(members))
			for _, m := range members {
				names = append(names, m.Nickname)
			}
			fmt.Println(dimStyle.Render("    members: " + strings.Join(names, ", ")))
		}
	}
	return nil
}

type RoomDeleteCmd struct {
	ID string `arg:"" help:"Room ID."`
}

func (c *RoomDeleteCmd) Run(ctx *cli.Context) error {
	err := ctx.Store.DeleteRoom(context.Background(), c.ID)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNoRowsAffected) {
		return fmt.Errorf("room %s not found", c.ID)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Deleted room %s\n", c.ID)
	return nil
}
