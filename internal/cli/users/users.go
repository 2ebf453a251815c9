package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/storage"
)

func notBlank(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

type UserAddCmd struct {
	Login    string `arg:"" optional:"" help:"Login ID. Prompts when omitted."`
	Nickname string `help:"Display name. Prompts when omitted."`
}

func (c *UserAddCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	if c.Login == "" || c.Nickname == "" {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Login ID").Value(&c.Login).Validate(notBlank("login ID")),
				huh.NewInput().Title("Nickname").Value(&c.Nickname).Validate(notBlank("nickname")),
			),
		).WithTheme(huh.ThemeDracula())
		if err := form.Run(); err != nil {
			return err
		}
	}

	login := strings.TrimSpace(c.Login)
	nickname := strings.TrimSpace(c.Nickname)
	if login == "" || nickname == "" {
		return errors.New("login ID and nickname are required")
	}

	if _, err := ctx.Store.GetUserByLoginID(bg, login); err == nil {
		return fmt.Errorf("user %q already exists", login)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	user := models.User{ID: uuid.NewString(), LoginID: login, Nickname: nickname}
	if err := ctx.Store.AddUser(bg, user); err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	fmt.Printf("Added user %s (%s): %s\n", user.LoginID, user.Nickname, user.ID)
	return nil
}

type UserListCmd struct{}

func (c *UserListCmd) Run(ctx *cli.Context) error {
	users, err := ctx.Store.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}
	for _, u := range users {
		fmt.Printf("%-36s  %-16s  %s\n", u.ID, u.LoginID, u.Nickname)
	}
	return nil
}
