package system

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/studyroom/internal/auth"
	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/constants"
)

// TokenCmd issues a socket token for local testing.
type TokenCmd struct {
	User      string        `arg:"" help:"Login ID of the user."`
	TTL       time.Duration `help:"Token lifetime." default:"24h"`
	JWTSecret string        `help:"Signing secret. Falls back to the OS keyring." env:"STUDYROOM_JWT_SECRET"`
}

func (c *TokenCmd) Run(ctx *cli.Context) error {
	user, err := ctx.ResolveUser(context.Background(), c.User)
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
	ttl := c.TTL
	if ttl <= 0 {
		ttl = constants.TokenTTL
	}
	token, err := authn.Issue(user.ID, user.Nickname, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
