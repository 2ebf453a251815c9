package system

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/keyring"
	"github.com/julianstephens/studyroom/internal/storage/postgres"
)

type KeyringCmd struct {
	SetConnection KeyringSetConnectionCmd `cmd:"" help:"Store a PostgreSQL connection string in the OS keyring."`
	GetConnection KeyringGetConnectionCmd `cmd:"" help:"Show the stored connection string with the password masked."`
	SetSecret     KeyringSetSecretCmd     `cmd:"" help:"Store the socket token signing secret in the OS keyring."`
	Delete        KeyringDeleteCmd        `cmd:"" help:"Remove stored credentials from the OS keyring."`
	Status        KeyringStatusCmd        `cmd:"" help:"Check the availability of the OS keyring."`
}

// KeyringSetConnectionCmd stores database connection credentials in the OS keyring
type KeyringSetConnectionCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string to store in keyring"`
}

func (cmd *KeyringSetConnectionCmd) Run(ctx *cli.Context) error {
	if !strings.HasPrefix(cmd.ConnectionString, "postgres://") &&
		!strings.HasPrefix(cmd.ConnectionString, "postgresql://") &&
		!strings.Contains(cmd.ConnectionString, "host=") {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}

	if _, err := postgres.ValidateConnString(cmd.ConnectionString); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// The keyring is encrypted, so a password is acceptable here.
		fmt.Println("⚠️  Warning: Connection string contains embedded credentials.")
		fmt.Println("   It will be stored as-is in the encrypted OS keyring.")
	}

	if err := keyring.SetConnectionString(cmd.ConnectionString); err != nil {
		return err
	}
	fmt.Println("✓ Connection string stored successfully in OS keyring")
	fmt.Println("  Pass --config=keyring to use it")
	return nil
}

type KeyringGetConnectionCmd struct{}

func (cmd *KeyringGetConnectionCmd) Run(ctx *cli.Context) error {
	connStr, err := keyring.GetConnectionString()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring. Use 'studyroom keyring set-connection' to store one")
		}
		return fmt.Errorf("failed to retrieve connection string from keyring: %w", err)
	}
	fmt.Println(maskPassword(connStr))
	return nil
}

// KeyringSetSecretCmd stores the JWT signing secret. Without an argument a
// random secret is generated.
type KeyringSetSecretCmd struct {
	Secret string `arg:"" optional:"" help:"Signing secret. Generated when omitted."`
}

func (cmd *KeyringSetSecretCmd) Run(ctx *cli.Context) error {
	secret := cmd.Secret
	if secret == "" {
		var err error
		if secret, err = generateSecret(); err != nil {
			return err
		}
		fmt.Println("Generated a new random signing secret")
	}
	if err := keyring.SetJWTSecret(secret); err != nil {
		return err
	}
	fmt.Println("✓ Signing secret stored successfully in OS keyring")
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

type KeyringDeleteCmd struct {
	Secret bool `help:"Delete the signing secret instead of the connection string."`
}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	what, del := "Connection string", keyring.DeleteConnectionString
	if cmd.Secret {
		what, del = "Signing secret", keyring.DeleteJWTSecret
	}
	if err := del(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%s not found in keyring", strings.ToLower(what))
		}
		return err
	}
	fmt.Printf("✓ %s deleted from OS keyring\n", what)
	return nil
}

// KeyringStatusCmd checks the availability of the OS keyring
type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		fmt.Println("❌ OS keyring is not available on this system")
		return errors.New("keyring unavailable")
	}
	fmt.Println("✓ OS keyring is available")

	entries := []struct {
		name string
		get  func() (string, error)
	}{
		{"Connection string", keyring.GetConnectionString},
		{"Signing secret", keyring.GetJWTSecret},
	}
	for _, e := range entries {
		if _, err := e.get(); err == nil {
			fmt.Printf("✓ %s is stored in keyring\n", e.name)
		} else if errors.Is(err, keyring.ErrNotFound) {
			fmt.Printf("ℹ No %s stored in keyring\n", strings.ToLower(e.name))
		}
	}
	return nil
}

// maskPassword masks passwords in connection strings for display
func maskPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		idx := strings.Index(connStr, "://")
		rest := connStr[idx+3:]
		if at := strings.LastIndex(rest, "@"); at != -1 {
			userInfo := rest[:at]
			if colon := strings.Index(userInfo, ":"); colon != -1 {
				return connStr[:idx+3] + userInfo[:colon] + ":****" + rest[at:]
			}
		}
		return connStr
	}

	fields := strings.Fields(connStr)
	for i, f := range fields {
		if strings.HasPrefix(strings.ToLower(f), "password=") {
			fields[i] = "password=****"
		}
	}
	return strings.Join(fields, " ")
}
