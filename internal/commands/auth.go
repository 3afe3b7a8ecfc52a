package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/tildaslashalef/fieldsync/internal/app"
	"github.com/tildaslashalef/fieldsync/internal/auth"
	"github.com/tildaslashalef/fieldsync/internal/utils"
)

// LoginCommand returns the CLI command for authenticating with the server
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:        "login",
		Usage:       "Authenticate with the field-data server",
		Description: "Authenticates online when the server is reachable, otherwise against the cached credential",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Account username",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Account password (prompted when omitted)",
			},
		},
		Action: loginAction,
	}
}

// LogoutCommand returns the CLI command for ending the session
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:        "logout",
		Usage:       "End the current session",
		Description: "Clears the session token; the cached credential is kept for offline login",
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			if err := application.Auth.Logout(c.Context); err != nil {
				if errors.Is(err, auth.ErrNoSession) {
					utils.PrintInfo("No active session")
					return nil
				}
				return err
			}

			utils.PrintSuccess("Logged out")
			return nil
		},
	}
}

func loginAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	username := c.String("username")
	password := c.String("password")
	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	profile, err := application.Auth.Login(c.Context, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			utils.PrintError("Invalid credentials")
		}
		return err
	}

	online := application.Monitor.Snapshot().IsConnected
	if online {
		utils.PrintSuccess("Authenticated with server")
	} else {
		utils.PrintSuccess("Authenticated offline against cached credential")
	}

	if profile != nil {
		utils.PrintKeyValue("Username", profile.Username)
		if profile.Email != "" {
			utils.PrintKeyValue("Email", profile.Email)
		}
		if profile.Role != "" {
			utils.PrintKeyValue("Role", profile.Role)
		}
	}

	return nil
}

// promptPassword reads the password without echoing it
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	password := strings.TrimSpace(string(raw))
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	return password, nil
}
