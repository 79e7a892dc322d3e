package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"roster-service/internal/app"
	"roster-service/internal/config"
)

var (
	useraddRole string
	useraddTeam string
)

var useraddCmd = &cobra.Command{
	Use:   "useradd <username>",
	Short: "Register a user, prompting for the password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := app.ParseRole(useraddRole)
		if err != nil {
			return err
		}
		password, err := readPassword()
		if err != nil {
			return err
		}

		ctx := context.Background()
		return withApp(ctx, func(a *app.App, _ *config.Config) error {
			id, err := a.Register(ctx, args[0], password, role, useraddTeam)
			if err != nil {
				return err
			}
			fmt.Printf("Registered %s (%s, team %s)\n", id.Username, id.Role, id.Team)
			return nil
		})
	},
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password prompt requires a terminal")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}

func init() {
	useraddCmd.Flags().StringVar(&useraddRole, "role", string(app.RoleEmployee), "Employee or Manager")
	useraddCmd.Flags().StringVar(&useraddTeam, "team", "", "team name")
	_ = useraddCmd.MarkFlagRequired("team")
	rootCmd.AddCommand(useraddCmd)
}
