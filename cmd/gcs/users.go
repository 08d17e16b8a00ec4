package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gcs/internal/auth"
	"gcs/internal/config"
)

const newPasswordEnvKey = "GCS_NEW_PASSWORD"

func newUserCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the accounts of auth.users_file",
	}

	cmd.AddCommand(newUserAddCmd(cfg))
	cmd.AddCommand(newUserDisableCmd(cfg))
	return cmd
}

func usersFilePath(cfg *config.Config) (string, error) {
	if strings.TrimSpace(cfg.Auth.UsersFile) == "" {
		return "", fmt.Errorf("auth.users_file is not configured")
	}
	return cfg.Auth.UsersFile, nil
}

func loadUsersOrEmpty(path string) ([]auth.User, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return auth.LoadUsers(path)
}

func newUserAddCmd(cfg *config.Config) *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Add or replace an account; the password is read from stdin or GCS_NEW_PASSWORD",
		Args:  requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := usersFilePath(cfg)
			if err != nil {
				return err
			}
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			user, err := auth.NewUser(args[0], tenant, password)
			if err != nil {
				return err
			}
			users, err := loadUsersOrEmpty(path)
			if err != nil {
				return err
			}
			if err := auth.SaveUsers(path, auth.UpsertUser(users, user)); err != nil {
				return err
			}
			return writePlain("saved user %s\n", user.Username)
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant code of the account")
	return cmd
}

func newUserDisableCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <username>",
		Short: "Disable an account",
		Args:  requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := usersFilePath(cfg)
			if err != nil {
				return err
			}
			name, err := auth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}
			users, err := loadUsersOrEmpty(path)
			if err != nil {
				return err
			}
			for _, user := range users {
				if strings.EqualFold(user.Username, name) {
					user.Username = name
					user.Disabled = true
					return auth.SaveUsers(path, auth.UpsertUser(users, user))
				}
			}
			return fmt.Errorf("user %s not found", name)
		},
	}
}

func readPassword(r io.Reader) (string, error) {
	if password := os.Getenv(newPasswordEnvKey); password != "" {
		return password, nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is required on stdin or in %s", newPasswordEnvKey)
	}
	return password, nil
}
