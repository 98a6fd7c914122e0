package main

import (
	"fmt"
	"os"

	"github.com/forest6511/cryptlog/internal/cli"
	"github.com/forest6511/cryptlog/pkg/keychain"

	"github.com/spf13/cobra"
)

// userCmd is the parent command for user operations.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User operations",
}

var userCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Creates a user and its key material",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			userFlag = args[0]
		}
		return createUser()
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := jrnl.Users()
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("No users registered")
			return nil
		}
		for _, u := range users {
			fmt.Println(u)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
}

// createUser asks for a name and a confirmed password and registers the user.
func createUser() error {
	user, err := readUser()
	if err != nil {
		return err
	}
	if _, err := keychain.NormalizeID(user); err != nil {
		return err
	}

	password, err := prompter.ReadNewPassword("Password: ", "Confirm password: ")
	if err != nil {
		return err
	}

	result := keychain.ValidatePassword(password)
	if !result.Valid {
		return fmt.Errorf("password validation failed: %s", result.Warnings[0])
	}
	fmt.Printf("Password strength: %s\n", result.Strength)
	for _, warning := range result.Warnings {
		Logger.Warnf("%s", warning)
	}

	stop := cli.StartSpinner(os.Stderr, "Creating user...", prompter.IsTerminal() && !verbose)
	err = jrnl.CreateUser(user, password)
	stop()
	if err != nil {
		return err
	}

	fmt.Printf("User %s created\n", user)
	return nil
}
