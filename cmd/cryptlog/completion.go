package main

import (
	"fmt"
	"os"

	"github.com/forest6511/cryptlog/internal/config"
	"github.com/forest6511/cryptlog/pkg/keychain"

	"github.com/spf13/cobra"
)

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Print a shell completion script",
	Long: `Print a completion script for bash, zsh, fish or powershell.

Besides subcommands and flags, the script completes --user with the users
registered in the keys directory of the current configuration. Entry dates
are never offered, so nothing is read from the logs directory.

Load it for the current bash session:
  $ source <(cryptlog completion bash)

Install it for zsh:
  $ cryptlog completion zsh > "${fpath[1]}/_cryptlog"`,
	DisableFlagsInUseLine: true,
	ValidArgs:             completionShells,
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(os.Stdout, true)
		case "zsh":
			return root.GenZshCompletion(os.Stdout)
		case "fish":
			return root.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return fmt.Errorf("unsupported shell %q", args[0])
	},
}

// completeUsers lists registered users for --user. Configuration errors
// produce no suggestions.
func completeUsers(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	users, err := keychain.New(cfg.KeysDir).Users()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return users, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
