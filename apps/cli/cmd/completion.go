package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for hitbox.

To load completions:

Bash:
  $ source <(hitbox completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ hitbox completion bash > /etc/bash_completion.d/hitbox
  # macOS:
  $ hitbox completion bash > $(brew --prefix)/etc/bash_completion.d/hitbox

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ hitbox completion zsh > "${fpath[1]}/_hitbox"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ hitbox completion fish | source

  # To load completions for each session, execute once:
  $ hitbox completion fish > ~/.config/fish/completions/hitbox.fish

PowerShell:
  PS> hitbox completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> hitbox completion powershell > hitbox.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  usageArgs(cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs)),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// completeRecipes completes recipe IDs from the collection in scope.
func completeRecipes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	c, err := loadCollection()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	ids := make([]string, 0, len(c.Recipes))
	for _, r := range c.Recipes {
		ids = append(ids, string(r.ID)+"\t"+r.DisplayName())
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeProfiles completes profile IDs for --profile.
func completeProfiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	c, err := loadCollection()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	ids := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		ids = append(ids, string(p.ID))
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}
