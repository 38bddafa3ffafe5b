package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipes and profiles in the collection",
	Long: `List all recipes and profiles defined in the collection.

Examples:
  hitbox list
  hitbox list -f api/hitbox.yml`,
	Args: usageArgs(cobra.NoArgs),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	c, err := loadCollection()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s:\n", c.Path)
	fmt.Fprintf(out, "\nRecipes:\n")
	for _, r := range c.Recipes {
		fmt.Fprintf(out, "  - %s: %s %s\n", r.ID, r.Method, r.URL)
		if r.Name != "" {
			fmt.Fprintf(out, "    name: %s\n", r.Name)
		}
	}

	if len(c.Profiles) == 0 {
		return nil
	}
	def := c.DefaultProfile()
	fmt.Fprintf(out, "\nProfiles:\n")
	for _, p := range c.Profiles {
		marker := ""
		if def != nil && p.ID == def.ID {
			marker = " (default)"
		}
		fmt.Fprintf(out, "  - %s%s\n", p.ID, marker)
	}

	return nil
}
