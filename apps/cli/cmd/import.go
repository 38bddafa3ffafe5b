package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	"github.com/abdul-hamid-achik/hitbox/packages/import/jetbrains"
	"github.com/spf13/cobra"
)

var (
	importOutputFlag  string
	importProfileFlag string
	importForceFlag   bool
)

var importCmd = &cobra.Command{
	Use:   "import <format> <source>",
	Short: "Import requests from other HTTP clients",
	Long: `Import requests from other HTTP clients and convert them to a hitbox collection.

Supported formats:
  jetbrains - JetBrains HTTP Client files (.http, .rest)

Examples:
  hitbox import jetbrains api.http
  hitbox import jetbrains api.http -o hitbox.yml`,
}

var importJetBrainsCmd = &cobra.Command{
	Use:   "jetbrains <file>",
	Short: "Import from a JetBrains HTTP Client file",
	Long: `Import requests from a JetBrains HTTP Client (.http) file.

File variables (@name = value) become a default profile. Each request becomes
a recipe named after its ### separator or # @name annotation.

Examples:
  hitbox import jetbrains api.http
  hitbox import jetbrains api.http --profile local
  hitbox import jetbrains api.http -o hitbox.yml --force`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: importJetBrainsCommand,
}

func init() {
	importJetBrainsCmd.Flags().StringVarP(&importOutputFlag, "output", "o", "", "Output file path (default: stdout)")
	importJetBrainsCmd.Flags().StringVar(&importProfileFlag, "profile", string(jetbrains.DefaultProfile), "Profile to hold file variables")
	importJetBrainsCmd.Flags().BoolVar(&importForceFlag, "force", false, "Overwrite an existing output file")

	importCmd.AddCommand(importJetBrainsCmd)
}

func importJetBrainsCommand(cmd *cobra.Command, args []string) error {
	converter := jetbrains.NewConverter(jetbrains.WithProfile(collection.ProfileID(importProfileFlag)))

	c, err := converter.ConvertFile(args[0])
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("failed to convert %s: %w", args[0], err))
	}

	content, err := collection.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode collection: %w", err)
	}

	if importOutputFlag == "" {
		_, err := cmd.OutOrStdout().Write(content)
		return err
	}

	if !importForceFlag {
		if _, err := os.Stat(importOutputFlag); err == nil {
			return withExitCode(ExitUsageError, fmt.Errorf("%s already exists (use --force to overwrite)", importOutputFlag))
		}
	}
	if dir := filepath.Dir(importOutputFlag); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(importOutputFlag, content, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d recipes to %s\n", len(c.Recipes), importOutputFlag)
	return nil
}
