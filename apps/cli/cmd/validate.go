package cmd

import (
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate collection files",
	Long: `Validate collection files against the collection schema without
sending anything. With no arguments the collection in scope is checked.

Examples:
  hitbox validate
  hitbox validate hitbox.yml other.yml`,
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files := args
	if len(files) == 0 {
		path := collectionFlag
		if path == "" {
			found, err := collection.Find(".")
			if err != nil {
				return withExitCode(ExitConfigError, err)
			}
			path = found
		}
		files = []string{path}
	}

	hasErrors := false
	for _, file := range files {
		if err := validateFile(file); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return reported(ExitConfigError, fmt.Errorf("validation failed"))
	}

	return nil
}

func validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := collection.Validate(data); err != nil {
		return err
	}
	_, err = collection.Parse(data)
	return err
}
