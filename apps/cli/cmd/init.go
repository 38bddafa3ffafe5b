package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	"github.com/abdul-hamid-achik/hitbox/packages/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter collection",
	Long: `Create a starter collection in the current directory.

This creates:
  - hitbox.yml          - Collection with example profiles and recipes
  - .hitbox.config.json - Configuration file

Examples:
  hitbox init
  hitbox init --force`,
	Args: usageArgs(cobra.NoArgs),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite existing files")
}

const exampleCollection = `profiles:
  local:
    name: Local
    default: true
    data:
      host: http://localhost:3000
      user_id: "1"
  staging:
    name: Staging
    data:
      host: https://staging.api.example.com
      user_id: "1"

recipes:
  health:
    name: Health check
    method: GET
    url: "{{host}}/health"

  get_user:
    name: Get user
    method: GET
    url: "{{host}}/users/{{user_id}}"
    query:
      expand: profile
    headers:
      Accept: application/json

  create_user:
    name: Create user
    method: POST
    url: "{{host}}/users"
    headers:
      Content-Type: application/json
      X-Request-Id: "{{uuid()}}"
    authentication:
      type: bearer
      token: "{{$API_TOKEN}}"
    body: |
      {"name": "Jane", "created": "{{now()}}"}

  login:
    name: Log in
    method: POST
    url: "{{host}}/login"
    body:
      form_urlencoded:
        username: admin
        password: "{{$ADMIN_PASSWORD}}"
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	collectionFile := filepath.Join(cwd, collection.Filenames[0])
	configFile := filepath.Join(cwd, config.ConfigFilenames[0])

	if !forceInit {
		for _, f := range []string{collectionFile, configFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	if err := os.WriteFile(collectionFile, []byte(exampleCollection), 0644); err != nil {
		return fmt.Errorf("failed to create collection file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", collectionFile)

	cfg := config.DefaultConfig()
	cfg.IgnoreCertificateHosts = []string{"localhost"}
	cfg.DefaultProfile = "local"
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitbox collection initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitbox request health' to send the first request.\n")

	return nil
}
