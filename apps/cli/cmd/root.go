package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	"github.com/abdul-hamid-achik/hitbox/packages/core/config"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag     string
	collectionFlag string
	databaseFlag   string
	envFileFlag    string
	verboseFlag    bool
	noColorFlag    bool
)

var logger = slog.Default()

var rootCmd = &cobra.Command{
	Use:   "hitbox",
	Short: "Run HTTP requests from a recipe collection",
	Long: `hitbox runs HTTP requests defined as recipes in a YAML collection.
Recipes are templates; profiles fill them in. Every completed request is
kept in a local history database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(cmd.ErrOrStderr(), verboseFlag, noColorFlag)
		slog.SetDefault(logger)
	},
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	err := rootCmd.Execute()
	if err != nil {
		var e *exitError
		if !errors.As(err, &e) || !e.reported {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	os.Exit(exitCode(err))
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", getEnvString("HITBOX_CONFIG", ""), "Path to config file (env: HITBOX_CONFIG)")
	flags.StringVarP(&collectionFlag, "file", "f", getEnvString("HITBOX_COLLECTION", ""), "Path to collection file (env: HITBOX_COLLECTION)")
	flags.StringVar(&databaseFlag, "database", getEnvString("HITBOX_DATABASE", ""), "History database, e.g. sqlite://history.sqlite (env: HITBOX_DATABASE)")
	flags.StringVar(&envFileFlag, "env-file", getEnvString("HITBOX_ENV_FILE", ""), "Path to .env file for {{$NAME}} lookups (env: HITBOX_ENV_FILE)")
	flags.BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("HITBOX_VERBOSE", false), "Verbose output (env: HITBOX_VERBOSE)")
	flags.BoolVar(&noColorFlag, "no-color", getEnvBool("HITBOX_NO_COLOR", false), "Disable colored output (env: HITBOX_NO_COLOR)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return withExitCode(ExitUsageError, err)
	})

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(versionCmd)
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return withExitCode(ExitUsageError, err)
		}
		return nil
	}
}

// loadConfig reads the config file and applies global flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withExitCode(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}

	flagConfig := &config.Config{
		Database:               databaseFlag,
		IgnoreCertificateHosts: config.ParseHosts(os.Getenv("HITBOX_IGNORE_CERTIFICATE_HOSTS")),
		Proxy:                  os.Getenv("HITBOX_PROXY"),
	}
	if verboseFlag {
		flagConfig.Verbose = config.BoolPtr(true)
	}
	if noColorFlag {
		flagConfig.NoColor = config.BoolPtr(true)
	}
	return cfg.Merge(flagConfig), nil
}

// loadCollection loads --file, or searches the working directory.
func loadCollection() (*collection.Collection, error) {
	path := collectionFlag
	if path == "" {
		found, err := collection.Find(".")
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		path = found
	}
	c, err := collection.Load(path)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return c, nil
}
