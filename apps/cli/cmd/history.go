package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	"github.com/abdul-hamid-achik/hitbox/packages/db"
	"github.com/abdul-hamid-achik/hitbox/packages/output"
	"github.com/spf13/cobra"
)

var (
	historyLimitFlag   int
	historyProfileFlag string
	historyStatsFlag   bool
	historyOutputFlag  string
)

var historyCmd = &cobra.Command{
	Use:   "history [recipe]",
	Short: "Show previously sent requests",
	Long: `Show exchanges stored in the history database, most recent first.

Examples:
  hitbox history
  hitbox history get_user --limit 5
  hitbox history get_user --profile staging --stats`,
	Args:              usageArgs(cobra.MaximumNArgs(1)),
	ValidArgsFunction: completeRecipes,
	RunE:              historyCommand,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", getEnvInt("HITBOX_HISTORY_LIMIT", 20), "Maximum number of exchanges to show, 0 for all (env: HITBOX_HISTORY_LIMIT)")
	historyCmd.Flags().StringVarP(&historyProfileFlag, "profile", "p", "", "Only show exchanges sent with this profile")
	historyCmd.Flags().BoolVar(&historyStatsFlag, "stats", false, "Show latency percentiles instead of the list")
	historyCmd.Flags().StringVarP(&historyOutputFlag, "output", "o", getEnvString("HITBOX_OUTPUT", "console"), "Output format: console, json (env: HITBOX_OUTPUT)")
	_ = historyCmd.RegisterFlagCompletionFunc("profile", completeProfiles)
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	formatter, err := output.New(strings.ToLower(historyOutputFlag), cmd.OutOrStdout(),
		output.WithVerbose(cfg.GetVerbose()),
		output.WithNoColor(cfg.GetNoColor()),
	)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	database, err := db.Open(cfg.GetDatabase())
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer database.Close()

	filter := db.ExchangeFilter{
		ProfileID: collection.ProfileID(historyProfileFlag),
		Limit:     historyLimitFlag,
	}
	if len(args) == 1 {
		filter.RecipeID = collection.RecipeID(args[0])
	}
	// stats cover the whole history, not just one page of it
	if historyStatsFlag {
		filter.Limit = 0
	}

	exchanges, err := database.ListExchanges(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}

	if historyStatsFlag {
		formatter.FormatStats(output.ComputeStats(exchanges))
		return nil
	}
	formatter.FormatHistory(exchanges)
	return nil
}
