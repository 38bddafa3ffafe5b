package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitbox/packages/capture"
	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	"github.com/abdul-hamid-achik/hitbox/packages/core/config"
	"github.com/abdul-hamid-achik/hitbox/packages/core/template"
	"github.com/abdul-hamid-achik/hitbox/packages/db"
	"github.com/abdul-hamid-achik/hitbox/packages/http"
	"github.com/abdul-hamid-achik/hitbox/packages/output"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var requestCmd = &cobra.Command{
	Use:     "request <recipe>",
	Aliases: []string{"req", "r"},
	Short:   "Build and send a recipe",
	Long: `Build a recipe with the selected profile and send it.

Examples:
  hitbox request get_user
  hitbox request get_user --profile staging --override id=42
  hitbox request create_user --body-file user.json
  hitbox request login --basic admin:secret --filter token
  hitbox request search --disable-query debug --url-only
  hitbox request get_user --watch`,
	Args:              usageArgs(cobra.ExactArgs(1)),
	ValidArgsFunction: completeRecipes,
	RunE:              requestCommand,
}

// requestFlags holds everything the request command reads from its flags.
type requestFlags struct {
	profile        string
	overrides      []string
	disableHeaders []string
	disableQuery   []string
	body           string
	bodyFile       string
	form           []string
	basic          string
	bearer         string
	urlOnly        bool
	bodyOnly       bool
	filter         string
	output         string
	watch          bool
	noHistory      bool
}

var reqFlags requestFlags

func init() {
	flags := requestCmd.Flags()
	flags.StringVarP(&reqFlags.profile, "profile", "p", getEnvString("HITBOX_PROFILE", ""), "Profile to render with (env: HITBOX_PROFILE)")
	flags.StringArrayVar(&reqFlags.overrides, "override", nil, "Override a profile field (key=value, repeatable)")
	flags.StringSliceVar(&reqFlags.disableHeaders, "disable-header", nil, "Do not send this header (repeatable)")
	flags.StringSliceVar(&reqFlags.disableQuery, "disable-query", nil, "Do not send this query parameter (repeatable)")
	flags.StringVar(&reqFlags.body, "body", "", "Send this body instead of the recipe's")
	flags.StringVar(&reqFlags.bodyFile, "body-file", "", "Send the contents of this file as the body")
	flags.StringArrayVar(&reqFlags.form, "form", nil, "Override a form field (key=value, repeatable)")
	flags.StringVar(&reqFlags.basic, "basic", "", "Use basic authentication (user[:password])")
	flags.StringVar(&reqFlags.bearer, "bearer", "", "Use bearer authentication with this token")
	flags.BoolVar(&reqFlags.urlOnly, "url-only", false, "Print the rendered URL without sending")
	flags.BoolVar(&reqFlags.bodyOnly, "body-only", false, "Print the rendered body without sending")
	flags.StringVar(&reqFlags.filter, "filter", "", "Print only this part of the response (gjson path, header:<name>, status or duration)")
	flags.StringVarP(&reqFlags.output, "output", "o", getEnvString("HITBOX_OUTPUT", "console"), "Output format: console, json (env: HITBOX_OUTPUT)")
	flags.BoolVarP(&reqFlags.watch, "watch", "w", false, "Re-send whenever the collection file changes")
	flags.BoolVar(&reqFlags.noHistory, "no-history", getEnvBool("HITBOX_NO_HISTORY", false), "Do not store the exchange in the history database (env: HITBOX_NO_HISTORY)")

	requestCmd.MarkFlagsMutuallyExclusive("body", "body-file")
	requestCmd.MarkFlagsMutuallyExclusive("basic", "bearer")
	requestCmd.MarkFlagsMutuallyExclusive("url-only", "body-only")
	_ = requestCmd.RegisterFlagCompletionFunc("profile", completeProfiles)
}

// parseKeyValues parses repeated key=value flags.
func parseKeyValues(flag string, pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--%s %q: expected key=value", flag, pair)
		}
		out[key] = value
	}
	return out, nil
}

// buildOptions turns flags into per-build overrides.
func (f *requestFlags) buildOptions() (http.BuildOptions, error) {
	options := http.BuildOptions{
		DisabledHeaders:         f.disableHeaders,
		DisabledQueryParameters: f.disableQuery,
	}

	switch {
	case f.body != "":
		options.Body = []byte(f.body)
	case f.bodyFile != "":
		data, err := os.ReadFile(f.bodyFile)
		if err != nil {
			return options, fmt.Errorf("reading body file: %w", err)
		}
		options.Body = data
	}

	form, err := parseKeyValues("form", f.form)
	if err != nil {
		return options, err
	}
	options.FormFields = form

	switch {
	case f.basic != "":
		user, password, hasPassword := strings.Cut(f.basic, ":")
		if hasPassword {
			options.Authentication = collection.BasicAuth(user, &password)
		} else {
			options.Authentication = collection.BasicAuth[string](user, nil)
		}
	case f.bearer != "":
		options.Authentication = collection.BearerAuth(f.bearer)
	}
	return options, nil
}

func requestCommand(cmd *cobra.Command, args []string) error {
	options, err := reqFlags.buildOptions()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	overrides, err := parseKeyValues("override", reqFlags.overrides)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	formatter, err := output.New(strings.ToLower(reqFlags.output), cmd.OutOrStdout(),
		output.WithVerbose(cfg.GetVerbose()),
		output.WithNoColor(cfg.GetNoColor()),
	)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	engine, err := http.NewEngine(cfg, http.WithLogger(logger), http.WithUserAgent(userAgent()))
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := &requestRun{
		recipeID:  collection.RecipeID(args[0]),
		flags:     &reqFlags,
		options:   options,
		overrides: overrides,
		cfg:       cfg,
		engine:    engine,
		formatter: formatter,
		out:       cmd.OutOrStdout(),
	}

	if !reqFlags.watch {
		return run.execute(ctx)
	}
	return run.watch(ctx)
}

// requestRun is one configured invocation of the request command. execute
// may be called repeatedly in watch mode; each call reloads the collection
// and builds a fresh seed.
type requestRun struct {
	recipeID  collection.RecipeID
	flags     *requestFlags
	options   http.BuildOptions
	overrides map[string]string
	cfg       *config.Config
	engine    *http.Engine
	formatter output.Formatter
	out       io.Writer
}

func (r *requestRun) templateContext(c *collection.Collection) (*template.Context, error) {
	profile := collection.ProfileID(r.flags.profile)
	if profile == "" {
		profile = collection.ProfileID(r.cfg.DefaultProfile)
	}
	tc, err := c.TemplateContext(profile, r.overrides)
	if err != nil {
		return nil, err
	}
	if envFileFlag != "" {
		env, err := template.LoadDotEnv(envFileFlag)
		if err != nil {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
		tc.Env = env
	}
	return tc, nil
}

func (r *requestRun) execute(ctx context.Context) error {
	c, err := loadCollection()
	if err != nil {
		return err
	}
	recipe, err := c.Recipe(r.recipeID)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	tc, err := r.templateContext(c)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	seed := http.NewRequestSeed(*recipe, r.options)

	switch {
	case r.flags.urlOnly:
		u, err := r.engine.BuildURL(ctx, seed, tc)
		if err != nil {
			r.formatter.FormatError(err)
			return reported(ExitBuildError, err)
		}
		fmt.Fprintln(r.out, u)
		return nil
	case r.flags.bodyOnly:
		body, err := r.engine.BuildBody(ctx, seed, tc)
		if err != nil {
			r.formatter.FormatError(err)
			return reported(ExitBuildError, err)
		}
		if body != nil {
			fmt.Fprintf(r.out, "%s\n", body)
		}
		return nil
	}

	ticket, err := r.engine.Build(ctx, seed, tc)
	if err != nil {
		r.formatter.FormatError(err)
		return reported(ExitBuildError, err)
	}

	store, closeStore := r.openStore()
	defer closeStore()

	exchange, err := ticket.Send(ctx, store)
	if err != nil {
		r.formatter.FormatError(err)
		return reported(ExitNetworkError, err)
	}

	if r.flags.filter != "" {
		return r.printFiltered(exchange)
	}
	r.formatter.FormatExchange(exchange)
	return nil
}

// openStore opens the history database. History is best-effort: when the
// database cannot be opened the request is still sent.
func (r *requestRun) openStore() (http.ExchangeStore, func()) {
	if r.flags.noHistory {
		return nil, func() {}
	}
	database, err := db.Open(r.cfg.GetDatabase())
	if err != nil {
		logger.Warn("history disabled", "database", r.cfg.GetDatabase(), "error", err)
		return nil, func() {}
	}
	return database, func() { _ = database.Close() }
}

func (r *requestRun) printFiltered(exchange *http.Exchange) error {
	selector, err := capture.ParseSelector(r.flags.filter)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	value, ok := capture.NewExtractor(exchange).Raw(selector)
	if !ok {
		return withExitCode(ExitFailure, fmt.Errorf("filter %q matched nothing", r.flags.filter))
	}
	fmt.Fprintln(r.out, value)
	return nil
}

// watch sends once, then again after every write to the collection file.
// Errors from individual runs are shown and do not stop watching.
func (r *requestRun) watch(ctx context.Context) error {
	path := collectionFlag
	if path == "" {
		found, err := collection.Find(".")
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		path = found
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files on save, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	target := filepath.Clean(path)

	rerun := func() {
		if err := r.execute(ctx); err != nil {
			var e *exitError
			if !errors.As(err, &e) || !e.reported {
				r.formatter.FormatError(err)
			}
		}
		fmt.Fprintf(r.out, "\nWatching %s for changes... (press Ctrl+C to stop)\n", path)
	}
	rerun()

	// Debounce rapid successive writes into one run
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				debounce = time.After(WatchDebounceDelay)
			}
		case <-debounce:
			debounce = nil
			fmt.Fprintf(r.out, "\nFile changed: %s\n\n", path)
			rerun()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.formatter.FormatError(fmt.Errorf("watcher error: %w", err))
		}
	}
}
