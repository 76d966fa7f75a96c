package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/formulahunter/recordsync-go/internal/cache"
	"github.com/formulahunter/recordsync-go/internal/cache/sqlitekv"
	"github.com/formulahunter/recordsync-go/internal/config"
	"github.com/formulahunter/recordsync-go/internal/noterecord"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
	"github.com/formulahunter/recordsync-go/internal/recordtype"
	"github.com/formulahunter/recordsync-go/internal/syncengine"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in setupRootCmd.
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that must not bootstrap an Engine
// (nothing to sync against, or the bootstrap itself would be circular).
const skipConfigAnnotation = "skipConfig"

// manualInitAnnotation marks the init command itself: it calls Engine.Init
// from its own RunE (so it can surface the Confirmer prompt explicitly),
// so bootstrap must not also load the store for it.
const manualInitAnnotation = "manualInit"

// CLIContext bundles everything a subcommand needs: the resolved config,
// the wired sync engine, and a logger built from config + CLI-flag
// overrides. Built once in PersistentPreRunE.
type CLIContext struct {
	Cfg      *config.Config
	Registry *recordtype.Registry
	Store    *recordstore.Store
	Engine   *syncengine.Engine
	Logger   *slog.Logger
	Flags    CLIFlags

	kv *sqlitekv.Store
}

// CLIFlags mirrors the persistent flags, captured once so subcommands don't
// reach for package-level vars directly.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Debug      bool
	Quiet      bool
}

// Close releases the sqlite-backed key/value store underlying the cache.
func (cc *CLIContext) Close() error {
	if cc.kv == nil {
		return nil
	}

	return cc.kv.Close()
}

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics with an actionable
// message. RunE handlers for commands without skipConfigAnnotation may
// always assume PersistentPreRunE has populated it.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — ensure the command " +
			"does not carry skipConfigAnnotation, or loads its own context")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recordsync",
		Short:   "Hybrid local/remote record-sync client",
		Long:    "A local-first CLI for a typed record store that syncs against a remote record-sync daemon.",
		Version: version,
		// Silence Cobra's default error/usage printing — exitOnError handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			if err := bootstrap(cmd); err != nil {
				return err
			}

			if cmd.Annotations[manualInitAnnotation] == "true" {
				return nil
			}

			cc := mustCLIContext(cmd.Context())
			if _, err := cc.Engine.Init(cmd.Context()); err != nil {
				return fmt.Errorf("loading local store: %w", err)
			}

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cc := cliContextFrom(cmd.Context()); cc != nil {
				return cc.Close()
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSaveCmd())
	cmd.AddCommand(newEditCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newConflictsCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// bootstrap resolves configuration, opens the cache, builds the registry,
// store, transport, and engine, and stashes the resulting CLIContext in the
// command's context for RunE handlers to use.
func bootstrap(cmd *cobra.Command) error {
	logger := buildLogger(nil)

	env := config.ReadEnvOverrides()
	path := config.ResolveConfigPath(env, flagConfigPath)

	cfg, err := config.LoadOrDefault(path, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if env.Remote != "" {
		cfg.Remote.BaseURL = env.Remote
	}

	finalLogger := buildLogger(cfg)

	registry, err := noterecord.Registry()
	if err != nil {
		return fmt.Errorf("building record type registry: %w", err)
	}

	store := recordstore.NewStore(registry)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	kv, err := sqlitekv.Open(ctx, cfg.Cache.Path, finalLogger)
	if err != nil {
		return fmt.Errorf("opening cache database %s: %w", cfg.Cache.Path, err)
	}

	password, err := cfg.Password()
	if err != nil {
		kv.Close()

		return err
	}

	localCache := cache.New(kv, password, finalLogger, cfg.Cache.Prefix)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	transport := syncengine.NewHTTPTransport(cfg.Remote.BaseURL, httpClient, registry, finalLogger)

	engine := syncengine.NewEngine(store, localCache, transport, finalLogger, syncengine.WithConfirmer(defaultConfirmer))

	cc := &CLIContext{
		Cfg:      cfg,
		Registry: registry,
		Store:    store,
		Engine:   engine,
		Logger:   finalLogger,
		kv:       kv,
		Flags: CLIFlags{
			ConfigPath: path,
			JSON:       flagJSON,
			Verbose:    flagVerbose,
			Debug:      flagDebug,
			Quiet:      flagQuiet,
		},
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// defaultConfirmer prompts on a TTY before init() reloads the full remote
// store into an empty local one; non-interactive runs (pipes, --json) always
// decline so scripted invocations never block on stdin.
func defaultConfirmer(context.Context) (bool, error) {
	if flagJSON || !isatty.IsTerminal(os.Stdin.Fd()) {
		return false, nil
	}

	fmt.Fprint(os.Stderr, "No local cache found. Reload the full remote store? [y/N] ")

	reader := bufio.NewReader(os.Stdin)

	line, err := reader.ReadString('\n')
	if err != nil {
		return false, nil
	}

	switch line {
	case "y\n", "Y\n", "yes\n":
		return true, nil
	default:
		return false, nil
	}
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Pass nil for pre-config bootstrap. Config-file log level
// provides the baseline; --verbose/--debug/--quiet (mutually exclusive)
// override it since CLI flags always win.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo

	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
