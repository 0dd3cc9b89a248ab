package main

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/snapfetch/snapfetch/logger"
	"github.com/snapfetch/snapfetch/snapshot"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Shared state injected into commands
	cfg *fileConfig
	log logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "snapfetch",
	Short: "Disk-backed memoization cache for expensive fetches",
	Long: `snapfetch caches the result of expensive, time-varying fetches as
timestamped snapshots on disk (or in Redis) and refreshes them according to a
staleness policy — in the background by default, so stale data keeps being
served while the reload runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "__complete" {
			return nil
		}
		level := logger.GetLevelFromEnv()
		if verbose {
			level = logger.LevelDebug
		}
		log = logger.NewConsole(level)

		var err error
		cfg, err = loadConfig(configPath)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newUnlockCmd())
}

// openStore resolves the snapshot store from config: Redis when a redis URL
// is configured, the cache directory otherwise.
func openStore(ctx context.Context) (snapshot.Store, func(), error) {
	if cfg.Redis != "" {
		opts, err := redis.ParseURL(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		store := snapshot.NewRedis(ctx, client, snapshot.WithPrefix("snapfetch"))
		return store, func() { client.Close() }, nil
	}
	store, err := snapshot.NewFS(cfg.Dir)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error("%v", err)
		} else {
			os.Stderr.WriteString(err.Error() + "\n")
		}
		os.Exit(1)
	}
}
