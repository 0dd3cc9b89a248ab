package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newUnlockCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Remove an orphaned refresh lock",
		Args:  cobra.NoArgs,
		Long: `Unlock removes the refresh lock marker for a cache.

A crashed refresh leaves its lock behind, which defers every later background
refresh indefinitely. Check the lock's age with "snapfetch list" first: a
young lock usually belongs to a refresh that is still running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = cfg.Name
			}
			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			held, info, err := store.ReadLock(ctx, name)
			if err != nil {
				return err
			}
			if !held {
				log.Info("no refresh lock held for %q", name)
				return nil
			}
			if err := store.ReleaseLock(ctx, name); err != nil {
				return err
			}
			log.Info("removed refresh lock for %q (was held for %s)",
				name, info.Age(time.Now()).Round(time.Second))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "cache name (default from config)")
	return cmd
}
