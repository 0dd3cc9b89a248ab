package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapfetch/snapfetch/inventory"
	"github.com/snapfetch/snapfetch/policy"
)

func newListCmd() *cobra.Command {
	var (
		name       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List cached snapshots, newest first",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
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

			listing, err := inventory.List(ctx, store, name, inventory.WithPolicies(policy.Set{
				"hourly": policy.Hourly,
				"daily":  policy.Daily,
				"weekly": policy.Weekly,
			}))
			if err != nil {
				return err
			}
			for _, defect := range listing.ParseDefects {
				log.Warn("%v", defect)
			}

			if held, info, err := store.ReadLock(ctx, name); err == nil && held {
				log.Info("refresh in flight: lock held for %s", info.Age(time.Now()).Round(time.Second))
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(listing.Records)
			}

			if len(listing.Records) == 0 {
				fmt.Printf("no snapshots for cache %q\n", name)
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tAGE\tHOURLY\tDAILY\tWEEKLY\tNAME")
			for _, rec := range listing.Records {
				fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%v\t%s\n",
					rec.CreatedAt.Format(time.RFC3339),
					rec.Age.Round(time.Second),
					rec.Stale["hourly"], rec.Stale["daily"], rec.Stale["weekly"],
					rec.Name)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "cache name (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
