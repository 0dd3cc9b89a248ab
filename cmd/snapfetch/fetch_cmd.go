package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapfetch/snapfetch/fetch"
	"github.com/snapfetch/snapfetch/policy"
)

// download is the payload cached by the fetch command.
type download struct {
	URL         string `msgpack:"url"`
	Status      int    `msgpack:"status"`
	ContentType string `msgpack:"content_type"`
	Body        []byte `msgpack:"body"`
}

func newFetchCmd() *cobra.Command {
	var (
		frequency string
		name      string
		wait      bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a URL through the cache",
		Args:  cobra.ExactArgs(1),
		Long: `Fetch downloads a URL and memoizes the response as a snapshot.

While the snapshot is fresh the cached body is served without touching the
network. Once it is stale per the configured frequency, a refresh runs in the
background (or synchronously with --wait) while the cached body is still
returned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			if frequency == "" {
				frequency = cfg.Frequency
			}
			pol, err := policy.Parse(frequency)
			if err != nil {
				return err
			}
			if name == "" {
				name = cfg.Name
			}

			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			result, res, err := fetch.As[download](ctx, fetch.Config{
				Loader: httpLoader,
				Policy: pol,
				Name:   name,
				Wait:   wait || cfg.Wait,
				Args:   []any{url},
				Store:  store,
				Logger: log,
			})
			if err != nil {
				return err
			}

			log.Info("served %s from %s snapshot (created %s)",
				url, res.Source, res.CreatedAt.Format(time.RFC3339))
			if output != "" {
				return os.WriteFile(output, result.Body, 0o644)
			}
			_, err = os.Stdout.Write(result.Body)
			return err
		},
	}

	cmd.Flags().StringVarP(&frequency, "frequency", "f", "", "staleness policy (name or duration, default from config)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "cache name (default from config)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "refresh synchronously instead of in the background")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the body to a file instead of stdout")
	return cmd
}

// httpLoader downloads args[0] and returns it as a download payload.
func httpLoader(ctx context.Context, args ...any) (any, error) {
	url, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("fetch: expected a url argument, got %T", args[0])
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch: %s returned %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return download{
		URL:         url,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
