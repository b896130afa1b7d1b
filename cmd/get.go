package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tanq16/ripfetch/internal/config"
	"github.com/tanq16/ripfetch/internal/fetch"
	"github.com/tanq16/ripfetch/internal/utils"
)

func newGetCmd() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "get [URL]",
		Short: "Print a page or list fetched with rate-limit aware retries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := fetchBody(cmd.Context(), cfg, args[0], follow)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}

	cmd.Flags().BoolVar(&follow, "follow", false, "Chase redirects without spending retries on them")
	return cmd
}

func fetchBody(ctx context.Context, c *config.Config, url string, follow bool) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	hc := c.HTTPClientConfig()
	httpClient := utils.NewHTTPClient(hc)
	client := fetch.NewClient(httpClient)
	if follow {
		return client.FetchFollowingRedirects(ctx, url, c.Retries, c.RetrySleep, httpClient.UserAgent(), hc.Headers)
	}
	return client.FetchWithRetry(ctx, url, c.Retries, c.RetrySleep, httpClient.UserAgent(), hc.Headers)
}
