package main

import (
	"context"
	"fmt"
	"time"

	"github.com/agentuity/go-apiclient/api"
	"github.com/agentuity/go-apiclient/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/xhit/go-str2duration/v2"
)

func newGetCommand(a *app) *cobra.Command {
	var (
		cacheFor string
		params   api.Params
	)
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Read a path of the API with the current session",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&cacheFor, "cache", "", "serve from and store in the response cache for this long (e.g. 30s, 1d)")
	cmd.Flags().StringVarP(&params.Query, "query", "q", "", "search query")
	cmd.Flags().StringVar(&params.OrderBy, "order-by", "", "ordering field")
	cmd.Flags().IntVar(&params.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&params.PageSize, "page-size", 0, "page size")

	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		var ttl time.Duration
		if cacheFor != "" {
			d, err := str2duration.ParseDuration(cacheFor)
			if err != nil {
				return errors.Wrapf(api.ErrMissingParameters, "invalid cache duration %q", cacheFor)
			}
			ttl = d
		}
		body, err := a.client.Get(ctx, args[0], &params, ttl)
		if err != nil {
			return err
		}
		a.printer.Println(body)
		if params.HasNext() {
			fmt.Fprintln(cmd.ErrOrStderr(), tui.Muted(fmt.Sprintf("page %d of %d, %d total", params.Page, params.TotalPages, params.Total)))
		}
		return nil
	})
	return cmd
}
