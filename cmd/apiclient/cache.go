package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newCacheCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}
	var expired, session bool
	flush := &cobra.Command{
		Use:   "flush",
		Short: "Remove cached responses",
		Args:  cobra.NoArgs,
	}
	flush.Flags().BoolVar(&expired, "expired", false, "only remove expired entries")
	flush.Flags().BoolVar(&session, "session", false, "only remove entries scoped to the session")
	flush.MarkFlagsMutuallyExclusive("expired", "session")
	flush.RunE = a.run(func(ctx context.Context, args []string) error {
		c := a.client.Cache()
		before := c.Len()
		switch {
		case expired:
			c.FlushExpired(ctx)
		case session:
			c.FlushSessionScoped(ctx)
		default:
			c.FlushAll(ctx)
		}
		a.printer.Success("Removed %d cached entries", before-c.Len())
		return nil
	})
	cmd.AddCommand(flush)
	return cmd
}
