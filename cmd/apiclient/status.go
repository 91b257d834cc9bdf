package main

import (
	"context"
	"strconv"

	"github.com/agentuity/go-apiclient/api"
	"github.com/agentuity/go-apiclient/credential"
	"github.com/spf13/cobra"
)

func newStatusCommand(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "also fetch the current user from the server")
	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		s := a.client.Session()
		kind := credential.KindNone
		if cred := s.Credential(); cred != nil {
			kind = cred.Kind()
		}
		rows := [][]string{
			{"host", a.client.Executor().Host()},
			{"status", s.Status().String()},
			{"user", strconv.FormatInt(s.UserID(), 10)},
			{"previous user", strconv.FormatInt(s.PreviousUserID(), 10)},
			{"credential", kind.String()},
			{"cached entries", strconv.Itoa(a.client.Cache().Len())},
		}
		if err := s.LastError(); err != nil {
			rows = append(rows, []string{"last error", api.Describe(err)})
		}
		if remote && s.IsLoggedIn() {
			user, err := a.client.CurrentUser(ctx)
			if err != nil {
				return err
			}
			rows = append(rows, []string{"username", user.Username}, []string{"email", user.Email})
		}
		a.printer.Table([]string{"field", "value"}, rows)
		return nil
	})
	return cmd
}
