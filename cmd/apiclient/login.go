package main

import (
	"context"

	"github.com/agentuity/go-apiclient/credential"
	"github.com/agentuity/go-apiclient/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newLoginCommand(a *app) *cobra.Command {
	var username, password, token string
	var device bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a password, an access token or this device",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&password, "password", "", "account password, prompted when omitted")
	cmd.Flags().StringVar(&token, "token", "", "third party access token")
	cmd.Flags().BoolVar(&device, "device", false, "log in with the device credential of this installation")
	cmd.MarkFlagsMutuallyExclusive("username", "token", "device")

	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		var cred credential.Credential
		switch {
		case token != "":
			cred = credential.ThirdParty{AccessToken: token}
		case device:
			cred = a.deviceCredential()
		default:
			var err error
			if username == "" {
				if username, err = tui.Input(a.in, "Username", "The account to log in with"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = tui.Password(a.in, "Password", "The password for "+username); err != nil {
					return err
				}
			}
			cred = credential.Password{Username: username, Password: password}
		}

		if err := tui.Spin(ctx, "Logging in...", func(ctx context.Context) error {
			return a.client.Login(ctx, cred)
		}); err != nil {
			return err
		}
		a.printer.Success("Logged in as user %d", a.client.Session().UserID())
		return nil
	})
	return cmd
}

// deviceCredential reuses the stored device credential when there is one,
// otherwise it starts a new device binding.
func (a *app) deviceCredential() credential.Credential {
	if d, ok := a.client.Session().Credential().(*credential.Device); ok && d.Bound() {
		return d
	}
	return a.client.DeviceCredential("", "")
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, args []string) error {
			if !a.client.Session().IsLoggedIn() {
				return errors.New("not logged in")
			}
			a.client.Logout(ctx)
			a.printer.Success("Logged out")
			return nil
		}),
	}
}
