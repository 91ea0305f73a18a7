package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-clinic-auth/authapi"
	"github.com/jrsteele09/go-clinic-auth/authmodel"
	"github.com/jrsteele09/go-clinic-auth/internal/utils"
	"github.com/jrsteele09/go-clinic-auth/users"
	"github.com/spf13/cobra"
)

const passwordEnvVar = "CLINIC_PASSWORD"

var errNotLoggedIn = errors.New("not logged in, run `clinicctl login`")

type rootOptions struct {
	configPath string
	baseURL    string
	storePath  string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Clinic account session client",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `clinicctl signs in to the clinic auth API and keeps the session in a
local BoltDB file. Access tokens are refreshed automatically; a failed
refresh ends the session.`,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultProfilePath(), "Profile file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "Auth API base URL (overrides profile)")
	cmd.PersistentFlags().StringVar(&opts.storePath, "store", "", "Session store file (overrides profile)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		signUpCmd(opts),
		loginCmd(opts),
		logoutCmd(opts),
		logoutAllCmd(opts),
		whoamiCmd(opts),
		tokenCmd(opts),
		statusCmd(opts),
		validateCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				banner := figure.NewFigure(appName, "cybermedium", true)
				fmt.Fprintln(cmd.OutOrStdout(), banner.String())
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func (o *rootOptions) profile() (*Profile, error) {
	profile, err := LoadProfile(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.baseURL != "" {
		profile.BaseURL = o.baseURL
	}
	if o.storePath != "" {
		profile.StorePath = o.storePath
	}
	if o.logLevel != "" {
		profile.LogLevel = o.logLevel
	}
	return profile, profile.Validate()
}

// withApp builds the app, restores the persisted session and runs fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	profile, err := o.profile()
	if err != nil {
		return err
	}
	a, err := newApp(profile, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.restore(ctx)
	return fn(ctx, a)
}

func signUpCmd(opts *rootOptions) *cobra.Command {
	var email, password, name, parentID string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account (use --parent to create a subuser)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				req := authmodel.SignUpRequest{Email: email, Password: resolvePassword(password), Name: name}
				if parentID != "" {
					req.ParentID = &parentID
				}
				profile, err := a.api.SignUp(ctx, req)
				if err != nil {
					return errors.New(authapi.MessageOf(err, "sign up failed"))
				}
				fmt.Fprintf(a.out, "Created %s\n", describe(profile))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (default $"+passwordEnvVar+")")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&parentID, "parent", "", "Main account ID for a subuser")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func loginCmd(opts *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				result := a.session.Login(ctx, email, resolvePassword(password))
				if !result.Success {
					return errors.New(result.Error)
				}
				fmt.Fprintf(a.out, "Logged in as %s\n", describe(result.User))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (default $"+passwordEnvVar+")")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End this device's session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				a.session.Logout(ctx)
				fmt.Fprintln(a.out, "Logged out")
				return nil
			})
		},
	}
}

func logoutAllCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout-all",
		Short: "End the session on every device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if !a.session.IsAuthenticated() {
					return errNotLoggedIn
				}
				if err := a.session.LogoutAllDevices(ctx); err != nil {
					return errors.New(authapi.MessageOf(err, "failed to log out from all devices"))
				}
				fmt.Fprintln(a.out, "Logged out from all devices")
				return nil
			})
		},
	}
}

func whoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				user := a.session.User()
				if user == nil {
					return errNotLoggedIn
				}
				fmt.Fprintln(a.out, describe(user))
				return nil
			})
		},
	}
}

func tokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				token, err := a.session.GetValidToken(ctx)
				if err != nil {
					return errNotLoggedIn
				}
				fmt.Fprintln(a.out, token)
				return nil
			})
		},
	}
}

func statusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				snapshot := a.session.Snapshot()
				fmt.Fprintf(a.out, "state:    %s\n", snapshot.State)
				if snapshot.User != nil {
					fmt.Fprintf(a.out, "account:  %s\n", describe(snapshot.User))
				}
				if raw := a.store.LoadRaw(ctx); raw.ExpiresAt != nil {
					fmt.Fprintf(a.out, "expires:  %s\n", raw.ExpiresAt.Local().Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

func validateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Ask the server whether the stored access token is valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if !a.session.IsAuthenticated() {
					return errNotLoggedIn
				}
				data, err := a.api.Validate(ctx)
				if err != nil {
					return errors.New(authapi.MessageOf(err, "token is not valid"))
				}
				fmt.Fprintf(a.out, "valid: %t (user %s)\n", data.Valid, data.UserID)
				return nil
			})
		},
	}
}

func resolvePassword(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(passwordEnvVar)
}

func describe(p *users.Profile) string {
	kind := "main account"
	if p.IsSubuser {
		kind = "subuser of " + utils.Value(p.ParentID)
	}
	return fmt.Sprintf("%s <%s> id=%s (%s)", p.Name, p.Email, p.ID, kind)
}
