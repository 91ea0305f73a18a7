package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jrsteele09/go-clinic-auth/authapi"
	"github.com/jrsteele09/go-clinic-auth/httpclient"
	"github.com/jrsteele09/go-clinic-auth/notify"
	"github.com/jrsteele09/go-clinic-auth/session"
	"github.com/jrsteele09/go-clinic-auth/tokenstore"
	"github.com/jrsteele09/go-clinic-auth/tokenstore/boltkv"
	"github.com/rs/zerolog"
)

// app is the composition root: one persisted store, one HTTP adapter and the
// session manager driving both.
type app struct {
	api     *authapi.Client
	store   *tokenstore.Store
	session *session.Manager
	out     io.Writer
	logger  zerolog.Logger
}

func newApp(profile *Profile, out, errOut io.Writer) (*app, error) {
	level, err := zerolog.ParseLevel(profile.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: errOut, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}}).
		Level(level).With().Timestamp().Logger()

	kv, err := boltkv.Open(profile.StorePath, "")
	if err != nil {
		return nil, fmt.Errorf("open session store %s: %w", profile.StorePath, err)
	}
	store := tokenstore.New(kv, tokenstore.WithLogger(logger))

	hc := httpclient.New(profile.BaseURL, store,
		httpclient.WithTimeout(profile.Timeout),
		httpclient.WithLogger(logger),
	)
	api := authapi.New(hc)

	// Notifications are user facing, so they are shown whatever the log level.
	notifier := notify.NewLogNotifier(logger.Level(zerolog.InfoLevel))
	mgr := session.NewManager(api, store, notifier, session.WithLogger(logger))
	hc.SetRefresher(mgr)

	a := &app{api: api, store: store, session: mgr, out: out, logger: logger}
	mgr.OnInvalidated(func(cause error) {
		fmt.Fprintln(errOut, "Session ended. Run `clinicctl login` to sign in again.")
		logger.Debug().Err(cause).Msg("session invalidated")
	})
	return a, nil
}

// restore loads the persisted session. Failures leave the manager anonymous.
func (a *app) restore(ctx context.Context) {
	if err := a.session.Init(ctx); err != nil {
		a.logger.Debug().Err(err).Msg("no session restored")
	}
}

func (a *app) Close() error {
	return a.store.Close()
}
