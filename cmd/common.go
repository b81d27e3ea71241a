/*
Copyright © 2025 Oleh Solomko <oleh.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/osolomko/doctran/internal/api"
	"github.com/osolomko/doctran/internal/session"
	"github.com/osolomko/doctran/internal/store"
)

// app wires the layers together for one command invocation: the durable
// store, the API client with the session's token and forced-sign-out
// hook, and the session manager restored from disk.
type app struct {
	store   *store.Store
	api     *api.Client
	session *session.Manager
	log     *zap.Logger
}

func newApp(ctx context.Context) (*app, error) {
	log := newLogger()

	dbPath := viper.GetString("db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}

	// The API client and the session manager reference each other: the
	// client pulls the bearer token from the session, and a rejected
	// token forces the session out.
	var sess *session.Manager
	client := api.New(viper.GetString("api_url"),
		api.WithTokenSource(func() string {
			if sess == nil {
				return ""
			}
			return sess.Token()
		}),
		api.WithUnauthorizedHook(func() {
			if sess != nil {
				sess.ForceSignOut()
				fmt.Fprintln(os.Stderr, "Session expired. Please sign in again.")
			}
		}),
	)
	sess = session.NewManager(client, st, log)

	if _, err := sess.Restore(ctx); err != nil {
		log.Warn("session restore failed", zap.Error(err))
	}

	return &app{store: st, api: client, session: sess, log: log}, nil
}

func (a *app) Close() {
	_ = a.log.Sync()
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close local state: %v\n", err)
	}
}

func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
