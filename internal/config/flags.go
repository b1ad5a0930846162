// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package config

import (
	"github.com/spf13/pflag"
)

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":       "http.addr",
	"metrics-addr":    "metrics.addr",
	"log-format":      "log.format",
	"log-level":       "log.level",
	"store":           "store.driver",
	"connect-timeout": "database.connect_timeout",
	"auto-migrate":    "database.auto_migrate",
	"access-ttl":      "tokens.access_ttl",
	"refresh-ttl":     "tokens.refresh_ttl",
	"reset-ttl":       "tokens.reset_ttl",
}

// RegisterFlags adds the serve flags to fs. Flag defaults only document the
// default layer; unchanged flags never override the config file.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "REST API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address (empty to disable)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("store", d.Store.Driver, "account store (postgres or memory)")
	fs.Duration("connect-timeout", d.Database.ConnectTimeout, "how long to retry the initial database connection")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations on startup")
	fs.Duration("access-ttl", d.Tokens.AccessTTL, "access token lifetime")
	fs.Duration("refresh-ttl", d.Tokens.RefreshTTL, "refresh token lifetime")
	fs.Duration("reset-ttl", d.Tokens.ResetTTL, "password reset token lifetime")
}
