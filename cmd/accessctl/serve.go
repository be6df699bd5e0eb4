// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/luxfi/log"

	"github.com/luxfi/gas-station/accesscontrol"
	"github.com/luxfi/gas-station/tracker"
)

var serveCommand = &cli.Command{
	Action: serveHTTP,
	Name:   "serve",
	Usage:  "run an HTTP admission endpoint backed by a Redis aggregate store",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "policy-file", Required: true, Usage: "path to the YAML policy file"},
		&cli.StringFlag{Name: "listen-address", Value: "127.0.0.1:8585", Usage: "address to bind the HTTP server to"},
		&cli.StringFlag{Name: "redis-url", Value: "redis://127.0.0.1:6379/0", Usage: "redis URL backing gas-usage aggregates"},
		&cli.StringFlag{Name: "sponsor", Required: true, Usage: "sponsor identity partitioning this service's aggregates"},
		&cli.StringFlag{Name: "decision-log-file", Usage: "rotating file to append one JSON line per decision to; stderr if unset"},
	},
}

// serveConfig is the process configuration this command runs with,
// assembled by viper from flags (with LUX_ACCESSCTL_-prefixed env
// overrides) rather than hand-rolled flag parsing — the struct itself is
// never touched by the access-control engine, which only ever sees the
// parsed accesscontrol.Config (spec.md §1's configuration non-goal).
type serveConfig struct {
	PolicyFile      string
	ListenAddress   string
	RedisURL        string
	Sponsor         string
	DecisionLogFile string
}

func loadServeConfig(c *cli.Context) (serveConfig, error) {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("policy-file", c.String("policy-file"), "")
	flags.String("listen-address", c.String("listen-address"), "")
	flags.String("redis-url", c.String("redis-url"), "")
	flags.String("sponsor", c.String("sponsor"), "")
	flags.String("decision-log-file", c.String("decision-log-file"), "")

	v := viper.New()
	v.SetEnvPrefix("LUX_ACCESSCTL")
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return serveConfig{}, fmt.Errorf("binding flags: %w", err)
	}

	return serveConfig{
		PolicyFile:      v.GetString("policy-file"),
		ListenAddress:   v.GetString("listen-address"),
		RedisURL:        v.GetString("redis-url"),
		Sponsor:         v.GetString("sponsor"),
		DecisionLogFile: v.GetString("decision-log-file"),
	}, nil
}

// decisionLogger appends one JSON line per admission decision to a
// rotating file, independent of the structured luxfi/log output above —
// an audit trail meant to be grepped or shipped, not a debugging stream.
type decisionLogger struct {
	*stdlog.Logger
}

func newDecisionLogger(path string) *decisionLogger {
	if path == "" {
		return &decisionLogger{stdlog.New(os.Stderr, "", stdlog.LstdFlags)}
	}
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	return &decisionLogger{stdlog.New(writer, "", stdlog.LstdFlags)}
}

func (d *decisionLogger) record(digest string, decision accesscontrol.Decision, err error) {
	entry := map[string]interface{}{
		"transactionDigest": digest,
		"decision":          decision,
	}
	if err != nil {
		entry["error"] = err.Error()
	}
	line, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		d.Printf("failed to marshal decision log entry: %v", marshalErr)
		return
	}
	d.Println(string(line))
}

func serveHTTP(c *cli.Context) error {
	cfg, err := loadServeConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	policy, err := accesscontrol.LoadConfig(cfg.PolicyFile)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid policy: %v", err), 1)
	}
	ctx := context.Background()
	controller := accesscontrol.NewController(policy)
	if err := controller.Initialize(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("policy failed to initialize: %v", err), 1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid redis url: %v", err), 1)
	}
	store := tracker.NewRedisStore(redis.NewClient(redisOpts), cfg.Sponsor)

	decisions := newDecisionLogger(cfg.DecisionLogFile)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/check-access", newCheckAccessHandler(controller, store, decisions))

	log.Info("accessctl: listening", "address", cfg.ListenAddress, "policy-file", cfg.PolicyFile)
	return http.ListenAndServe(cfg.ListenAddress, mux)
}

func newCheckAccessHandler(controller *accesscontrol.Controller, store *tracker.RedisStore, decisions *decisionLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req checkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
			return
		}

		tctx, err := req.toTransactionContext()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tctx.Headers = r.Header
		tctx = tctx.WithTracker(store.WithContext(r.Context()))

		decision, err := controller.CheckAccess(r.Context(), tctx)
		decisions.record(req.TransactionDigest, decision, err)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"decision": string(decision)})
	}
}
