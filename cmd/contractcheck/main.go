// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command contractcheck analyzes, validates and serves contract catalogs.
//
// Usage:
//
//	contractcheck analyze --catalog armory.yaml Sword OnMethodParameter
//	contractcheck validate --catalog armory.yaml --strict
//	contractcheck serve --config contract.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/contracts/services/contract"
	"github.com/AleutianAI/contracts/services/contract/config"
)

// rootFlags hold the persistent flag values.
type rootFlags struct {
	configPath string
	catalog    string
	logLevel   string
	jsonOutput bool
	trace      bool
}

// app is the state shared by subcommands once the root command has run.
type app struct {
	flags    rootFlags
	cfg      *config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "contractcheck",
		Short:         "Analyze design-by-contract annotations in a type catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "configuration file (defaults are embedded)")
	pf.StringVar(&a.flags.catalog, "catalog", "", "catalog document (overrides catalog.path)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
	pf.BoolVar(&a.flags.jsonOutput, "json", false, "write results as JSON")
	pf.BoolVar(&a.flags.trace, "trace", false, "print spans to stderr")

	root.AddCommand(newAnalyzeCmd(a), newValidateCmd(a), newBrowseCmd(a), newExtractCmd(a), newServeCmd(a))
	return root
}

// setup loads configuration and installs logging and tracing.
func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
		cmd.SetContext(ctx)
	}

	var err error
	if a.flags.configPath != "" {
		a.cfg, err = config.LoadFile(ctx, a.flags.configPath)
	} else {
		a.cfg, err = config.Default(ctx)
	}
	if err != nil {
		return err
	}
	if a.flags.catalog != "" {
		a.cfg.Catalog.Path = a.flags.catalog
	}
	if a.flags.logLevel != "" {
		a.cfg.Log.Level = a.flags.logLevel
	}

	a.logger = newLogger(cmd.ErrOrStderr(), a.cfg.Log)
	slog.SetDefault(a.logger)

	a.shutdown, err = setupTracing(ctx, tracingOptions{
		stdout:       a.flags.trace,
		writer:       cmd.ErrOrStderr(),
		otlpEndpoint: a.cfg.Tracing.OTLPEndpoint,
		insecure:     a.cfg.Tracing.Insecure,
	})
	return err
}

// loadService creates a service and loads the configured catalog.
func (a *app) loadService(ctx context.Context, opts ...contract.ServiceOption) (*contract.Service, error) {
	if a.cfg.Catalog.Path == "" {
		return nil, fmt.Errorf("no catalog: pass --catalog or set %s", config.EnvCatalog)
	}
	opts = append([]contract.ServiceOption{contract.WithServiceLogger(a.logger)}, opts...)
	svc, err := contract.NewService(a.cfg, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := svc.Reload(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}
