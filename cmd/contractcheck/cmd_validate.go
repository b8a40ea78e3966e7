// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/contracts/services/contract"
	"github.com/AleutianAI/contracts/services/contract/analysis"
)

// ErrInvalidContracts is returned by validate when the catalog has
// misapplied annotations.
var ErrInvalidContracts = errors.New("catalog has invalid contracts")

// diagnosticCollector is a DiagnosticSink that keeps what it receives.
type diagnosticCollector struct {
	mu    sync.Mutex
	diags []analysis.Diagnostic
}

func (c *diagnosticCollector) Report(_ context.Context, d analysis.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

func (c *diagnosticCollector) all() []analysis.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]analysis.Diagnostic(nil), c.diags...)
}

// validateOutput is the JSON form of a validate run.
type validateOutput struct {
	Report      *contract.Report      `json:"report"`
	Diagnostics []analysis.Diagnostic `json:"diagnostics"`
}

func newValidateCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every contract in the catalog",
		Long: `Analyze every method and constructor of the catalog and fail when a
member's contracts cannot apply to it.

By default a member fails only when none of its annotations can apply.
With --strict every misapplied annotation is reported as a DB01 or DB02
diagnostic and fails the run. When store.path is set, reports of an
unchanged catalog are read from the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			collector := &diagnosticCollector{}
			if strict {
				a.cfg.Analyzer.DropInapplicable = true
			}
			opts := []contract.ServiceOption{contract.WithDiagnosticSink(collector)}
			store, closeStore, err := a.openReportStore()
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, closeStore())
			}()
			if store != nil {
				opts = append(opts, contract.WithReportStore(store))
			}

			svc, err := a.loadService(ctx, opts...)
			if err != nil {
				return err
			}
			rep, err := svc.Report(ctx, a.cfg.Analyzer.Inherit)
			if err != nil {
				return err
			}
			diags := collector.all()

			if a.flags.jsonOutput {
				if diags == nil {
					diags = []analysis.Diagnostic{}
				}
				if err := writeJSON(cmd.OutOrStdout(), validateOutput{Report: rep, Diagnostics: diags}); err != nil {
					return err
				}
			} else {
				renderReport(cmd.OutOrStdout(), rep, diags)
			}

			switch {
			case rep.Failed > 0:
				return fmt.Errorf("%d members could not be analyzed", rep.Failed)
			case rep.Invalid > 0:
				return fmt.Errorf("%w: %d invalid members", ErrInvalidContracts, rep.Invalid)
			case strict && len(diags) > 0:
				return fmt.Errorf("%w: %d misapplied annotations", ErrInvalidContracts, len(diags))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on any misapplied annotation")
	return cmd
}
