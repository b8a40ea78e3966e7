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
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var inherit bool
	cmd := &cobra.Command{
		Use:   "analyze <type> <member>",
		Short: "Show the contracts of a member",
		Long: `Show the parameter and return value preconditions of every overload of
a member, with the verdict of the applicability check. A property name
analyzes its accessors; .ctor analyzes the constructors.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("inherit") {
				inherit = a.cfg.Analyzer.Inherit
			}
			svc, err := a.loadService(cmd.Context())
			if err != nil {
				return err
			}
			results, err := svc.Analyze(cmd.Context(), args[0], args[1], inherit)
			if err != nil {
				return err
			}
			if a.flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			renderAnalyses(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().BoolVar(&inherit, "inherit", true, "include interface and base declarations")
	return cmd
}
