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
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/contracts/services/contract/annotations"
	"github.com/AleutianAI/contracts/services/contract/extract"
	"github.com/AleutianAI/contracts/services/contract/meta"
)

func newExtractCmd(a *app) *cobra.Command {
	var output string
	var check bool
	cmd := &cobra.Command{
		Use:   "extract <path>...",
		Short: "Generate a catalog document from C# sources",
		Long: `Parse the .cs files under each path and write a catalog document with
the declared types and their contract attributes. Attributes that are not
registered annotations are left out. Types that are not declared in the
sources are written as object and reported as warnings.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			registry := annotations.Default()
			x := extract.New(extract.WithKnownAnnotations(registry.Names()))

			res, err := x.ExtractPaths(ctx, args...)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}

			var buf bytes.Buffer
			enc := yaml.NewEncoder(&buf)
			enc.SetIndent(2)
			if err := enc.Encode(res.Document); err != nil {
				return fmt.Errorf("encode catalog: %w", err)
			}
			if err := enc.Close(); err != nil {
				return fmt.Errorf("encode catalog: %w", err)
			}

			if check {
				if _, err := meta.LoadCatalog(ctx, buf.Bytes(), registry); err != nil {
					return fmt.Errorf("extracted catalog does not load: %w", err)
				}
			}
			a.logger.Info("extracted catalog",
				"files", res.Files,
				"types", len(res.Document.Types),
				"warnings", len(res.Warnings))

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			return os.WriteFile(output, buf.Bytes(), 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the document to a file instead of stdout")
	cmd.Flags().BoolVar(&check, "check", true, "load the generated document before writing it")
	return cmd
}
