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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/contracts/services/contract"
	"github.com/AleutianAI/contracts/services/contract/analysis"
)

// styles renders for one writer, so that output to a pipe or buffer
// carries no escape codes.
type styles struct {
	title   lipgloss.Style
	member  lipgloss.Style
	ok      lipgloss.Style
	bad     lipgloss.Style
	muted   lipgloss.Style
	warning lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3")),
		member:  r.NewStyle().Bold(true),
		ok:      r.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
		bad:     r.NewStyle().Foreground(lipgloss.Color("#e53935")),
		muted:   r.NewStyle().Faint(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("#FFC107")),
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (s styles) verdict(v analysis.Verdict) string {
	if v.Valid {
		return s.ok.Render("valid")
	}
	return s.bad.Render("invalid")
}

// renderAnalyses writes one block per analyzed member.
func renderAnalyses(w io.Writer, results []contract.MemberAnalysis) {
	writeAnalyses(w, newStyles(w), results)
}

func writeAnalyses(w io.Writer, s styles, results []contract.MemberAnalysis) {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  %s\n", s.member.Render(r.Member), s.verdict(r.Verdict))
		renderSummary(w, s, r.Analysis)
		for _, e := range r.Verdict.Errors {
			fmt.Fprintf(w, "  %s %s\n", s.bad.Render("!"), e)
		}
	}
}

func renderSummary(w io.Writer, s styles, sum analysis.Summary) {
	if !sum.HasContract {
		fmt.Fprintf(w, "  %s\n", s.muted.Render("no contract"))
		return
	}
	for _, p := range sum.Parameters {
		fmt.Fprintf(w, "  param  %-12s #%d %-10s %s %s\n",
			p.Parameter, p.Position, p.ParameterType, p.Annotation,
			s.muted.Render("("+p.TypeName+"::"+p.MethodName+")"))
	}
	for _, r := range sum.ReturnValues {
		fmt.Fprintf(w, "  return %-15s %-10s %s %s\n",
			"", r.ReturnType, r.Annotation,
			s.muted.Render("("+r.TypeName+"::"+r.MethodName+")"))
	}
}

// renderReport writes the report totals and the invalid members.
func renderReport(w io.Writer, rep *contract.Report, diags []analysis.Diagnostic) {
	s := newStyles(w)
	fmt.Fprintln(w, s.title.Render("Contract report"))
	fmt.Fprintf(w, "  types %d  members %d  contracts %d  invalid %d  failed %d\n",
		rep.Types, rep.Members, rep.Contracts, rep.Invalid, rep.Failed)

	for _, e := range rep.Entries {
		if e.Verdict.Valid {
			continue
		}
		fmt.Fprintf(w, "\n%s  %s\n", s.member.Render(e.Member), s.verdict(e.Verdict))
		for _, msg := range e.Verdict.Errors {
			fmt.Fprintf(w, "  %s %s\n", s.bad.Render("!"), msg)
		}
	}
	for _, msg := range rep.Errors {
		fmt.Fprintf(w, "\n%s %s\n", s.bad.Render("error:"), msg)
	}
	if len(diags) > 0 {
		fmt.Fprintln(w)
		for _, d := range diags {
			fmt.Fprintf(w, "%s %s %s: %s\n", s.warning.Render("warning"), d.Code, d.Location,
				strings.TrimSpace(d.Message))
		}
	}
}
