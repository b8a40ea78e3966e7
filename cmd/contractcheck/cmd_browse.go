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
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/contracts/services/contract"
)

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the members with contracts interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.loadService(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := svc.Report(cmd.Context(), a.cfg.Analyzer.Inherit)
			if err != nil {
				return err
			}
			m := newBrowseModel(rep, newStyles(cmd.OutOrStdout()))
			_, err = tea.NewProgram(m,
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithAltScreen(),
			).Run()
			return err
		},
	}
}

// =============================================================================
// Browse Model
// =============================================================================

type browseKeys struct {
	Up      key.Binding
	Down    key.Binding
	Invalid key.Binding
	Quit    key.Binding
}

var defaultBrowseKeys = browseKeys{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Invalid: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "invalid only")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// listWidth is the width of the member list column.
const listWidth = 48

// browseModel lists report entries on the left and the selected entry's
// analysis on the right.
type browseModel struct {
	report      *contract.Report
	visible     []int
	cursor      int
	invalidOnly bool

	detail viewport.Model
	styles styles
	keys   browseKeys
	height int
}

func newBrowseModel(rep *contract.Report, s styles) browseModel {
	m := browseModel{
		report: rep,
		detail: viewport.New(80, 20),
		styles: s,
		keys:   defaultBrowseKeys,
		height: 20,
	}
	m.filter()
	return m
}

// filter recomputes the visible entries and keeps the cursor in range.
func (m *browseModel) filter() {
	m.visible = m.visible[:0]
	for i, e := range m.report.Entries {
		if m.invalidOnly && e.Verdict.Valid {
			continue
		}
		m.visible = append(m.visible, i)
	}
	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
	m.refresh()
}

func (m *browseModel) refresh() {
	if len(m.visible) == 0 {
		m.detail.SetContent(m.styles.muted.Render("No members."))
		return
	}
	var sb strings.Builder
	writeAnalyses(&sb, m.styles, []contract.MemberAnalysis{m.report.Entries[m.visible[m.cursor]]})
	m.detail.SetContent(sb.String())
	m.detail.GotoTop()
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-4, 1)
		m.detail.Width = max(msg.Width-listWidth-2, 10)
		m.detail.Height = m.height
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.refresh()
			}
			return m, nil
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.visible)-1 {
				m.cursor++
				m.refresh()
			}
			return m, nil
		case key.Matches(msg, m.keys.Invalid):
			m.invalidOnly = !m.invalidOnly
			m.filter()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m browseModel) View() string {
	rep := m.report
	header := m.styles.title.Render("Contracts") + "  " + m.styles.muted.Render(fmt.Sprintf(
		"%d members with contracts, %d invalid", rep.Contracts, rep.Invalid))

	var list strings.Builder
	start := 0
	if m.cursor >= m.height {
		start = m.cursor - m.height + 1
	}
	for row := start; row < len(m.visible) && row < start+m.height; row++ {
		e := rep.Entries[m.visible[row]]
		marker := "  "
		if row == m.cursor {
			marker = "> "
		}
		name := e.Member
		if len(name) > listWidth-4 {
			name = name[:listWidth-7] + "..."
		}
		line := marker + name
		if !e.Verdict.Valid {
			line = m.styles.bad.Render(line)
		} else if row == m.cursor {
			line = m.styles.member.Render(line)
		}
		list.WriteString(line + "\n")
	}

	help := m.styles.muted.Render(strings.Join([]string{
		m.keys.Up.Help().Key + " " + m.keys.Up.Help().Desc,
		m.keys.Down.Help().Key + " " + m.keys.Down.Help().Desc,
		m.keys.Invalid.Help().Key + " " + m.keys.Invalid.Help().Desc,
		m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc,
	}, "  •  "))

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(listWidth).Render(list.String()),
		m.detail.View(),
	)
	return header + "\n\n" + body + "\n" + help
}
