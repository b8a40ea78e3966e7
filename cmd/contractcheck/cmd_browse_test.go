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
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/contracts/services/contract"
	"github.com/AleutianAI/contracts/services/contract/analysis"
)

func browseFixture() *contract.Report {
	return &contract.Report{
		Contracts: 3,
		Invalid:   1,
		Entries: []contract.MemberAnalysis{
			{Member: "Armory.Sword::Strike(string)", Verdict: analysis.Verdict{Valid: true}},
			{Member: "Armory.Sword::Sharpen(int)", Verdict: analysis.Verdict{Errors: []string{"NotNullOrBlank cannot be applied"}}},
			{Member: "Armory.Sword::Inspect(object)", Verdict: analysis.Verdict{Valid: true}},
		},
	}
}

func press(m tea.Model, msg tea.KeyMsg) tea.Model {
	next, _ := m.Update(msg)
	return next
}

func TestBrowseModel_Navigation(t *testing.T) {
	var m tea.Model = newBrowseModel(browseFixture(), newStyles(&bytes.Buffer{}))
	m = press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})

	view := m.View()
	if !strings.Contains(view, "> Armory.Sword::Sharpen(int)") {
		t.Fatalf("expected cursor on Sharpen:\n%s", view)
	}
	if !strings.Contains(view, "NotNullOrBlank cannot be applied") {
		t.Fatalf("expected Sharpen details:\n%s", view)
	}

	m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	if !strings.Contains(m.View(), "> Armory.Sword::Inspect(object)") {
		t.Fatal("cursor must stop at the last entry")
	}

	m = press(m, tea.KeyMsg{Type: tea.KeyUp})
	m = press(m, tea.KeyMsg{Type: tea.KeyUp})
	m = press(m, tea.KeyMsg{Type: tea.KeyUp})
	if !strings.Contains(m.View(), "> Armory.Sword::Strike(string)") {
		t.Fatal("cursor must stop at the first entry")
	}
}

func TestBrowseModel_InvalidOnly(t *testing.T) {
	var m tea.Model = newBrowseModel(browseFixture(), newStyles(&bytes.Buffer{}))
	m = press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = press(m, tea.KeyMsg{Type: tea.KeyTab})

	view := m.View()
	if strings.Contains(view, "Strike") || strings.Contains(view, "Inspect") {
		t.Fatalf("valid members must be hidden:\n%s", view)
	}
	if !strings.Contains(view, "> Armory.Sword::Sharpen(int)") {
		t.Fatalf("cursor must clamp to the remaining entry:\n%s", view)
	}

	m = press(m, tea.KeyMsg{Type: tea.KeyTab})
	if !strings.Contains(m.View(), "Inspect") {
		t.Fatal("tab toggles the filter off")
	}
}

func TestBrowseModel_Empty(t *testing.T) {
	m := newBrowseModel(&contract.Report{}, newStyles(&bytes.Buffer{}))
	if !strings.Contains(m.View(), "No members.") {
		t.Fatalf("unexpected view:\n%s", m.View())
	}
	next := press(m, tea.KeyMsg{Type: tea.KeyDown})
	if !strings.Contains(next.View(), "No members.") {
		t.Fatal("moving in an empty list must not panic or change the view")
	}
}

func TestBrowseModel_Quit(t *testing.T) {
	m := newBrowseModel(browseFixture(), newStyles(&bytes.Buffer{}))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q must return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q must quit")
	}
}

func TestBrowseModel_Resize(t *testing.T) {
	var m tea.Model = newBrowseModel(browseFixture(), newStyles(&bytes.Buffer{}))
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 6})
	bm := m.(browseModel)
	if bm.height != 2 || bm.detail.Width != 120-listWidth-2 {
		t.Fatalf("height=%d detail width=%d", bm.height, bm.detail.Width)
	}
	m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	view := m.View()
	if strings.Contains(view, "Strike") {
		t.Fatalf("list must scroll to keep the cursor visible:\n%s", view)
	}
}
