// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package meta

import (
	"errors"
	"testing"
)

func TestCatalog_ParseType(t *testing.T) {
	dict := &Type{Name: "Dictionary", TypeParams: []string{"K", "V"}}
	sword := &Type{Namespace: "Game", Name: "Sword"}
	cat, err := NewCatalog([]*Type{dict, sword})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	tp := TypeParameter("T")

	tests := []struct {
		expr string
		key  string
	}{
		{"int", "int"},
		{" string ", "string"},
		{"Sword", "Game.Sword"},
		{"Game.Sword", "Game.Sword"},
		{"IEnumerable", "IEnumerable"},
		{"IEnumerable<>", "IEnumerable`1"},
		{"IEnumerable<int>", "IEnumerable`1[int]"},
		{"IEnumerable< IEnumerable<string> >", "IEnumerable`1[IEnumerable`1[string]]"},
		{"Dictionary<,>", "Dictionary`2"},
		{"Dictionary<string, Sword>", "Dictionary`2[string,Game.Sword]"},
		{"T", "!T"},
		{"IEnumerable<T>", "IEnumerable`1[!T]"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := cat.ParseType(tt.expr, tp)
			if err != nil {
				t.Fatalf("ParseType(%q): %v", tt.expr, err)
			}
			if got.Key() != tt.key {
				t.Errorf("ParseType(%q).Key() = %q, want %q", tt.expr, got.Key(), tt.key)
			}
		})
	}
}

func TestCatalog_ParseType_Errors(t *testing.T) {
	cat, err := NewCatalog(nil)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	tests := []struct {
		expr string
		want error
	}{
		{"", ErrTypeExpression},
		{"Katana", ErrUnknownType},
		{"int<string>", ErrUnknownType},
		{"IEnumerable<int", ErrTypeExpression},
		{"IEnumerable<int, string>", ErrUnknownType},
		{"IEnumerable<,int>", ErrTypeExpression},
		{"int)", ErrTypeExpression},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := cat.ParseType(tt.expr)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseType(%q) error = %v, want %v", tt.expr, err, tt.want)
			}
		})
	}
}
