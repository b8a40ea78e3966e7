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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/contracts/services/contract/meta"
)

const armorySources = "../../services/contract/extract/testdata/armory"

func TestExtract_Stdout(t *testing.T) {
	out, stderr, err := run(t, "extract", armorySources)
	require.NoError(t, err)

	var doc meta.Document
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "v1.0", doc.Version)
	assert.Len(t, doc.Types, 5)
	assert.Contains(t, stderr, "warning: type Dictionary is not declared; using object")
}

func TestExtract_ThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "armory.yaml")
	_, _, err := run(t, "extract", "-o", path, armorySources)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Sword")

	out, _, err := run(t, "--catalog", path, "validate")
	assert.ErrorIs(t, err, ErrInvalidContracts)
	assert.Contains(t, out, "Armory.Sword::Sharpen(int)")
	assert.Contains(t, out, "invalid 1")

	out, _, err = run(t, "--catalog", path, "analyze", "Armory.Sword", "OnMethodParameter")
	require.NoError(t, err)
	assert.Contains(t, out, "(ISword::OnMethodParameter)")
}

func TestExtract_Errors(t *testing.T) {
	_, _, err := run(t, "extract")
	assert.Error(t, err)

	_, _, err = run(t, "extract", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
