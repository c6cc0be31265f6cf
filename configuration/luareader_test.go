// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/bulletind/configuration"
	"github.com/bitmark-inc/bulletind/fault"
)

type section struct {
	Address string   `gluamapper:"address"`
	Listen  []string `gluamapper:"listen"`
}

type testConfiguration struct {
	Chain    string            `gluamapper:"chain"`
	Interval int               `gluamapper:"interval"`
	Enabled  bool              `gluamapper:"enabled"`
	Section  section           `gluamapper:"section"`
	Levels   map[string]string `gluamapper:"levels"`
	Unset    string            `gluamapper:"unset"`
}

func writeFile(t *testing.T, text string) string {
	fileName := filepath.Join(t.TempDir(), "test.conf")
	require.NoError(t, os.WriteFile(fileName, []byte(text), 0600))
	return fileName
}

func TestParseConfigurationFile(t *testing.T) {
	fileName := writeFile(t, `
local M = {}
M.chain = "testnet"
M.interval = 30 * 2
M.enabled = true
M.section = {
    address = "127.0.0.1:8332",
    listen = { "0.0.0.0:2150", "[::]:2150" },
}
M.levels = { DEFAULT = "info", anchor = "debug" }
return M
`)

	c := testConfiguration{
		Unset: "default",
	}
	require.NoError(t, configuration.ParseConfigurationFile(fileName, &c))

	assert.Equal(t, "testnet", c.Chain)
	assert.Equal(t, 60, c.Interval)
	assert.True(t, c.Enabled)
	assert.Equal(t, "127.0.0.1:8332", c.Section.Address)
	assert.Equal(t, []string{"0.0.0.0:2150", "[::]:2150"}, c.Section.Listen)
	assert.Equal(t, map[string]string{"DEFAULT": "info", "anchor": "debug"}, c.Levels)
	assert.Equal(t, "default", c.Unset)
}

func TestConfigurationSeesItsOwnName(t *testing.T) {
	fileName := writeFile(t, `return { chain = arg[0] }`)

	c := testConfiguration{}
	require.NoError(t, configuration.ParseConfigurationFile(fileName, &c))
	assert.Equal(t, fileName, c.Chain)
}

func TestParseErrors(t *testing.T) {
	c := testConfiguration{}

	err := configuration.ParseConfigurationFile(writeFile(t, "return {"), &c)
	assert.Error(t, err)

	err = configuration.ParseConfigurationFile(writeFile(t, "return 42"), &c)
	assert.Equal(t, fault.ErrInvalidConfiguration, err)

	err = configuration.ParseConfigurationFile(writeFile(t, "return {}"), c)
	assert.Equal(t, fault.ErrInvalidStructPointer, err)

	err = configuration.ParseConfigurationFile(filepath.Join(t.TempDir(), "missing.conf"), &c)
	assert.Error(t, err)
}

func TestEnsureAbsolute(t *testing.T) {
	assert.Equal(t, "/data/log", configuration.EnsureAbsolute("/data", "log"))
	assert.Equal(t, "/var/log", configuration.EnsureAbsolute("/data", "/var/log"))
	assert.Equal(t, "/log", configuration.EnsureAbsolute("/data", "../log"))
}
