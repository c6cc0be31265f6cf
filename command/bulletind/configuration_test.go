// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/bulletind/bulletin"
	"github.com/bitmark-inc/bulletind/storage/storagetest"
)

func writeConfiguration(t *testing.T, text string) string {
	fileName := filepath.Join(t.TempDir(), "bulletind.conf")
	require.NoError(t, os.WriteFile(fileName, []byte(text), 0600))
	return fileName
}

func sample(t *testing.T) string {
	text, err := os.ReadFile("bulletind.conf.sample")
	require.NoError(t, err)
	return string(text)
}

func TestSampleConfiguration(t *testing.T) {
	fileName := writeConfiguration(t, sample(t))
	dir := filepath.Dir(fileName)

	c, err := getConfiguration(fileName)
	require.NoError(t, err)

	assert.Equal(t, "testnet", c.Chain)
	assert.Equal(t, filepath.Clean(dir), filepath.Clean(c.DataDirectory))
	assert.Equal(t, filepath.Join(dir, "headers"), c.Headers)
	assert.Equal(t, filepath.Join(dir, "bulletind.keyring"), c.Keyring.File)
	assert.Equal(t, filepath.Join(dir, "bulletind.passphrase"), c.Keyring.PassphraseFile)
	assert.Equal(t, filepath.Join(dir, "publish.private"), c.Publishing.PrivateKey)
	assert.Equal(t, filepath.Join(dir, "archive"), c.Archive.Directory)
	assert.Equal(t, "", c.PidFile)

	assert.Equal(t, "http://127.0.0.1:18332", c.Bitcoin.URL)
	assert.Equal(t, 3, c.Anchor.Confirmations)
	assert.Equal(t, 1.5, c.Anchor.FeeMultiplier)
	assert.Equal(t, 3600, c.Policy.MaximumAge)
	assert.Equal(t, []string{"127.0.0.1:2185", "[::1]:2185"}, c.Publishing.Broadcast)
	assert.Equal(t, "info", c.Logging.Levels["anchor"])

	assert.DirExists(t, c.Headers)
	assert.DirExists(t, c.Logging.Directory)
}

func TestConfigurationDefaults(t *testing.T) {
	fileName := writeConfiguration(t, `
return {
    data_directory = ".",
    database = { dsn = "bulletind.sqlite" },
}
`)

	c, err := getConfiguration(fileName)
	require.NoError(t, err)

	assert.Equal(t, "bitcoin", c.Chain)
	assert.Equal(t, defaultListen, c.API.Listen)
	assert.Equal(t, "bulletind:funding", c.Redis.Channel)
	assert.Equal(t, "", c.Archive.Directory)
	assert.Equal(t, filepath.Join(filepath.Dir(fileName), defaultLogDirectory), c.Logging.Directory)
}

func TestConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"no data directory", `return { database = { dsn = "x" } }`, "not a valid directory"},
		{"no database", `return { data_directory = "." }`, "dsn is required"},
		{"bad chain", `return { data_directory = ".", chain = "litecoin", database = { dsn = "x" } }`, "not supported"},
		{"bad policy", `return { data_directory = ".", database = { dsn = "x" }, policy = { mode = "sometimes" } }`, "policy"},
		{"log file path", `return { data_directory = ".", database = { dsn = "x" }, logging = { file = "a/b.log" } }`, "not plain name"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := getConfiguration(writeConfiguration(t, test.text))
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.want)
		})
	}
}

func TestReloadPolicy(t *testing.T) {
	text := sample(t)
	fileName := writeConfiguration(t, text)

	batcher := bulletin.New(storagetest.New(t), bulletin.DefaultPolicy())
	reload := reloadPolicy(fileName, batcher, logger.New("test"))

	require.NoError(t, reload())
	assert.Equal(t, bulletin.ModeEither, batcher.Policy().Mode)
	assert.Equal(t, time.Hour, batcher.Policy().MaximumAge)

	text = strings.Replace(text, `mode = "either"`, `mode = "manual"`, 1)
	require.NoError(t, os.WriteFile(fileName, []byte(text), 0600))
	require.NoError(t, reload())
	assert.Equal(t, bulletin.ModeManual, batcher.Policy().Mode)

	// a broken policy leaves the running one in place
	text = strings.Replace(text, `mode = "manual"`, `mode = "never"`, 1)
	require.NoError(t, os.WriteFile(fileName, []byte(text), 0600))
	assert.Error(t, reload())
	assert.Equal(t, bulletin.ModeManual, batcher.Policy().Mode)
}
