// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/bulletind/admission"
	"github.com/bitmark-inc/bulletind/anchor"
	"github.com/bitmark-inc/bulletind/bitcoin"
	"github.com/bitmark-inc/bulletind/bulletin"
	"github.com/bitmark-inc/bulletind/chain"
	"github.com/bitmark-inc/bulletind/configuration"
	"github.com/bitmark-inc/bulletind/storage"
)

const (
	logFile = "bulletin-cli.log"
)

type keyringConfiguration struct {
	File           string `gluamapper:"file" json:"file"`
	PassphraseFile string `gluamapper:"passphrase_file" json:"passphrase_file"`
}

// the parts of the daemon configuration file used here
type Configuration struct {
	DataDirectory string                       `gluamapper:"data_directory" json:"data_directory"`
	Chain         string                       `gluamapper:"chain" json:"chain"`
	Database      storage.Configuration        `gluamapper:"database" json:"database"`
	Keyring       keyringConfiguration         `gluamapper:"keyring" json:"keyring"`
	Bitcoin       bitcoin.Configuration        `gluamapper:"bitcoin" json:"bitcoin"`
	Anchor        anchor.Configuration         `gluamapper:"anchor" json:"anchor"`
	Policy        bulletin.PolicyConfiguration `gluamapper:"policy" json:"policy"`
	Redis         admission.RedisConfiguration `gluamapper:"redis" json:"redis"`
	Logging       logger.Configuration         `gluamapper:"logging" json:"logging"`
}

func getConfiguration(fileName string) (*Configuration, error) {
	fileName, err := filepath.Abs(filepath.Clean(fileName))
	if nil != err {
		return nil, err
	}
	dataDirectory, _ := filepath.Split(fileName)

	options := &Configuration{
		Chain: chain.Bitcoin,
		Keyring: keyringConfiguration{
			File: "bulletind.keyring",
		},
		Logging: logger.Configuration{
			Directory: "log",
			Size:      1024 * 1024,
			Count:     10,
			Levels: map[string]string{
				logger.DefaultTag: "error",
			},
		},
	}
	if err := configuration.ParseConfigurationFile(fileName, options); nil != err {
		return nil, err
	}

	if !chain.Valid(options.Chain) {
		return nil, fmt.Errorf("chain: %q is not supported", options.Chain)
	}

	switch options.DataDirectory {
	case "", "~":
		return nil, fmt.Errorf("path: %q is not a valid directory", options.DataDirectory)
	case ".":
		options.DataDirectory = dataDirectory
	}

	options.Keyring.File = configuration.EnsureAbsolute(options.DataDirectory, options.Keyring.File)
	if "" != options.Keyring.PassphraseFile {
		options.Keyring.PassphraseFile = configuration.EnsureAbsolute(options.DataDirectory, options.Keyring.PassphraseFile)
	}

	// a separate log file so the daemon's rotation is left alone
	options.Logging.Directory = configuration.EnsureAbsolute(options.DataDirectory, options.Logging.Directory)
	options.Logging.File = logFile
	options.Logging.Console = false
	if err := os.MkdirAll(options.Logging.Directory, 0700); nil != err {
		return nil, err
	}

	return options, nil
}
