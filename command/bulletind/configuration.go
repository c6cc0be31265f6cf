// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/bulletind/admission"
	"github.com/bitmark-inc/bulletind/anchor"
	"github.com/bitmark-inc/bulletind/api"
	"github.com/bitmark-inc/bulletind/archive"
	"github.com/bitmark-inc/bulletind/bitcoin"
	"github.com/bitmark-inc/bulletind/bulletin"
	"github.com/bitmark-inc/bulletind/chain"
	"github.com/bitmark-inc/bulletind/configuration"
	"github.com/bitmark-inc/bulletind/publish"
	"github.com/bitmark-inc/bulletind/storage"
)

// basic defaults (directories and files are relative to the "DataDirectory" from Configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultKeyringFile           = "bulletind.keyring"
	defaultPublishPublicKeyFile  = "publish.public"
	defaultPublishPrivateKeyFile = "publish.private"
	defaultHeaderDirectory       = "headers"

	defaultLogDirectory = "log"
	defaultLogFile      = "bulletind.log"
	defaultLogCount     = 10          //  number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size

	defaultListen = "127.0.0.1:2180"
)

// to hold log levels
type LoglevelMap map[string]string

// path expanded or calculated defaults
var (
	defaultLogLevels = LoglevelMap{
		logger.DefaultTag: "critical",
	}
)

type KeyringType struct {
	File           string `gluamapper:"file" json:"file"`
	PassphraseFile string `gluamapper:"passphrase_file" json:"passphrase_file"`
}

type Configuration struct {
	DataDirectory string `gluamapper:"data_directory" json:"data_directory"`
	PidFile       string `gluamapper:"pidfile" json:"pidfile"`
	Chain         string `gluamapper:"chain" json:"chain"`

	Database   storage.Configuration        `gluamapper:"database" json:"database"`
	Headers    string                       `gluamapper:"headers" json:"headers"`
	Keyring    KeyringType                  `gluamapper:"keyring" json:"keyring"`
	Bitcoin    bitcoin.Configuration        `gluamapper:"bitcoin" json:"bitcoin"`
	Anchor     anchor.Configuration         `gluamapper:"anchor" json:"anchor"`
	Policy     bulletin.PolicyConfiguration `gluamapper:"policy" json:"policy"`
	API        api.Configuration            `gluamapper:"api" json:"api"`
	Redis      admission.RedisConfiguration `gluamapper:"redis" json:"redis"`
	Publishing publish.Configuration        `gluamapper:"publishing" json:"publishing"`
	Archive    archive.Configuration        `gluamapper:"archive" json:"archive"`
	Logging    logger.Configuration         `gluamapper:"logging" json:"logging"`
}

func defaultConfiguration() *Configuration {
	return &Configuration{
		DataDirectory: defaultDataDirectory,
		PidFile:       "", // no PidFile by default
		Chain:         chain.Bitcoin,
		Headers:       defaultHeaderDirectory,

		Keyring: KeyringType{
			File: defaultKeyringFile,
		},

		API: api.Configuration{
			Listen: defaultListen,
		},

		Redis: admission.RedisConfiguration{
			Channel: admission.DefaultChannel,
		},

		Publishing: publish.Configuration{
			PublicKey:  defaultPublishPublicKeyFile,
			PrivateKey: defaultPublishPrivateKeyFile,
		},

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels:    defaultLogLevels,
		},
	}
}

// will read decode and verify the configuration
func getConfiguration(configurationFileName string) (*Configuration, error) {
	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	options := defaultConfiguration()

	if err := configuration.ParseConfigurationFile(configurationFileName, options); nil != err {
		return nil, err
	}

	options.Chain = strings.ToLower(options.Chain)
	if !chain.Valid(options.Chain) {
		return nil, fmt.Errorf("chain: %q is not supported", options.Chain)
	}

	if "" == options.Database.DSN {
		return nil, fmt.Errorf("database: dsn is required")
	}

	if _, err := bulletin.NewPolicy(&options.Policy); nil != err {
		return nil, fmt.Errorf("policy: %w", err)
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fmt.Errorf("path: %q is not a valid directory", options.DataDirectory)
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	} else {
		options.DataDirectory = filepath.Clean(options.DataDirectory)
	}

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fmt.Errorf("path: %q is not a directory", options.DataDirectory)
	}

	// force all relevant items to be absolute paths
	// if not, assign them to the data directory
	mustBeAbsolute := []*string{
		&options.Headers,
		&options.Keyring.File,
		&options.Publishing.PublicKey,
		&options.Publishing.PrivateKey,
		&options.Logging.Directory,
	}
	for _, f := range mustBeAbsolute {
		*f = configuration.EnsureAbsolute(options.DataDirectory, *f)
	}

	// optional absolute paths i.e. blank or an absolute path
	optionalAbsolute := []*string{
		&options.PidFile,
		&options.Keyring.PassphraseFile,
		&options.Archive.Directory,
	}
	for _, f := range optionalAbsolute {
		if "" != *f {
			*f = configuration.EnsureAbsolute(options.DataDirectory, *f)
		}
	}

	// fail if any of these are not simple file names i.e. must not contain path seperator
	switch filepath.Dir(options.Logging.File) {
	case "", ".":
	default:
		return nil, fmt.Errorf("files: %q is not plain name", options.Logging.File)
	}

	// make absolute and create directories if they do not already exist
	for _, d := range []*string{&options.Headers, &options.Logging.Directory} {
		if err := os.MkdirAll(*d, 0700); nil != err {
			return nil, err
		}
	}

	// done
	return options, nil
}

// the live part of the configuration: only the policy is reloaded
func reloadPolicy(configurationFileName string, batcher *bulletin.Batcher, log *logger.L) func() error {
	return func() error {
		options := defaultConfiguration()
		if err := configuration.ParseConfigurationFile(configurationFileName, options); nil != err {
			return err
		}
		policy, err := bulletin.NewPolicy(&options.Policy)
		if nil != err {
			return err
		}
		if policy != batcher.Policy() {
			log.Infof("policy: %s", policy)
			batcher.SetPolicy(policy)
		}
		return nil
	}
}
