// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/bulletind/admission"
	"github.com/bitmark-inc/bulletind/anchor"
	"github.com/bitmark-inc/bulletind/api"
	"github.com/bitmark-inc/bulletind/archive"
	"github.com/bitmark-inc/bulletind/background"
	"github.com/bitmark-inc/bulletind/bitcoin"
	"github.com/bitmark-inc/bulletind/bulletin"
	"github.com/bitmark-inc/bulletind/chain"
	"github.com/bitmark-inc/bulletind/configuration"
	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/keyring"
	"github.com/bitmark-inc/bulletind/proof"
	"github.com/bitmark-inc/bulletind/publish"
	"github.com/bitmark-inc/bulletind/storage"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		processSetupCommand(program, []string{"version"})
		return
	}

	if len(options["help"]) > 0 {
		processSetupCommand(program, []string{"help"})
		return
	}

	// these commands do not require the configuration and
	// process data needed for initial setup
	if len(arguments) > 0 && processSetupCommand(program, arguments) {
		return
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: only one config-file option is required, %d were detected", program, len(options["config-file"]))
	}

	// read options and parse the configuration file
	configurationFile := options["config-file"][0]
	theConfiguration, err := getConfiguration(configurationFile)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// these commands require the configuration and
	// perform enquiries on the configuration
	if len(arguments) > 0 && processConfigCommand(arguments, theConfiguration) {
		return
	}

	// start logging
	if err = logger.Initialise(theConfiguration.Logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	if err = fault.Initialise(); nil != err {
		exitwithstatus.Message("%s: fault setup failed with error: %s", program, err)
	}
	defer fault.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)
	log.Debugf("chain: %s", theConfiguration.Chain)

	// ------------------
	// start of real main
	// ------------------

	// optional PID file
	// use if not running under a supervisor program like daemon(8)
	if "" != theConfiguration.PidFile {
		lockFile, err := os.OpenFile(theConfiguration.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if err != nil {
			if os.IsExist(err) {
				exitwithstatus.Message("%s: another instance is already running", program)
			}
			exitwithstatus.Message("%s: PID file: %q creation failed, error: %s", program, theConfiguration.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(theConfiguration.PidFile)
	}

	params, err := chain.Params(theConfiguration.Chain)
	if nil != err {
		log.Criticalf("chain: %q  error: %s", theConfiguration.Chain, err)
		exitwithstatus.Message("chain: %q  error: %s", theConfiguration.Chain, err)
	}

	// the anchor key must be unlocked before any background task starts
	key, err := loadKey(&theConfiguration.Keyring, theConfiguration.Chain)
	if nil != err {
		log.Criticalf("keyring: %q  error: %s", theConfiguration.Keyring.File, err)
		exitwithstatus.Message("keyring: %q  error: %s", theConfiguration.Keyring.File, err)
	}
	log.Infof("anchor address: %s", key.Address().EncodeAddress())

	// storage
	store, err := storage.Open(&theConfiguration.Database)
	if nil != err {
		log.Criticalf("storage open error: %s", err)
		exitwithstatus.Message("storage open error: %s", err)
	}
	defer store.Close()

	if err := store.Migrate(); nil != err {
		log.Criticalf("storage migrate error: %s", err)
		exitwithstatus.Message("storage migrate error: %s", err)
	}

	headers, err := storage.OpenHeaderStore(theConfiguration.Headers)
	if nil != err {
		log.Criticalf("header store: %q  error: %s", theConfiguration.Headers, err)
		exitwithstatus.Message("header store: %q  error: %s", theConfiguration.Headers, err)
	}
	defer headers.Close()

	node, err := bitcoin.NewClient(&theConfiguration.Bitcoin, headers)
	if nil != err {
		log.Criticalf("bitcoin client error: %s", err)
		exitwithstatus.Message("bitcoin client error: %s", err)
	}

	policy, err := bulletin.NewPolicy(&theConfiguration.Policy)
	if nil != err {
		log.Criticalf("policy error: %s", err)
		exitwithstatus.Message("policy error: %s", err)
	}
	log.Infof("policy: %s", policy)
	batcher := bulletin.New(store, policy)

	// funding changes are fanned out over redis so that every
	// instance re-evaluates its parked entries
	processes := background.Processes{}
	var admitter *admission.Admitter
	if "" != theConfiguration.Redis.Address {
		client := admission.NewRedisClient(&theConfiguration.Redis)
		defer client.Close()
		ledger := admission.NewLedger(store, admission.NewNotifier(client, theConfiguration.Redis.Channel))
		admitter = admission.New(store, ledger, batcher)
		processes = append(processes, admission.NewSubscriber(client, theConfiguration.Redis.Channel, admitter))
	} else {
		ledger := admission.NewLedger(store, nil)
		admitter = admission.New(store, ledger, batcher)
	}

	dependencies := anchor.Dependencies{
		Store:   store,
		Batcher: batcher,
		Node:    node,
		Key:     key,
		Headers: headers,
	}

	if 0 != len(theConfiguration.Publishing.Broadcast) {
		publisher, err := publish.New(&theConfiguration.Publishing)
		if nil != err {
			log.Criticalf("publish error: %s", err)
			exitwithstatus.Message("publish error: %s", err)
		}
		dependencies.Events = publisher
		processes = append(processes, publisher)
	}

	switch {
	case "" != theConfiguration.Archive.Bucket:
		gcs, err := archive.NewGCS(context.Background(), theConfiguration.Archive.Bucket, theConfiguration.Archive.Prefix)
		if nil != err {
			log.Criticalf("archive bucket: %q  error: %s", theConfiguration.Archive.Bucket, err)
			exitwithstatus.Message("archive bucket: %q  error: %s", theConfiguration.Archive.Bucket, err)
		}
		defer gcs.Close()
		dependencies.Archiver = gcs
	case "" != theConfiguration.Archive.Directory:
		directory, err := archive.NewDirectory(theConfiguration.Archive.Directory, theConfiguration.Archive.Prefix)
		if nil != err {
			log.Criticalf("archive directory: %q  error: %s", theConfiguration.Archive.Directory, err)
			exitwithstatus.Message("archive directory: %q  error: %s", theConfiguration.Archive.Directory, err)
		}
		dependencies.Archiver = directory
	}

	engine, err := anchor.New(&theConfiguration.Anchor, dependencies)
	if nil != err {
		log.Criticalf("anchor error: %s", err)
		exitwithstatus.Message("anchor error: %s", err)
	}

	server, err := api.New(&theConfiguration.API, api.Dependencies{
		Store:    store,
		Admitter: admitter,
		Proofs:   proof.NewBuilder(store, params),
		Params:   params,
	})
	if nil != err {
		log.Criticalf("api error: %s", err)
		exitwithstatus.Message("api error: %s", err)
	}

	watcher, err := configuration.NewWatcher(configurationFile, reloadPolicy(configurationFile, batcher, log))
	if nil != err {
		log.Criticalf("configuration watcher error: %s", err)
		exitwithstatus.Message("configuration watcher error: %s", err)
	}

	processes = append(processes, engine, server, watcher)
	processing := background.Start(processes, nil)

	// wait for CTRL-C before shutting down to allow manual testing
	if 0 == len(options["quiet"]) {
		fmt.Printf("\n\nWaiting for CTRL-C (SIGINT) or 'kill <pid>' (SIGTERM)…")
	}

	// turn Signals into channel messages
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)
	if 0 == len(options["quiet"]) {
		fmt.Printf("\nreceived signal: %v\n", sig)
		fmt.Printf("\nshutting down…\n")
	}

	log.Info("shutting down…")
	processing.Stop()
}

// unlock the anchor key, the passphrase comes from a file if one is
// configured otherwise from the terminal
func loadKey(k *KeyringType, chainName string) (*keyring.Key, error) {
	network, err := keyring.Network(k.File)
	if nil != err {
		return nil, err
	}
	if network != chainName {
		return nil, fmt.Errorf("keyring is for chain: %q not: %q", network, chainName)
	}

	passphrase := ""
	if "" != k.PassphraseFile {
		passphrase, err = keyring.ReadPassphraseFile(k.PassphraseFile)
	} else {
		passphrase, err = keyring.PromptPassphrase("keyring passphrase: ")
	}
	if nil != err {
		return nil, err
	}
	return keyring.Load(k.File, passphrase)
}
