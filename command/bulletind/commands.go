// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/exitwithstatus"

	"github.com/bitmark-inc/bulletind/chain"
	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/keyring"
	"github.com/bitmark-inc/bulletind/zmqutil"
)

const (
	publishPublicKeyFilename  = "publish.public"
	publishPrivateKeyFilename = "publish.private"
	keyringFilename           = "bulletind.keyring"
)

// setup command handler
//
// commands that run to create key files these commands cannot
// access the database or the configuration file
func processSetupCommand(program string, arguments []string) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
		arguments = arguments[1:]
	}

	switch command {
	case "gen-publish-identity", "publish":
		publicKeyFilename := getFilenameWithDirectory(arguments, publishPublicKeyFilename)
		privateKeyFilename := getFilenameWithDirectory(arguments, publishPrivateKeyFilename)
		err := zmqutil.MakeKeyPair(publicKeyFilename, privateKeyFilename)
		if nil != err {
			fmt.Printf("generate private key: %q and public key: %q error: %s\n", privateKeyFilename, publicKeyFilename, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("generated private key: %q and public key: %q\n", privateKeyFilename, publicKeyFilename)

	case "gen-keyring", "keyring":
		if len(arguments) < 1 || !chain.Valid(arguments[0]) {
			fmt.Printf("gen-keyring: requires a chain name: %q, %q, %q or %q\n", chain.Bitcoin, chain.Testnet, chain.Signet, chain.Regtest)
			exitwithstatus.Exit(1)
		}
		params, err := chain.Params(arguments[0])
		if nil != err {
			fmt.Printf("gen-keyring: error: %s\n", err)
			exitwithstatus.Exit(1)
		}
		keyringFile := getFilenameWithDirectory(arguments[1:], keyringFilename)

		if _, err := os.Stat(keyringFile); nil == err {
			fmt.Printf("generate keyring: %q error: %s\n", keyringFile, fault.ErrKeyringFileExists)
			exitwithstatus.Exit(1)
		}

		key, err := keyring.Generate(params)
		if nil != err {
			fmt.Printf("generate keyring: %q error: %s\n", keyringFile, err)
			exitwithstatus.Exit(1)
		}
		passphrase, err := keyring.PromptNewPassphrase()
		if nil != err {
			fmt.Printf("generate keyring: %q error: %s\n", keyringFile, err)
			exitwithstatus.Exit(1)
		}
		if err := key.Save(keyringFile, passphrase); nil != err {
			fmt.Printf("generate keyring: %q error: %s\n", keyringFile, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("generated keyring: %q\n", keyringFile)
		fmt.Printf("anchor address: %s\n", key.Address().EncodeAddress())
		fmt.Printf("fund this address and watch it in the bitcoin node wallet\n")

	case "config-test", "cfg":
		return false

	case "start", "run":
		return false // continue processing

	case "version", "v":
		fmt.Printf("%s\n", version)
		return true

	default:
		switch command {
		case "help", "h", "?":
		case "", " ":
			fmt.Printf("error: missing command\n")
		default:
			fmt.Printf("error: no such command: %q\n", command)
		}
		fmt.Printf("usage: %s [--help] [--verbose] [--quiet] --config-file=FILE [[command|help] arguments...]\n", program)

		fmt.Printf("supported commands:\n\n")
		fmt.Printf("  help                          (h)        - display this message\n\n")
		fmt.Printf("  version                       (v)        - display version sting\n\n")

		fmt.Printf("  gen-publish-identity [DIR]    (publish)  - create private key in: %q\n", "DIR/"+publishPrivateKeyFilename)
		fmt.Printf("                                             and the public key in: %q\n", "DIR/"+publishPublicKeyFilename)
		fmt.Printf("\n")

		fmt.Printf("  gen-keyring CHAIN [DIR]       (keyring)  - create the anchor key in: %q\n", "DIR/"+keyringFilename)
		fmt.Printf("                                             encrypted with a passphrase read from the terminal\n")
		fmt.Printf("\n")

		fmt.Printf("  start                         (run)      - just run the program, same as no arguments\n")
		fmt.Printf("                                             for convienience when passing script arguments\n")
		fmt.Printf("\n")

		fmt.Printf("  config-test                   (cfg)      - just check the configuration file\n")
		fmt.Printf("\n")

		exitwithstatus.Exit(1)
	}

	// indicate processing complete and prefor normal exit from main
	return true
}

// configuration file enquiry commands
// have configuration file read and decoded, but nothing else
func processConfigCommand(arguments []string, options *Configuration) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
		//arguments = arguments[1:]
	}

	switch command {
	case "config-test", "cfg":
		b, err := json.MarshalIndent(options, "", "  ")
		if nil != err {
			exitwithstatus.Message("error: %s", err)
		}
		fmt.Printf("configuration:\n%s\n", b)
		return true

	case "start", "run":
		return false // continue processing

	default:
		return false
	}
}

// get the working directory; if not set in the arguments
// it's set to the current directory
func getFilenameWithDirectory(arguments []string, name string) string {
	dir := "."
	if len(arguments) >= 1 {
		dir = arguments[0]
	}

	return filepath.Join(dir, name)
}
