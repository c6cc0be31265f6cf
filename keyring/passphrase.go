// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyring

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh/terminal"

	"github.com/bitmark-inc/bulletind/fault"
)

// ReadPassphraseFile - first line of a file, for unattended start
func ReadPassphraseFile(fileName string) (string, error) {
	content, err := os.ReadFile(fileName)
	if nil != err {
		return "", err
	}
	line := strings.SplitN(string(content), "\n", 2)[0]
	return strings.TrimRight(line, "\r"), nil
}

// PromptPassphrase - read a passphrase from the controlling terminal
func PromptPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !terminal.IsTerminal(fd) {
		return "", fault.ErrMissingParameters
	}
	fmt.Fprint(os.Stderr, prompt)
	passphrase, err := terminal.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if nil != err {
		return "", err
	}
	return string(passphrase), nil
}

// PromptNewPassphrase - read and confirm a new passphrase
func PromptNewPassphrase() (string, error) {
	passphrase, err := PromptPassphrase("New keyring passphrase (length >= 8): ")
	if nil != err {
		return "", err
	}
	if len(passphrase) < minimumPassphrase {
		return "", fault.ErrInvalidPassphraseLength
	}
	verify, err := PromptPassphrase("Verify passphrase: ")
	if nil != err {
		return "", err
	}
	if passphrase != verify {
		return "", fault.ErrPassphraseMismatch
	}
	return passphrase, nil
}
