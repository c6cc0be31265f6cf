// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package api_test

import (
	"os"
	"testing"

	"github.com/bitmark-inc/logger"
)

const (
	logDirectory = "testing"
)

func setupTestLogger() {
	removeFiles()
	_ = os.Mkdir(logDirectory, 0700)

	logging := logger.Configuration{
		Directory: logDirectory,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}

	// start logging
	_ = logger.Initialise(logging)
}

func removeFiles() {
	_ = os.RemoveAll(logDirectory)
}

func TestMain(m *testing.M) {
	setupTestLogger()
	rc := m.Run()
	logger.Finalise()
	removeFiles()
	os.Exit(rc)
}
