// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"io"
	"os"
)

// proofs and reports carry document titles and check details verbatim,
// so HTML characters are not escaped
func printJson(handle io.Writer, message interface{}) error {
	encoder := json.NewEncoder(handle)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(message)
}

// writeJson - create a new file, never overwrite an existing one
//
// a partly written file is removed
func writeJson(fileName string, message interface{}) error {
	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if nil != err {
		return err
	}
	err = printJson(f, message)
	if closeErr := f.Close(); nil == err {
		err = closeErr
	}
	if nil != err {
		_ = os.Remove(fileName)
	}
	return err
}
