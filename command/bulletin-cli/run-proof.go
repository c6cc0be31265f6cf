// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/bulletind/proof"
)

func runProof(c *cli.Context) error {
	m := getMetadata(c)

	documentID, err := requiredString(c, "document")
	if nil != err {
		return err
	}
	store, err := m.openStore()
	if nil != err {
		return err
	}
	params, err := m.params()
	if nil != err {
		return err
	}

	p, err := proof.NewBuilder(store, params).Build(context.Background(), documentID)
	if nil != err {
		return err
	}

	output := c.String("output")
	if "" == output {
		return printJson(m.w, p)
	}
	if err := writeJson(output, p); nil != err {
		return err
	}
	if m.verbose {
		fmt.Fprintf(m.e, "proof written to: %q\n", output)
	}
	return nil
}

// offline unless --online, which also asks the configured node
// whether the transactions are in the claimed blocks
func runVerify(c *cli.Context) error {
	m := getMetadata(c)

	fileName, err := requiredString(c, "file")
	if nil != err {
		return err
	}
	data, err := os.ReadFile(fileName)
	if nil != err {
		return err
	}
	var p proof.Proof
	if err := json.Unmarshal(data, &p); nil != err {
		return fmt.Errorf("proof: %q  error: %w", fileName, err)
	}

	options := proof.Options{
		Contents: make(map[string][]byte),
	}
	for _, item := range c.StringSlice("content") {
		partID, contentFile, ok := strings.Cut(item, "=")
		if !ok || "" == partID || "" == contentFile {
			return fmt.Errorf("content: %q is not PART_ID=FILE", item)
		}
		content, err := os.ReadFile(contentFile)
		if nil != err {
			return err
		}
		options.Contents[partID] = content
	}

	if c.Bool("online") {
		node, err := m.node()
		if nil != err {
			return err
		}
		options.Chain = node
	}

	report := proof.Verify(context.Background(), &p, options)
	if c.Bool("json") {
		err = printJson(m.w, report)
	} else {
		err = proof.Render(m.w, &p, report)
	}
	if nil != err {
		return err
	}
	if !report.OK {
		return fmt.Errorf("proof not verified")
	}
	return nil
}
