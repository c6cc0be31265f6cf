// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bitmark-inc/logger"
	"github.com/urfave/cli"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

func main() {
	app := newApp(os.Stdout, os.Stderr)
	return app
}

func newApp(w io.Writer, e io.Writer) *cli.App {

	app := cli.NewApp()
	app.Name = "bulletin-cli"
	app.Usage = "operate a bulletind deployment"
	app.Version = version
	app.HideVersion = true

	app.Writer = w
	app.ErrWriter = e

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " verbose result",
		},
		cli.StringFlag{
			Name:   "config-file, c",
			Value:  "",
			Usage:  " bulletind configuration `FILE`",
			EnvVar: "BULLETIND_CONFIG",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "generate",
			Usage:     "generate a signer key, nothing is stored",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "chain, n",
					Value: "",
					Usage: " key for `CHAIN` [bitcoin|testnet|signet|regtest]",
				},
			},
			Action: runGenerate,
		},
		{
			Name:   "address",
			Usage:  "display the anchor address, the node wallet must watch it",
			Action: runAddress,
		},
		{
			Name:   "promote",
			Usage:  "propose the draft bulletin now regardless of policy",
			Action: runPromote,
		},
		{
			Name:      "resubmit",
			Usage:     "replace the transaction of a submitted bulletin with fresh inputs",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "bulletin, b",
					Value: "",
					Usage: "*bulletin `ID`",
				},
				cli.StringFlag{
					Name:  "confirm",
					Value: "",
					Usage: "*hash of the transaction being replaced `TXID`",
				},
			},
			Action: runResubmit,
		},
		{
			Name:   "backfill",
			Usage:  "fill missing block details of published bulletins",
			Action: runBackfill,
		},
		{
			Name:      "status",
			Usage:     "unpublished bulletins, or one bulletin with its transactions",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "bulletin, b",
					Value: "",
					Usage: " bulletin `ID`",
				},
			},
			Action: runStatus,
		},
		{
			Name:      "proof",
			Usage:     "build the proof of a document",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "document, d",
					Value: "",
					Usage: "*document `ID`",
				},
				cli.StringFlag{
					Name:  "output, o",
					Value: "",
					Usage: " write to new `FILE` instead of stdout",
				},
			},
			Action: runProof,
		},
		{
			Name:      "verify",
			Usage:     "verify a proof file",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "file, f",
					Value: "",
					Usage: "*proof `FILE`",
				},
				cli.StringSliceFlag{
					Name:  "content",
					Usage: " part content to check `PART_ID=FILE`",
				},
				cli.BoolFlag{
					Name:  "online",
					Usage: " check block inclusion with the configured node",
				},
				cli.BoolFlag{
					Name:  "json, j",
					Usage: " JSON report",
				},
			},
			Action: runVerify,
		},
		{
			Name:      "grant",
			Usage:     "add signing credits to an account",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "account, a",
					Value: "",
					Usage: "*account `ID`",
				},
				cli.Int64Flag{
					Name:  "credits, n",
					Value: 0,
					Usage: "*number of signatures `COUNT`",
				},
			},
			Action: runGrant,
		},
		{
			Name:      "accept-terms",
			Usage:     "record that an account accepted the terms",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "account, a",
					Value: "",
					Usage: "*account `ID`",
				},
			},
			Action: runAcceptTerms,
		},
		{
			Name:      "watch",
			Usage:     "print bulletin events published by a daemon",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "connect, C",
					Value: "",
					Usage: "*publisher `HOST:PORT`",
				},
				cli.StringFlag{
					Name:  "server-key, k",
					Value: "",
					Usage: "*publisher public key `FILE`",
				},
				cli.StringSliceFlag{
					Name:  "event, e",
					Usage: " only these `KIND`s [proposed|submitted|bumped|resubmitted|published]",
				},
			},
			Action: runWatch,
		},
		{
			Name:  "version",
			Usage: "display bulletin-cli version",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "%s\n", version)
				return nil
			},
		},
	}

	// read the configuration
	app.Before = func(c *cli.Context) error {

		m := &metadata{
			verbose: c.GlobalBool("verbose"),
			e:       c.App.ErrWriter,
			w:       c.App.Writer,
		}
		c.App.Metadata["config"] = m

		// to suppress reading config file if certain commands
		if "version" == c.Args().Get(0) {
			return nil
		}

		file := c.GlobalString("config-file")
		if "" == file {
			return nil
		}
		if m.verbose {
			fmt.Fprintf(m.e, "reading config file: %s\n", file)
		}
		configuration, err := getConfiguration(file)
		if nil != err {
			return err
		}
		m.file = file
		m.config = configuration

		return logger.Initialise(configuration.Logging)
	}

	// release anything a command opened
	app.After = func(c *cli.Context) error {
		m, ok := c.App.Metadata["config"].(*metadata)
		if !ok {
			return nil
		}
		err := m.finish()
		if nil != m.config {
			logger.Finalise()
		}
		return err
	}

	return app
}
