// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/bulletind/zmqutil"
)

const watchPoll = time.Second

// print bulletin events from a daemon's publish socket until interrupted
func runWatch(c *cli.Context) error {
	m := getMetadata(c)

	connect, err := requiredString(c, "connect")
	if nil != err {
		return err
	}
	keyFile, err := requiredString(c, "server-key")
	if nil != err {
		return err
	}
	serverKey, err := zmqutil.ReadPublicKeyFile(keyFile)
	if nil != err {
		return err
	}

	subscriber, err := zmqutil.NewSubscriber(connect, serverKey, c.StringSlice("event")...)
	if nil != err {
		return err
	}
	defer subscriber.Close()

	if m.verbose {
		fmt.Fprintf(m.e, "connected to: %s\n", connect)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	for {
		select {
		case <-ch:
			return nil
		default:
		}

		parts, err := subscriber.Receive(watchPoll)
		if nil != err {
			return err
		}
		if 2 != len(parts) {
			continue
		}
		var event bytes.Buffer
		if err := json.Compact(&event, parts[1]); nil != err {
			fmt.Fprintf(m.e, "event: %s  invalid payload: %s\n", parts[0], err)
			continue
		}
		fmt.Fprintf(m.w, "%s %s\n", parts[0], event.String())
	}
}
