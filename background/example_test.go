// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package background_test

import (
	"fmt"
	"time"

	"github.com/bitmark-inc/bulletind/background"
)

type poller struct {
	interval time.Duration
}

func (state *poller) Run(args interface{}, shutdown <-chan struct{}) {
	fmt.Printf("initialise\n")
loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-time.After(state.interval):
		}
	}
	fmt.Printf("finalise\n")
}

func Example() {
	processes := background.Processes{
		&poller{interval: time.Second},
	}

	p := background.Start(processes, nil)
	time.Sleep(10 * time.Millisecond)
	p.Stop()

	// Output:
	// initialise
	// finalise
}
