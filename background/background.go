// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package background - supervised long running processes
//
// A process runs until its shutdown channel is closed. A process that
// panics is restarted after a short delay, so a supervisory loop only
// ends when it is asked to.
package background

import (
	"sync"
	"time"

	"github.com/bitmark-inc/bulletind/fault"
)

// delay before restarting a process that panicked
const restartDelay = 5 * time.Second

// Process - type signature for background process
type Process interface {
	Run(args interface{}, shutdown <-chan struct{})
}

// Processes - list of processes to start
type Processes []Process

// T - handle for a started set of processes
type T struct {
	shutdown chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// Start - start up a set of background processes
func Start(processes Processes, args interface{}) *T {
	register := &T{
		shutdown: make(chan struct{}),
	}

	for _, p := range processes {
		register.wg.Add(1)
		go register.supervise(p, args)
	}
	return register
}

// Stop - signal every process and wait for all to finish
func (t *T) Stop() {
	t.once.Do(func() {
		close(t.shutdown)
	})
	t.wg.Wait()
}

func (t *T) supervise(p Process, args interface{}) {
	defer t.wg.Done()

	for {
		if !runOnce(p, args, t.shutdown) {
			return
		}
		select {
		case <-t.shutdown:
			return
		case <-time.After(restartDelay):
		}
	}
}

// returns true if the process panicked
func runOnce(p Process, args interface{}, shutdown <-chan struct{}) (panicked bool) {
	defer func() {
		if r := recover(); nil != r {
			fault.Criticalf("background process: %T panic: %v", p, r)
			panicked = true
		}
	}()
	p.Run(args, shutdown)
	return false
}
