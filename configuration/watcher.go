// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/fsnotify/fsnotify"
)

// editors often write a file several times in a row
const settleDelay = 500 * time.Millisecond

// Watcher - background process calling reload when a file changes
//
// the directory is watched rather than the file so that a file
// replaced by rename is still seen
type Watcher struct {
	log      *logger.L
	watcher  *fsnotify.Watcher
	filePath string
	reload   func() error
}

// NewWatcher - the file must exist
func NewWatcher(fileName string, reload func() error) (*Watcher, error) {
	filePath, err := filepath.Abs(filepath.Clean(fileName))
	if nil != err {
		return nil, err
	}
	if _, err := os.Stat(filePath); nil != err {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if nil != err {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(filePath)); nil != err {
		_ = watcher.Close()
		return nil, err
	}

	return &Watcher{
		log:      logger.New("config-watcher"),
		watcher:  watcher,
		filePath: filePath,
		reload:   reload,
	}, nil
}

// Run - background process
func (w *Watcher) Run(args interface{}, shutdown <-chan struct{}) {
	log := w.log
	log.Infof("watching: %s", w.filePath)

	pending := false
	settle := time.NewTimer(settleDelay)
	settle.Stop()

loop:
	for {
		select {
		case <-shutdown:
			break loop

		case event, ok := <-w.watcher.Events:
			if !ok {
				break loop
			}
			if filepath.Clean(event.Name) != w.filePath || !changed(event) {
				continue
			}
			log.Debugf("file event: %s", event)
			if !pending {
				pending = true
				settle.Reset(settleDelay)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				break loop
			}
			log.Errorf("watch error: %s", err)

		case <-settle.C:
			pending = false
			if _, err := os.Stat(w.filePath); nil != err {
				log.Warnf("file: %s  error: %s", w.filePath, err)
				continue
			}
			if err := w.reload(); nil != err {
				log.Errorf("reload: %s  error: %s", w.filePath, err)
				continue
			}
			log.Infof("reloaded: %s", w.filePath)
		}
	}

	settle.Stop()
	_ = w.watcher.Close()
	log.Info("stopped")
}

func changed(event fsnotify.Event) bool {
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
