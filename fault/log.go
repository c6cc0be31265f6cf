// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

import (
	"fmt"
	"runtime"
	"time"

	"github.com/bitmark-inc/logger"
)

// last resort log channel
var log *logger.L

// Initialise - open the log channel used before a panic
func Initialise() error {
	if nil != log {
		return ErrAlreadyInitialised
	}
	log = logger.New("PANIC")
	if nil == log {
		return ErrInvalidLoggerChannel
	}
	return nil
}

// Finalise - flush the panic channel
func Finalise() {
	if nil != log {
		log.Flush()
		log = nil
	}
}

// Criticalf - log with the caller's position prefixed
func Criticalf(format string, arguments ...interface{}) {
	criticalAt(2, format, arguments...)
}

// Panicf - log a formatted message then abort
func Panicf(format string, arguments ...interface{}) {
	criticalAt(2, format, arguments...)
	Panic("abort, see last messages in log file")
}

// Panic - log and abort
func Panic(message string) {
	internalCriticalf("%s", message)
	time.Sleep(100 * time.Millisecond) // to allow logging output
	panic(message)
}

// PanicIfError - abort only when err is set
func PanicIfError(message string, err error) {
	if nil == err {
		return
	}
	s := fmt.Sprintf("%s failed with error: %v", message, err)
	internalCriticalf("%s", s)
	time.Sleep(100 * time.Millisecond)
	panic(s)
}

func criticalAt(depth int, format string, arguments ...interface{}) {
	_, file, line, ok := runtime.Caller(depth)
	if !ok {
		internalCriticalf(format, arguments...)
		return
	}
	a := make([]interface{}, 2, 2+len(arguments))
	a[0] = file
	a[1] = line
	a = append(a, arguments...)
	internalCriticalf("(%q:%d) "+format, a...)
}

// handle an uninitialised logger channel
func internalCriticalf(format string, arguments ...interface{}) {
	if nil == log {
		fmt.Printf("*** "+format+"\n", arguments...)
		return
	}
	log.Criticalf(format, arguments...)
	log.Flush()
}
