// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bitmark-inc/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQuery = 500 * time.Millisecond

// route gorm messages to a logger channel
type gormLogger struct {
	log   *logger.L
	level gormlogger.LogLevel
}

func newGormLogger(log *logger.L) gormlogger.Interface {
	return &gormLogger{
		log:   log,
		level: gormlogger.Warn,
	}
}

func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLogger{
		log:   g.log,
		level: level,
	}
}

func (g *gormLogger) Info(ctx context.Context, format string, arguments ...interface{}) {
	if g.level >= gormlogger.Info {
		g.log.Infof(format, arguments...)
	}
}

func (g *gormLogger) Warn(ctx context.Context, format string, arguments ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.log.Warnf(format, arguments...)
	}
}

func (g *gormLogger) Error(ctx context.Context, format string, arguments ...interface{}) {
	if g.level >= gormlogger.Error {
		g.log.Errorf(format, arguments...)
	}
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case nil != err && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.log.Errorf("%s  rows: %d  elapsed: %s  error: %s", sql, rows, elapsed, err)
	case elapsed > slowQuery:
		sql, rows := fc()
		g.log.Warnf("slow: %s  rows: %d  elapsed: %s", sql, rows, elapsed)
	default:
		sql, rows := fc()
		g.log.Tracef("%s  rows: %d  elapsed: %s", sql, rows, elapsed)
	}
}
