// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"time"

	"github.com/bitmark-inc/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Configuration - the database section of the configuration file
type Configuration struct {
	DSN                string `gluamapper:"dsn" json:"dsn"`
	MaximumConnections int    `gluamapper:"maximum_connections" json:"maximum_connections"`
	IdleConnections    int    `gluamapper:"idle_connections" json:"idle_connections"`
}

// Store - access to the relational records
//
// a Store obtained inside Transaction is bound to that transaction
type Store struct {
	db  *gorm.DB
	log *logger.L
}

// Open - connect to PostgreSQL
func Open(configuration *Configuration) (*Store, error) {
	s, err := OpenDialector(postgres.Open(configuration.DSN))
	if nil != err {
		return nil, err
	}

	sqlDB, err := s.db.DB()
	if nil != err {
		return nil, err
	}
	if configuration.MaximumConnections > 0 {
		sqlDB.SetMaxOpenConns(configuration.MaximumConnections)
	}
	if configuration.IdleConnections > 0 {
		sqlDB.SetMaxIdleConns(configuration.IdleConnections)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return s, nil
}

// OpenDialector - connect through any gorm dialector
func OpenDialector(dialector gorm.Dialector) (*Store, error) {
	log := logger.New("storage")

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(logger.New("database")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if nil != err {
		log.Errorf("open database error: %s", err)
		return nil, err
	}

	return &Store{
		db:  db,
		log: log,
	}, nil
}

// Migrate - create or update tables and indexes
func (s *Store) Migrate() error {
	s.log.Info("migrate…")
	if err := s.db.AutoMigrate(models...); nil != err {
		return err
	}

	// at most one draft bulletin may exist
	return s.db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_bulletins_single_draft ON bulletins (state) WHERE state = 'draft'").Error
}

// DB - the underlying handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close - release all connections
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if nil != err {
		return err
	}
	return sqlDB.Close()
}

// Transaction - run fn with a store bound to one database transaction
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, log: s.log})
	})
}

func (s *Store) with(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}
