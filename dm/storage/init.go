////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 Privategrity Corporation                                   /
//                                                                             /
// All rights reserved.                                                        /
////////////////////////////////////////////////////////////////////////////////

// Opens the sqlite database behind the message store

package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gitlab.com/elixxir/dmsync/dm"
)

// Params tunes the connection pool of the database.
type Params struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// GetDefaultParams returns the pool settings used by NewMessageStore.
func GetDefaultParams() Params {
	return Params{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 10 * time.Minute,
	}
}

// impl is a [dm.MessageStore] kept in a sqlite table.
type impl struct {
	db *gorm.DB

	// guards Append and MarkRead so concurrent writers collapse to one row
	mux sync.Mutex
}

// NewMessageStore opens a sqlite backed [dm.MessageStore] with the default
// pool settings. An empty dbFilePath opens a temporary in-memory database.
func NewMessageStore(dbFilePath string) (dm.MessageStore, error) {
	return NewMessageStoreWithParams(dbFilePath, GetDefaultParams())
}

// NewMessageStoreWithParams is NewMessageStore with explicit pool settings.
func NewMessageStoreWithParams(
	dbFilePath string, p Params) (dm.MessageStore, error) {
	useTemporary := len(dbFilePath) == 0
	if useTemporary {
		// every temporary store gets its own shared-cache database
		dbFilePath = uuid.NewString()
	}
	s, err := openImpl(dbFilePath, useTemporary, p)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// newImpl opens an impl with the default pool settings. When useTemporary is
// set, name only distinguishes one in-memory database from another.
func newImpl(name string, useTemporary bool) (*impl, error) {
	return openImpl(name, useTemporary, GetDefaultParams())
}

func openImpl(name string, useTemporary bool, p Params) (*impl, error) {
	dsn := name
	if useTemporary {
		jww.WARN.Printf("[DM SQL] No database file path specified! " +
			"Using temporary in-memory database")
		dsn = fmt.Sprintf(temporaryDbPath, name)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.New(jww.TRACE, logger.Config{LogLevel: logger.Info}),
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to open sqlite database")
	}

	// WAL lets readers proceed while a write is in progress
	if err = db.Exec("PRAGMA journal_mode = WAL;").Error; err != nil {
		return nil, errors.Wrap(err, "unable to enable write ahead logging")
	}

	if err = configurePool(db, p); err != nil {
		return nil, err
	}

	if err = db.AutoMigrate(&Message{}); err != nil {
		return nil, errors.Wrap(err, "unable to migrate message table")
	}

	jww.INFO.Printf("[DM SQL] Message store opened at %q", dsn)
	return &impl{db: db}, nil
}

// configurePool applies p to the sql.DB underneath db.
func configurePool(db *gorm.DB, p Params) error {
	sqlDb, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "unable to configure connection pool")
	}
	sqlDb.SetMaxIdleConns(p.MaxIdleConns)
	sqlDb.SetMaxOpenConns(p.MaxOpenConns)
	sqlDb.SetConnMaxIdleTime(p.ConnMaxIdleTime)
	sqlDb.SetConnMaxLifetime(p.ConnMaxLifetime)
	return nil
}

// Close releases the database connection pool.
func (i *impl) Close() error {
	sqlDb, err := i.db.DB()
	if err != nil {
		return errors.Wrap(err, "unable to get database connection pool")
	}
	return sqlDb.Close()
}
