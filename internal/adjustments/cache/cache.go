// Package cache is the device-local tier of the adjustment store: one
// serialized adjustment map per operating date, kept in badger.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"seatflow/pkg/logger"
	"seatflow/pkg/model"

	"github.com/dgraph-io/badger/v4"
)

const KeyPrefix = "duration-adjustments:"

func Key(date string) []byte {
	return []byte(KeyPrefix + date)
}

type BadgerCache struct {
	db  *badger.DB
	log *logger.Logger
}

func NewBadgerCache(db *badger.DB, log *logger.Logger) *BadgerCache {
	return &BadgerCache{db: db, log: log}
}

// Load returns the map stored for date. A missing key, a read error, an
// undecodable value or a stored null all yield an empty map.
func (c *BadgerCache) Load(date string) model.AdjustmentMap {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(date))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.log.Warn("Failed to read cached adjustments", "date", date, "error", err)
		}
		return model.AdjustmentMap{}
	}

	m := model.AdjustmentMap{}
	if err := json.Unmarshal(raw, &m); err != nil {
		c.log.Warn("Discarding corrupt cached adjustments", "date", date, "error", err)
		return model.AdjustmentMap{}
	}
	if m == nil {
		return model.AdjustmentMap{}
	}
	return m
}

func (c *BadgerCache) Save(date string, m model.AdjustmentMap) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode adjustments for %s: %w", date, err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(Key(date), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to write adjustments for %s: %w", date, err)
	}
	return nil
}
