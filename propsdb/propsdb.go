// Package propsdb stores svcprops snapshots in a local leveldb
// database. It is the on-disk half of the cache's persistence
// contract: the cache hands over typed snapshots and this package owns
// their serialized representation.
package propsdb

import (
	"encoding/json"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/netprops/go-netprops/svcprops"
)

var log = logging.Logger("propsdb")

var snapshotKey = []byte("svcprops/snapshot")

// DB is a leveldb-backed svcprops.Storage.
type DB struct {
	db *leveldb.DB
}

var _ svcprops.Storage = (*DB)(nil)

// Open opens (creating if needed) the database at path.
func Open(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot open properties db at %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

// Load returns the stored snapshot. The second return is false if
// nothing has been stored yet. A snapshot that cannot be decoded is
// treated as absent.
func (d *DB) Load() (svcprops.Snapshot, bool, error) {
	data, err := d.db.Get(snapshotKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return svcprops.Snapshot{}, false, nil
		}
		return svcprops.Snapshot{}, false, fmt.Errorf("cannot read properties snapshot: %w", err)
	}
	var snap svcprops.Snapshot
	if err = json.Unmarshal(data, &snap); err != nil {
		log.Errorw("discarding undecodable properties snapshot", "err", err)
		return svcprops.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Save replaces the stored snapshot.
func (d *DB) Save(snap svcprops.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cannot encode properties snapshot: %w", err)
	}
	if err = d.db.Put(snapshotKey, data, nil); err != nil {
		return fmt.Errorf("cannot write properties snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}
