// Package storage — bolt.go
//
// BoltDB-backed persistent storage for vibralyzer.
//
// Schema (BoltDB bucket layout):
//
//	/baselines
//	    key:   asset + "\x00" + point + "\x00" + feature
//	    value: JSON-encoded BaselineRecord
//
//	/ledger
//	    key:   fixed-width UTC timestamp (ns) + "_" + asset + "_" + point  [sortable]
//	    value: JSON-encoded LedgerEntry
//
//	/meta
//	    key:   "schema_version"
//	    value: "1"
//
// Consistency model:
//   - Single-process, single-writer (BoltDB does not support concurrent writers).
//   - All writes use ACID transactions (bbolt Tx.Commit()).
//   - Reads use read-only transactions (bbolt.View()).
//   - CRC32 integrity check on database open (bbolt built-in).
//
// Retention:
//   - Ledger entries older than RetentionDays are pruned once, on startup
//     (PruneOldLedgerEntries); there is no periodic pruning while running.
//   - Baselines are never automatically pruned (operator action required).
//
// Failure modes:
//   - BoltDB file corruption: bbolt detects via CRC and returns an error
//     on Open(). The agent logs a fatal event and refuses to start.
//     Recovery: restore from backup at /var/lib/vibralyzer/db.bak.
//   - Disk full: bbolt.Update() returns an error. The agent logs the error
//     and continues without persisting (in-memory state preserved).
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultDBPath is the default BoltDB file location.
	DefaultDBPath = "/var/lib/vibralyzer/vibralyzer.db"

	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	// DefaultRetentionDays is the default ledger retention period.
	DefaultRetentionDays = 30

	// bucketBaselines is the BoltDB bucket name for per-feature baseline records.
	bucketBaselines = "baselines"

	// bucketLedger is the BoltDB bucket name for early-fault audit entries.
	bucketLedger = "ledger"

	// bucketMeta is the BoltDB bucket name for schema metadata.
	bucketMeta = "meta"
)

// BaselineRecord is the persisted form of one (asset, point, feature)
// adaptive baseline accumulator. Stored as JSON in the baselines bucket.
type BaselineRecord struct {
	// Asset is the machine/asset identifier this baseline belongs to.
	Asset string `json:"asset"`

	// Point is the measurement point identifier (e.g. "DE", "NDE").
	Point string `json:"point"`

	// Feature is the L1 feature name this accumulator tracks.
	Feature string `json:"feature"`

	// Mean is the current EWMA mean value.
	Mean float64 `json:"mean"`

	// SampleCount is the number of updates folded into Mean so far.
	SampleCount int `json:"sample_count"`

	// UpdatedAt is the timestamp of the last baseline update.
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntry is a single early-fault audit log record describing one
// change of a point's persistence-checker sustained level. The agent's
// pipeline does not write ledger entries; AppendLedger is their only writer.
// Stored as JSON in the ledger bucket.
type LedgerEntry struct {
	// Timestamp is the event time (nanosecond precision).
	Timestamp time.Time `json:"timestamp"`

	// Asset, Point identify the monitored point.
	Asset string `json:"asset"`
	Point string `json:"point"`

	// LevelFrom, LevelTo are the persistence checker's sustained levels
	// before and after this transition ("NORMAL", "WATCH", "WARNING",
	// "ALARM").
	LevelFrom string `json:"level_from"`
	LevelTo   string `json:"level_to"`

	// Confidence is the early-fault FSM's confidence at the time of the
	// transition.
	Confidence float64 `json:"confidence"`

	// FaultType is the diagnostic engine's classification, if an L2 job
	// ran for this transition ("" if none).
	FaultType string `json:"fault_type"`

	// NodeID is the vibralyzer node that recorded this entry.
	NodeID string `json:"node_id"`
}

// DB wraps a BoltDB instance with typed accessors for vibralyzer data.
type DB struct {
	db            *bolt.DB
	retentionDays int
}

// Open opens (or creates) the BoltDB database at the given path.
// Initialises all required buckets and verifies the schema version.
// Returns an error if the database is corrupt or schema is incompatible.
func Open(path string, retentionDays int) (*DB, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		NoGrowSync:   false,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	d := &DB{db: bdb, retentionDays: retentionDays}

	// Initialise buckets and schema version in a single write transaction.
	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketBaselines, bucketLedger, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}

		// Write schema version if not present.
		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("write schema_version: %w", err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("database initialisation failed: %w", err)
	}

	// Verify schema version compatibility.
	if err := d.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return d, nil
}

// checkSchemaVersion reads and validates the stored schema version.
func (d *DB) checkSchemaVersion() error {
	return d.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte("schema_version"))
		if string(v) != SchemaVersion {
			return fmt.Errorf(
				"schema version mismatch: database has %q, agent requires %q. "+
					"Run migration or restore from backup.",
				string(v), SchemaVersion,
			)
		}
		return nil
	})
}

// Close closes the underlying BoltDB file.
func (d *DB) Close() error {
	return d.db.Close()
}

// ─── Baseline operations ──────────────────────────────────────────────────────

// baselineKey builds the composite BoltDB key for one accumulator.
func baselineKey(asset, point, feature string) []byte {
	return []byte(asset + "\x00" + point + "\x00" + feature)
}

// PutBaseline writes or updates a single baseline accumulator record.
// Uses a single ACID write transaction.
func (d *DB) PutBaseline(rec BaselineRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("PutBaseline marshal: %w", err)
	}

	key := baselineKey(rec.Asset, rec.Point, rec.Feature)
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketBaselines))
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("PutBaseline bolt.Put: %w", err)
		}
		return nil
	})
}

// PutBaselines writes a batch of baseline records in a single transaction.
// Used at shutdown (or periodically) to flush the in-memory baseline.Store.
func (d *DB) PutBaselines(recs []BaselineRecord) error {
	now := time.Now().UTC()
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketBaselines))
		for _, rec := range recs {
			rec.UpdatedAt = now
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("PutBaselines marshal: %w", err)
			}
			if err := b.Put(baselineKey(rec.Asset, rec.Point, rec.Feature), data); err != nil {
				return fmt.Errorf("PutBaselines bolt.Put: %w", err)
			}
		}
		return nil
	})
}

// GetBaseline retrieves one accumulator's persisted record.
// Returns (nil, nil) if no baseline exists for this (asset, point, feature).
func (d *DB) GetBaseline(asset, point, feature string) (*BaselineRecord, error) {
	key := baselineKey(asset, point, feature)
	var rec BaselineRecord
	found := false

	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketBaselines))
		data := b.Get(key)
		if data == nil {
			return nil // Not found.
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("GetBaseline(%s,%s,%s): %w", asset, point, feature, err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// LoadAllBaselines returns every persisted baseline record.
// Called once at startup to warm the in-memory baseline.Store.
func (d *DB) LoadAllBaselines() ([]BaselineRecord, error) {
	var recs []BaselineRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketBaselines))
		return b.ForEach(func(_, v []byte) error {
			var rec BaselineRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}

// ─── Ledger operations ────────────────────────────────────────────────────────

// ledgerKey constructs a sortable BoltDB key for a ledger entry.
// Format: RFC3339 UTC with a fixed nine-digit fraction + "_" + asset + "_" +
// point. The fixed width makes lexicographic sort = chronological sort.
func ledgerKey(t time.Time, asset, point string) []byte {
	return []byte(fmt.Sprintf("%s_%s_%s", t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), asset, point))
}

// AppendLedger writes a new audit ledger entry.
// Uses a single ACID write transaction.
func (d *DB) AppendLedger(entry LedgerEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("AppendLedger marshal: %w", err)
	}

	key := ledgerKey(entry.Timestamp, entry.Asset, entry.Point)

	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("AppendLedger bolt.Put: %w", err)
		}
		return nil
	})
}

// PruneOldLedgerEntries deletes ledger entries older than retentionDays.
// Called once on startup by the agent.
// Returns the number of entries deleted.
func (d *DB) PruneOldLedgerEntries() (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -d.retentionDays)
	cutoffKey := ledgerKey(cutoff, "", "")

	var deleted int
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		c := b.Cursor()

		// Collect keys to delete (cannot delete during iteration in bbolt).
		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if string(k) >= string(cutoffKey) {
				break // All remaining keys are newer than cutoff.
			}
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			toDelete = append(toDelete, keyCopy)
		}

		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("PruneOldLedgerEntries delete: %w", err)
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// ReadLedger returns all ledger entries in chronological order.
// For operational use (CLI inspection). Not called on the hot path.
func (d *DB) ReadLedger() ([]LedgerEntry, error) {
	var entries []LedgerEntry
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		return b.ForEach(func(_, v []byte) error {
			var entry LedgerEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}
