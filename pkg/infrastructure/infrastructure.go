package infrastructure

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/mastermind/pkg/log"
)

var (
	// Bucket names
	bucketGroupHistory = []byte("group_history")
)

// Record kinds
const (
	KindAuto   = "auto"
	KindDetach = "detach"
)

// Record is one entry in a group's history: the node set the group had
// at TS and why it was written down.
type Record struct {
	ID      string   `json:"id" msgpack:"id"`
	GroupID int      `json:"group_id" msgpack:"group_id"`
	Nodes   []string `json:"nodes" msgpack:"nodes"`
	TS      int64    `json:"ts" msgpack:"ts"`
	Kind    string   `json:"kind" msgpack:"kind"`
	Reason  string   `json:"reason" msgpack:"reason"`
}

// Store is the durable group history, backed by BoltDB. Records are
// append-only; the newest record for a group is its current node set.
type Store struct {
	db     *bolt.DB
	now    func() time.Time
	logger zerolog.Logger
}

// New opens (or creates) the history database at path. The open fails
// instead of waiting when another agent holds the file lock: group
// number allocation is only safe with a single coordinator.
func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketGroupHistory); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketGroupHistory, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		now:    time.Now,
		logger: log.WithComponent("infrastructure"),
	}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordNodes appends an automatic snapshot of the group's node set if it
// differs from the newest recorded one. It reports whether a record was
// written.
func (s *Store) RecordNodes(groupID int, nodes []string) (bool, error) {
	snapshot := sortedCopy(nodes)

	recorded := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGroupHistory)

		last, err := latestNodes(b, groupID)
		if err != nil {
			return err
		}
		if last != nil && equalSets(last, snapshot) {
			return nil
		}

		rec := Record{
			ID:      uuid.NewString(),
			GroupID: groupID,
			Nodes:   snapshot,
			TS:      s.now().Unix(),
			Kind:    KindAuto,
			Reason:  "node set changed",
		}
		if err := appendRecord(b, rec); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if recorded {
		s.logger.Info().
			Int("group", groupID).
			Strs("nodes", snapshot).
			Msg("Recorded group node set")
	}
	return recorded, nil
}

// RecordDetach appends a detach record carrying the group's node set after
// addr was removed from it.
func (s *Store) RecordDetach(groupID int, nodes []string, addr string) error {
	rec := Record{
		ID:      uuid.NewString(),
		GroupID: groupID,
		Nodes:   sortedCopy(nodes),
		TS:      s.now().Unix(),
		Kind:    KindDetach,
		Reason:  fmt.Sprintf("detached node %s", addr),
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return appendRecord(tx.Bucket(bucketGroupHistory), rec)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Int("group", groupID).
		Str("node", addr).
		Msg("Recorded node detachment")
	return nil
}

// History returns every record of the group in append order
func (s *Store) History(groupID int) ([]Record, error) {
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGroupHistory)
		prefix := groupPrefix(groupID)

		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode history record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// appendRecord stores rec under the next sequence key of its group
func appendRecord(b *bolt.Bucket, rec Record) error {
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.Put(recordKey(rec.GroupID, seq), data)
}

// latestNodes returns the node set of the newest record for the group,
// or nil if the group has no history yet.
func latestNodes(b *bolt.Bucket, groupID int) ([]string, error) {
	prefix := groupPrefix(groupID)

	var last []byte
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		last = v
	}
	if last == nil {
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal(last, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode history record: %w", err)
	}
	if rec.Nodes == nil {
		return []string{}, nil
	}
	return rec.Nodes, nil
}

// recordKey orders records by group then by insertion sequence
func recordKey(groupID int, seq uint64) []byte {
	k := make([]byte, 16)
	binary.BigEndian.PutUint64(k[:8], uint64(groupID))
	binary.BigEndian.PutUint64(k[8:], seq)
	return k
}

func groupPrefix(groupID int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(groupID))
	return k
}

func sortedCopy(nodes []string) []string {
	c := append([]string(nil), nodes...)
	sort.Strings(c)
	return c
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
