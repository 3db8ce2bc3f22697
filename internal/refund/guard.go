// Package refund enforces at-most-once compensation. The ledger's
// Compensate is deliberately not idempotent, so the delivery path
// records every refund attempt here, keyed by purchase reference, and
// never compensates a reference twice. References that began but never
// completed a refund stay pending for operator reconciliation.
package refund

import (
	"errors"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "refunds"

var (
	statePending = []byte("pending")
	stateDone    = []byte("done")
)

// ErrUnknownReference is returned by MarkDone for a reference Begin
// never saw.
var ErrUnknownReference = errors.New("unknown refund reference")

// Guard wraps a BoltDB file holding one bucket of reference -> state.
type Guard struct {
	db *bolt.DB
}

// Open opens (or creates) the guard database at path.
func Open(path string) (*Guard, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Guard{db: db}, nil
}

func (g *Guard) Close() error {
	return g.db.Close()
}

// Begin claims the reference for refunding. It returns false if the
// reference was already claimed, in which case the caller must not
// compensate again.
func (g *Guard) Begin(reference string) (bool, error) {
	first := false
	err := g.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b.Get([]byte(reference)) != nil {
			return nil
		}
		first = true
		return b.Put([]byte(reference), statePending)
	})
	return first, err
}

// MarkDone records that the compensating credit was applied.
func (g *Guard) MarkDone(reference string) error {
	return g.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b.Get([]byte(reference)) == nil {
			return ErrUnknownReference
		}
		return b.Put([]byte(reference), stateDone)
	})
}

// Pending lists references whose refund was claimed but never applied,
// i.e. the store failed mid-compensation and an operator has to
// reconcile by hand.
func (g *Guard) Pending() ([]string, error) {
	refs := []string{}
	err := g.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.ForEach(func(k, v []byte) error {
			if string(v) == string(statePending) {
				refs = append(refs, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
