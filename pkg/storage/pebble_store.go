package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/orderkit/pkg/order"
)

// ClaimRecord is one participant's signature over an order digest.
type ClaimRecord struct {
	Signer     common.Address
	Claim      string
	Slot       int // position in the order's participant list
	ReceivedAt int64
}

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}
func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveOrder persists a normalized order under its digest
func (s *PebbleStore) SaveOrder(digest common.Hash, o order.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.db.Set(orderKey(digest), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// LoadOrder loads an order by digest
// Returns nil if the order doesn't exist
func (s *PebbleStore) LoadOrder(digest common.Hash) (*order.Order, error) {
	data, closer, err := s.db.Get(orderKey(digest))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	defer closer.Close()

	o, err := order.ParseOrder(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &o, nil
}

// DeleteOrder removes an order and every claim collected for it
func (s *PebbleStore) DeleteOrder(digest common.Hash) error {
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(orderKey(digest), nil); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	prefix := claimPrefix(digest)
	if err := b.DeleteRange(prefix, keyUpperBound(prefix), nil); err != nil {
		return fmt.Errorf("failed to delete claims: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

// SaveClaim stores a claim, replacing any earlier claim by the same signer
func (s *PebbleStore) SaveClaim(digest common.Hash, rec ClaimRecord) error {
	val, err := encodeGob(rec)
	if err != nil {
		return fmt.Errorf("encode claim: %w", err)
	}
	if err := s.db.Set(claimKey(digest, rec.Signer), val, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save claim: %w", err)
	}
	return nil
}

// LoadClaims returns every claim on an order, ordered by participant slot
func (s *PebbleStore) LoadClaims(digest common.Hash) ([]ClaimRecord, error) {
	prefix := claimPrefix(digest)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var claims []ClaimRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec ClaimRecord
		if err := decodeGob(iter.Value(), &rec); err != nil {
			continue // Skip invalid entries
		}
		claims = append(claims, rec)
	}
	sort.SliceStable(claims, func(i, j int) bool { return claims[i].Slot < claims[j].Slot })
	return claims, nil
}
