// Package atomicstore provides conditional writes over hash documents. Every
// read-compare-write happens inside the backend in one step, so callers get
// mutual exclusion without any in-process locking.
package atomicstore

import (
	"context"
	"errors"
	"time"
)

// ConditionKind selects how a write is guarded
type ConditionKind int

const (
	// Always applies the write unconditionally
	Always ConditionKind = iota
	// MustExist applies the write only if the document exists
	MustExist
	// Absent applies the write only if the document does not exist
	Absent
	// FieldsEqual applies the write only if the document exists and every
	// listed field holds the listed value. An empty expected value matches a
	// missing field.
	FieldsEqual
)

// Condition guards a conditional write
type Condition struct {
	Kind   ConditionKind
	Fields map[string]string
}

// Unconditional returns an Always condition
func Unconditional() Condition { return Condition{Kind: Always} }

// Exists returns a MustExist condition
func Exists() Condition { return Condition{Kind: MustExist} }

// NotExists returns an Absent condition
func NotExists() Condition { return Condition{Kind: Absent} }

// Matches returns a FieldsEqual condition
func Matches(fields map[string]string) Condition {
	return Condition{Kind: FieldsEqual, Fields: fields}
}

// IndexEntry places the document key in a sorted-set index
type IndexEntry struct {
	Key   string
	Score float64
}

// Mutation describes the write applied when the condition holds
type Mutation struct {
	Set   map[string]string
	Unset []string
	// TTL replaces the document expiry when positive
	TTL time.Duration
	// Index is added on write and removed on delete
	Index *IndexEntry
	// Delete removes the whole document instead of writing fields
	Delete bool
}

// Result reports what a conditional write did
type Result struct {
	Applied bool
	Existed bool
}

// Store is the contract the reservation, rate-limit and nonce components
// share
type Store interface {
	ConditionalWrite(ctx context.Context, key string, cond Condition, mut Mutation) (Result, error)
	Get(ctx context.Context, key string) (map[string]string, bool, error)
	GetMany(ctx context.Context, keys []string) ([]map[string]string, error)
	RangeByScore(ctx context.Context, index string, min, max float64) ([]string, error)
	Ping(ctx context.Context) error
}

// ErrEmptyMutation is returned for a write that would change nothing
var ErrEmptyMutation = errors.New("atomicstore: mutation sets, unsets and deletes nothing")

func (m Mutation) empty() bool {
	return !m.Delete && len(m.Set) == 0 && len(m.Unset) == 0 && m.TTL <= 0 && m.Index == nil
}

// ClaimOnce creates key with a TTL if it does not exist. Exactly one caller
// per TTL period gets true, across every process sharing the store.
func ClaimOnce(ctx context.Context, store Store, key, owner string, ttl time.Duration) (bool, error) {
	res, err := store.ConditionalWrite(ctx, key, NotExists(), Mutation{
		Set: map[string]string{
			"owner":      owner,
			"claimed_at": time.Now().UTC().Format(time.RFC3339),
		},
		TTL: ttl,
	})
	if err != nil {
		return false, err
	}
	return res.Applied, nil
}
