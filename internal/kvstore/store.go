// Package kvstore is the shared key-value store that job records live in.
//
// Items are flat string attribute maps addressed by (owner, entity). A single
// secondary index over the gsi1pk/gsi1sk attributes supports ordered prefix
// queries, and ConditionalUpdate is the compare-and-swap primitive the claim
// protocol depends on.
package kvstore

import (
	"context"
	"errors"
)

// Index attribute names.
const (
	AttrIndexPK = "gsi1pk"
	AttrIndexSK = "gsi1sk"
)

var (
	// ErrNotFound is returned by Get when no item exists.
	ErrNotFound = errors.New("kvstore: item not found")

	// ErrConditionFailed is returned by ConditionalUpdate when the item is
	// missing or a precondition does not hold.
	ErrConditionFailed = errors.New("kvstore: condition failed")
)

// Key addresses one item.
type Key struct {
	Owner  string
	Entity string
}

// Item is a stored record.
type Item struct {
	Key
	Attrs map[string]string
}

// Attr returns the named attribute or "".
func (i *Item) Attr(name string) string {
	if i.Attrs == nil {
		return ""
	}
	return i.Attrs[name]
}

// QueryInput selects items from one index partition whose sort key starts
// with SortPrefix.
type QueryInput struct {
	Partition  string
	SortPrefix string
	Limit      int
	Ascending  bool
}

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, key Key) (*Item, error)

	// Put writes item, replacing any existing attributes.
	Put(ctx context.Context, item *Item) error

	// ConditionalUpdate applies set atomically if every attribute in cond has
	// the expected value. Setting an attribute to "" removes it.
	ConditionalUpdate(ctx context.Context, key Key, set, cond map[string]string) error

	Query(ctx context.Context, q QueryInput) ([]Item, error)

	Close() error
}

// matches reports whether attrs satisfy cond. A missing attribute never
// matches a non-empty expectation.
func matches(attrs, cond map[string]string) bool {
	for k, want := range cond {
		got, ok := attrs[k]
		if !ok && want != "" {
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

// apply returns a copy of attrs with set applied.
func apply(attrs, set map[string]string) map[string]string {
	out := make(map[string]string, len(attrs)+len(set))
	for k, v := range attrs {
		out[k] = v
	}
	for k, v := range set {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 25
	}
	return n
}
