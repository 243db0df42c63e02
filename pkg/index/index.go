// Package index provides connectors to the FDB metadata index.
//
// The reconciliation engine only needs one capability from the archive: given
// a schema dimension and an exact-match filter over other dimensions, return
// the distinct values of that dimension among the archived fields matching
// the filter. Each connector implements the Index interface for one way of
// reaching the index. Available connectors:
//   - HTTPIndex: a REST front end to `fdb list`, responses parsed with gjson
//   - ListIndex: the `fdb-list` command line tool from an FDB5 installation
//   - MemoryIndex: an in-process index, used by tests and dry runs
package index

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
)

// SchemaKeys are the FDB schema dimensions a filter may constrain.
var SchemaKeys = []string{
	"date", "expver", "model", "number", "stream", "time",
	"type", "levtype", "param", "step", "levelist",
}

// ErrInvalidFilterKey is returned when a filter names a dimension outside SchemaKeys.
var ErrInvalidFilterKey = errors.New("invalid filter key")

// Index is the interface all metadata-index connectors implement.
//
// ListValues is synchronous. Transport failures are returned as errors; a
// dimension with no matching entries is not an error and yields an empty or
// absent entry in the Result.
type Index interface {
	ListValues(ctx context.Context, dimension string, filter Filter) (Result, error)

	// Name returns a short identifier for the connector, e.g. "http".
	Name() string
}

// Informer is implemented by connectors that can describe the FDB
// installation behind them.
type Informer interface {
	Info(ctx context.Context) ([]byte, error)
}

// ValueSet is a set of distinct dimension values.
type ValueSet map[string]struct{}

// NewValueSet builds a set from the given values.
func NewValueSet(values ...string) ValueSet {
	s := make(ValueSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Contains reports whether v is in the set. Safe on a nil set.
func (s ValueSet) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the values in lexical order.
func (s ValueSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Result maps a dimension name to its distinct values.
type Result map[string]ValueSet

// Filter is an immutable exact-match filter over schema dimensions.
// Methods that change a filter return a new value and leave the receiver untouched.
type Filter struct {
	values map[string]string
}

// NewFilter creates a filter from a key/value map. The map is copied.
func NewFilter(values map[string]string) Filter {
	return Filter{values: maps.Clone(values)}
}

// ParseFilter parses a "k1=v1,k2=v2" expression and validates its keys.
func ParseFilter(expr string) (Filter, error) {
	values := make(map[string]string)
	for _, pair := range strings.Split(expr, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return Filter{}, fmt.Errorf("filter entry %q is not key=value", pair)
		}
		values[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	f := Filter{values: values}
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// With returns a copy of f with key set to value.
func (f Filter) With(key, value string) Filter {
	out := make(map[string]string, len(f.values)+1)
	maps.Copy(out, f.values)
	out[key] = value
	return Filter{values: out}
}

// Merge returns a copy of f with all entries of extra applied on top.
func (f Filter) Merge(extra map[string]string) Filter {
	out := make(map[string]string, len(f.values)+len(extra))
	maps.Copy(out, f.values)
	maps.Copy(out, extra)
	return Filter{values: out}
}

// Get returns the value for key.
func (f Filter) Get(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Len returns the number of constrained dimensions.
func (f Filter) Len() int { return len(f.values) }

// Keys returns the constrained dimensions in lexical order.
func (f Filter) Keys() []string {
	return slices.Sorted(maps.Keys(f.values))
}

// Map returns a copy of the filter entries.
func (f Filter) Map() map[string]string {
	if f.values == nil {
		return map[string]string{}
	}
	return maps.Clone(f.values)
}

// Matches reports whether every entry of f is present with the same value in keys.
func (f Filter) Matches(keys map[string]string) bool {
	for k, v := range f.values {
		if keys[k] != v {
			return false
		}
	}
	return true
}

// Validate rejects keys outside SchemaKeys.
func (f Filter) Validate() error {
	for _, k := range f.Keys() {
		if !slices.Contains(SchemaKeys, k) {
			return fmt.Errorf("%w: %q must be one of %s", ErrInvalidFilterKey, k, strings.Join(SchemaKeys, ", "))
		}
	}
	return nil
}

// String renders the filter as "k1=v1,k2=v2" sorted by key, the request syntax of the FDB tools.
func (f Filter) String() string {
	parts := make([]string, 0, len(f.values))
	for _, k := range f.Keys() {
		parts = append(parts, k+"="+f.values[k])
	}
	return strings.Join(parts, ",")
}
