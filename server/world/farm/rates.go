package farm

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"

	"github.com/brentp/intintmap"
)

// DefaultRates holds the built-in growth durations in seconds by block name.
var DefaultRates = map[string]int{
	"WHEAT_BLOCK":    1800,
	"CARROT_BLOCK":   1800,
	"POTATOES":       1800,
	"CARROTS":        1800,
	"BEETROOT_BLOCK": 1800,
	"PUMPKIN_STEM":   1800,
	"MELON_STEM":     1800,
}

// Rates maps tracked block types to the number of seconds they need to reach full growth. Rates are
// looked up both by block name and by the numeric block type the name resolves to. A Rates is immutable
// once loaded.
type Rates struct {
	named map[string]int
	ids   *intintmap.Map
}

// LoadRates builds a Rates from the defaults and the overrides passed. A default is only overridden by a
// non-negative integer. Override names that are not defaults are kept only if c resolves them to a block
// type. If several names resolve to the same type, overrides take precedence over defaults and names are
// applied in sorted order.
func LoadRates(overrides map[string]json.RawMessage, c Catalog) *Rates {
	r := &Rates{named: make(map[string]int, len(DefaultRates)+len(overrides))}

	var defaulted, overridden []string
	for name, def := range DefaultRates {
		if v, ok := seconds(overrides[name]); ok {
			r.named[name] = v
			overridden = append(overridden, name)
			continue
		}
		r.named[name] = def
		defaulted = append(defaulted, name)
	}
	for name, raw := range overrides {
		if _, ok := DefaultRates[name]; ok {
			continue
		}
		v, ok := seconds(raw)
		if !ok || c == nil {
			continue
		}
		if _, ok := c.Lookup(name); !ok {
			continue
		}
		r.named[name] = v
		overridden = append(overridden, name)
	}
	slices.Sort(defaulted)
	slices.Sort(overridden)

	r.ids = intintmap.New(len(r.named)*2, 0.6)
	if c == nil {
		return r
	}
	for _, name := range append(defaulted, overridden...) {
		if t, ok := c.Lookup(name); ok {
			r.ids.Put(int64(t), int64(r.named[name]))
		}
	}
	return r
}

// RequiredSeconds returns the seconds a block of type t needs to fully grow. ok is false if t is not
// tracked.
func (r *Rates) RequiredSeconds(t BlockType) (int, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r.ids.Get(int64(t))
	return int(v), ok
}

// Named returns the seconds configured for a block name.
func (r *Rates) Named(name string) (int, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r.named[name]
	return v, ok
}

// Tracked reports if blocks of type t are managed by the farm.
func (r *Rates) Tracked(t BlockType) bool {
	_, ok := r.RequiredSeconds(t)
	return ok
}

// Len returns the number of distinct tracked block types.
func (r *Rates) Len() int {
	if r == nil {
		return 0
	}
	return r.ids.Size()
}

// Document returns the rates by name, in the form they are persisted in the settings document.
func (r *Rates) Document() map[string]int {
	doc := make(map[string]int, len(r.named))
	for name, v := range r.named {
		doc[name] = v
	}
	return doc
}

// seconds parses raw as a non-negative JSON integer.
func seconds(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil || i < 0 || i > math.MaxInt32 {
		return 0, false
	}
	return int(i), true
}
