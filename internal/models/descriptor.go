package models

import (
	"strings"
)

// NormalizeKey lower-cases a key and replaces spaces with underscores
func NormalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
}

// Descriptor is the bootstrap key/value document that locates the live feed.
// A key may repeat across lines, its values accumulate in document order.
type Descriptor struct {
	values map[string][]string
	keys   []string
}

// NewDescriptor returns an empty descriptor
func NewDescriptor() *Descriptor {
	return &Descriptor{values: make(map[string][]string)}
}

// Add appends value to the list stored under the normalized key
func (d *Descriptor) Add(key, value string) {
	key = NormalizeKey(key)
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = append(d.values[key], value)
}

// Values returns a copy of the values stored under key
func (d *Descriptor) Values(key string) []string {
	if d == nil {
		return nil
	}
	vals := d.values[NormalizeKey(key)]
	if len(vals) == 0 {
		return nil
	}
	out := make([]string, len(vals))
	copy(out, vals)
	return out
}

// Has reports whether key has at least one value
func (d *Descriptor) Has(key string) bool {
	return len(d.Values(key)) > 0
}

// Keys returns the keys in first-seen order
func (d *Descriptor) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// General holds the !GENERAL section of the feed.
// A key that is already defined is stored under a renamed key instead of
// overwriting: the base name gets "_" appended until it is unused.
type General struct {
	values map[string]string
	keys   []string
}

// NewGeneral returns an empty general section
func NewGeneral() *General {
	return &General{values: make(map[string]string)}
}

// Set stores value under the normalized key and returns the key actually used
func (g *General) Set(key, value string) string {
	key = NormalizeKey(key)
	for {
		if _, exists := g.values[key]; !exists {
			break
		}
		key += "_"
	}
	g.values[key] = value
	g.keys = append(g.keys, key)
	return key
}

// Get returns the value stored under key
func (g *General) Get(key string) (string, bool) {
	if g == nil {
		return "", false
	}
	v, ok := g.values[key]
	return v, ok
}

// Len returns the number of stored keys
func (g *General) Len() int {
	if g == nil {
		return 0
	}
	return len(g.values)
}

// Map returns a copy of the section
func (g *General) Map() map[string]string {
	out := make(map[string]string)
	if g == nil {
		return out
	}
	for k, v := range g.values {
		out[k] = v
	}
	return out
}
