// Package aggregate implements the rollup row type and the merge algebra
// that lets the same row shape be produced by grouping raw spots (hour
// level) or by merging child rollups (day/month levels).
package aggregate

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Key is the composite grouping key every rollup row is keyed by.
type Key struct {
	Mode   string
	Band   string
	Entity string
}

// hash returns a fast, non-cryptographic digest of the key, used only to
// bucket groups during aggregation — never persisted, unlike the SHA-256
// content hash embedded in rollup filenames.
func (k Key) hash() uint64 {
	return xxhash.Sum64String(k.Mode + "\x00" + k.Band + "\x00" + k.Entity)
}

// groupIndex accumulates builders keyed by Key.hash(), a hash-then-bucket
// index over an in-memory map rather than a storage key.
type groupIndex struct {
	builders map[uint64]*builder
	keys     map[uint64]Key
	order    []uint64
}

func newGroupIndex() *groupIndex {
	return &groupIndex{
		builders: make(map[uint64]*builder),
		keys:     make(map[uint64]Key),
	}
}

// get returns the builder for key, creating one on first sight.
func (g *groupIndex) get(key Key) *builder {
	h := key.hash()
	bd, ok := g.builders[h]
	if !ok {
		bd = newBuilder(key)
		g.builders[h] = bd
		g.keys[h] = key
		g.order = append(g.order, h)
	}
	return bd
}

// finishSorted converts every builder into a Base row, sorted by Key for
// deterministic output regardless of insertion or hash-bucket order.
func (g *groupIndex) finishSorted() []Base {
	sort.Slice(g.order, func(i, j int) bool {
		a, b := g.keys[g.order[i]], g.keys[g.order[j]]
		if a.Mode != b.Mode {
			return a.Mode < b.Mode
		}
		if a.Band != b.Band {
			return a.Band < b.Band
		}
		return a.Entity < b.Entity
	})

	out := make([]Base, 0, len(g.order))
	for _, h := range g.order {
		out = append(out, g.builders[h].finish())
	}
	return out
}

// Base is one row of a rollup file: the metrics and set-valued collections
// shared by every level. Cardinalities are always derived from the
// collections, never tracked independently, so a Base is never internally
// inconsistent.
type Base struct {
	Mode   string `json:"mode"`
	Band   string `json:"band"`
	Entity string `json:"entity"`

	SpotCount        int `json:"spot_count"`
	ActivationCount  int `json:"activation_count"`
	UniqueActivators int `json:"unique_activators"`
	UniqueParks      int `json:"unique_parks"`

	Activators      []string `json:"activators"`
	Parks           []string `json:"parks"`
	Activations     []string `json:"activations"`
	StateActivators []string `json:"state_activators"`
}

// Hourly is a Base row tagged with the ISO hour it summarizes.
type Hourly struct {
	Base
	Hour string `json:"hour"`
}

// Daily is a Base row tagged with the YYYY-MM-DD day it summarizes.
type Daily struct {
	Base
	Date string `json:"date"`
}

// Monthly is a Base row tagged with the YYYY-MM month it summarizes.
type Monthly struct {
	Base
	Month string `json:"month"`
}

// Key returns the row's grouping key.
func (b Base) Key() Key {
	return Key{Mode: b.Mode, Band: b.Band, Entity: b.Entity}
}

// builder accumulates a single group's sets during aggregation; finish
// converts it into an immutable Base with recomputed cardinalities.
type builder struct {
	key Key

	activators      map[string]struct{}
	parks           map[string]struct{}
	activations     map[string]struct{}
	stateActivators map[string]struct{}
	spotCount       int
}

func newBuilder(key Key) *builder {
	return &builder{
		key:             key,
		activators:      make(map[string]struct{}),
		parks:           make(map[string]struct{}),
		activations:     make(map[string]struct{}),
		stateActivators: make(map[string]struct{}),
	}
}

func (bd *builder) addSpotCount(n int) {
	bd.spotCount += n
}

func (bd *builder) addActivator(a string) {
	if a != "" {
		bd.activators[a] = struct{}{}
	}
}

func (bd *builder) addPark(p string) {
	if p != "" {
		bd.parks[p] = struct{}{}
	}
}

func (bd *builder) addActivation(a string) {
	bd.activations[a] = struct{}{}
}

func (bd *builder) addStateActivator(s string) {
	bd.stateActivators[s] = struct{}{}
}

// finish produces the Base row. Cardinalities are always recomputed from the
// final set contents, matching the "recompute, never sum" merge rule.
func (bd *builder) finish() Base {
	return Base{
		Mode:             bd.key.Mode,
		Band:             bd.key.Band,
		Entity:           bd.key.Entity,
		SpotCount:        bd.spotCount,
		ActivationCount:  len(bd.activations),
		UniqueActivators: len(bd.activators),
		UniqueParks:      len(bd.parks),
		Activators:       sortedKeys(bd.activators),
		Parks:            sortedKeys(bd.parks),
		Activations:      sortedKeys(bd.activations),
		StateActivators:  sortedKeys(bd.stateActivators),
	}
}

// sortedKeys returns the set's members in sorted order so persisted NDJSON
// output is deterministic across runs with identical input (the
// idempotence property depends on this).
func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
