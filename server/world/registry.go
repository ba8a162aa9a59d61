package world

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

// Registry holds the worlds of a server by name. It implements farm.Worlds so that a farm can resolve
// the regions it tracks to live worlds.
type Registry struct {
	worlds map[string]*World
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{worlds: make(map[string]*World)}
}

// Add adds w to the Registry. An error is returned if a world with the same name was already added.
func (r *Registry) Add(w *World) error {
	if _, ok := r.worlds[w.Name()]; ok {
		return fmt.Errorf("add world: world %q already exists", w.Name())
	}
	r.worlds[w.Name()] = w
	return nil
}

// Remove removes the world with the name passed and returns it.
func (r *Registry) Remove(name string) (*World, bool) {
	w, ok := r.worlds[name]
	delete(r.worlds, name)
	return w, ok
}

// Get returns the world with the name passed.
func (r *Registry) Get(name string) (*World, bool) {
	w, ok := r.worlds[name]
	return w, ok
}

// Resolve reports if a world with the name passed exists.
func (r *Registry) Resolve(name string) bool {
	_, ok := r.worlds[name]
	return ok
}

// World returns the world with the name passed as a farm.World.
func (r *Registry) World(name string) (farm.World, bool) {
	w, ok := r.worlds[name]
	if !ok {
		return nil, false
	}
	return w, true
}

// All returns all worlds in the Registry, sorted by name.
func (r *Registry) All() []*World {
	out := make([]*World, 0, len(r.worlds))
	for _, w := range r.worlds {
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b *World) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// Len returns the number of worlds in the Registry.
func (r *Registry) Len() int {
	return len(r.worlds)
}
