// Package registry resolves router and OLT connection profiles by id.
// A Registry is read-only once built and safe for concurrent use.
package registry

import (
	"fmt"
	"sort"

	"github.com/nanoncore/nano-ctlplane/config"
	"github.com/nanoncore/nano-ctlplane/types"
)

// Registry holds the deployment's device profiles
type Registry struct {
	routers       map[string]types.RouterProfile
	olts          map[string]types.OltProfile
	defaultRouter string
	radius        config.RadiusEntry
}

// New builds a registry. The default router is the profile marked Default,
// or the only router when exactly one is configured.
func New(routers []types.RouterProfile, olts []types.OltProfile) (*Registry, error) {
	r := &Registry{
		routers: make(map[string]types.RouterProfile, len(routers)),
		olts:    make(map[string]types.OltProfile, len(olts)),
	}

	for _, p := range routers {
		if _, dup := r.routers[p.ID]; dup {
			return nil, fmt.Errorf("duplicate router id %q", p.ID)
		}
		r.routers[p.ID] = p
		if p.Default {
			if r.defaultRouter != "" {
				return nil, fmt.Errorf("routers %q and %q are both marked default", r.defaultRouter, p.ID)
			}
			r.defaultRouter = p.ID
		}
	}
	if r.defaultRouter == "" && len(routers) == 1 {
		r.defaultRouter = routers[0].ID
	}

	for _, p := range olts {
		if _, dup := r.olts[p.ID]; dup {
			return nil, fmt.Errorf("duplicate olt id %q", p.ID)
		}
		r.olts[p.ID] = p
	}

	return r, nil
}

// FromFile builds a registry from a decoded configuration file
func FromFile(f *config.File) (*Registry, error) {
	routers, err := f.RouterProfiles()
	if err != nil {
		return nil, err
	}
	olts, err := f.OltProfiles()
	if err != nil {
		return nil, err
	}
	r, err := New(routers, olts)
	if err != nil {
		return nil, err
	}
	r.radius = f.Radius
	return r, nil
}

// Router resolves a router profile. An empty id selects the default.
func (r *Registry) Router(id string) (types.RouterProfile, error) {
	if id == "" {
		id = r.defaultRouter
		if id == "" {
			return types.RouterProfile{}, &types.ProfileNotFoundError{Kind: "router"}
		}
	}
	p, ok := r.routers[id]
	if !ok {
		return types.RouterProfile{}, &types.ProfileNotFoundError{Kind: "router", ID: id}
	}
	return p, nil
}

// DefaultRouterID returns the id used when callers omit one
func (r *Registry) DefaultRouterID() string {
	return r.defaultRouter
}

// Olt resolves an OLT profile
func (r *Registry) Olt(id string) (types.OltProfile, error) {
	p, ok := r.olts[id]
	if !ok {
		return types.OltProfile{}, &types.ProfileNotFoundError{Kind: "olt", ID: id}
	}
	return p, nil
}

// Routers lists router profiles sorted by id
func (r *Registry) Routers() []types.RouterProfile {
	out := make([]types.RouterProfile, 0, len(r.routers))
	for _, p := range r.routers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Olts lists OLT profiles sorted by id
func (r *Registry) Olts() []types.OltProfile {
	out := make([]types.OltProfile, 0, len(r.olts))
	for _, p := range r.olts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Radius returns the CoA defaults
func (r *Registry) Radius() config.RadiusEntry {
	return r.radius
}
