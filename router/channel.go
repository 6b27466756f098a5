// Package router is the router command channel: serialized RouterOS
// commands per router with one reconnect-and-retry after a session desync.
package router

import (
	"context"

	"github.com/nanoncore/nano-ctlplane/drivers/routeros"
	"github.com/nanoncore/nano-ctlplane/types"
)

// Profiles resolves router profiles; an empty id selects the default router
type Profiles interface {
	Router(id string) (types.RouterProfile, error)
}

// Channel submits commands to routers through a Pool
type Channel struct {
	profiles Profiles
	pool     *Pool
}

// NewChannel creates a channel over an injected pool
func NewChannel(profiles Profiles, pool *Pool) *Channel {
	return &Channel{profiles: profiles, pool: pool}
}

// Submit runs path with params on the router and returns the reply rows.
// Commands to one router execute one at a time in submission order.
//
// A missing profile fails with types.ErrProfileNotFound (also matching
// types.ErrConnection); a profile without host or username fails with a
// types.ValidationError before any I/O.
func (c *Channel) Submit(ctx context.Context, routerID, path string, params ...string) ([]map[string]string, error) {
	p, err := c.Enqueue(ctx, routerID, path, params...)
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}

// Enqueue queues a command without waiting for it. Commands enqueued one
// after another from the same goroutine run in that order.
func (c *Channel) Enqueue(ctx context.Context, routerID, path string, params ...string) (*Pending, error) {
	profile, err := c.profiles.Router(routerID)
	if err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	sentence, err := routeros.Sentence(path, params...)
	if err != nil {
		return nil, err
	}
	return c.pool.enqueue(ctx, profile, sentence)
}

// Invalidate drops the router's cached connection
func (c *Channel) Invalidate(routerID string) error {
	profile, err := c.profiles.Router(routerID)
	if err != nil {
		return err
	}
	c.pool.Invalidate(profile.ID)
	return nil
}

// Close stops the underlying pool
func (c *Channel) Close() error {
	return c.pool.Close()
}
