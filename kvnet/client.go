// Package kvnet composes a [transport.Simulator] and a [kvstore.Service]
// into the single call boundary a [github.com/joeycumines/distkv/clerk.Clerk]
// depends on. It is the only place in the module where the unreliable
// transport (component C) and the store (component D) are wired together.
package kvnet

import (
	"context"

	"github.com/joeycumines/distkv/kvproto"
	"github.com/joeycumines/distkv/kvstore"
	"github.com/joeycumines/distkv/transport"
)

// Client dispatches GET/PUT calls to a [kvstore.Service] through a
// [transport.Simulator]. It satisfies the narrow KVClient interface the
// clerk package depends on.
type Client struct {
	sim *transport.Simulator
	svc *kvstore.Service
}

// New constructs a Client wrapping svc with sim's drop simulation. sim may
// be [transport.NewSimulator]([transport.Config]{}) for a perfectly
// reliable transport.
func New(sim *transport.Simulator, svc *kvstore.Service) *Client {
	if sim == nil {
		sim = transport.NewSimulator(transport.Config{})
	}
	return &Client{sim: sim, svc: svc}
}

// Get dispatches a GET through the simulated transport.
func (c *Client) Get(ctx context.Context, key []byte) (kvproto.GetReply, error) {
	return transport.Call(ctx, c.sim, key, c.svc.Get)
}

// Put dispatches a PUT through the simulated transport.
func (c *Client) Put(ctx context.Context, req kvproto.PutRequest) (kvproto.PutReply, error) {
	return transport.Call(ctx, c.sim, req, c.svc.Put)
}
