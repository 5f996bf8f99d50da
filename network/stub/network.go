// Package stub provides an in-memory network for testing engines without a
// real transport. Messages submitted to a conduit are delivered synchronously
// to the target node's registered engine.
package stub

import (
	"fmt"
	"sync"

	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/network"
)

// Hub connects the stub networks of multiple test nodes.
type Hub struct {
	mu       sync.Mutex
	networks map[llmq.Identifier]*Network
}

func NewHub() *Hub {
	return &Hub{
		networks: make(map[llmq.Identifier]*Network),
	}
}

// AddNetwork creates the stub network of one node and attaches it to the hub.
func (h *Hub) AddNetwork(nodeID llmq.Identifier) *Network {
	h.mu.Lock()
	defer h.mu.Unlock()

	net := &Network{
		hub:     h,
		nodeID:  nodeID,
		engines: make(map[network.Channel]network.Engine),
	}
	h.networks[nodeID] = net
	return net
}

func (h *Hub) network(nodeID llmq.Identifier) (*Network, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	net, ok := h.networks[nodeID]
	return net, ok
}

// Network is the stub network of a single node.
type Network struct {
	hub    *Hub
	nodeID llmq.Identifier

	mu      sync.Mutex
	engines map[network.Channel]network.Engine
}

var _ network.Network = (*Network)(nil)

func (n *Network) Register(channel network.Channel, engine network.Engine) (network.Conduit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.engines[channel]; ok {
		return nil, fmt.Errorf("channel %s already registered", channel)
	}
	n.engines[channel] = engine

	return &conduit{net: n, channel: channel}, nil
}

func (n *Network) engine(channel network.Channel) (network.Engine, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	engine, ok := n.engines[channel]
	return engine, ok
}

type conduit struct {
	net     *Network
	channel network.Channel
}

var _ network.Conduit = (*conduit)(nil)

// Unicast delivers the event synchronously to the target node's engine.
func (c *conduit) Unicast(event interface{}, targetID llmq.Identifier) error {
	target, ok := c.net.hub.network(targetID)
	if !ok {
		return fmt.Errorf("node %v not on hub", targetID)
	}
	engine, ok := target.engine(c.channel)
	if !ok {
		return fmt.Errorf("node %v has no engine on channel %s", targetID, c.channel)
	}
	return engine.Process(c.channel, c.net.nodeID, event)
}
