// Package quorumdata implements the network engine for the quorum data
// request/response exchange. It buffers incoming messages, resolves the
// sending peer and hands the messages to the quorum manager; outbound
// messages from the manager go out through the engine's conduit.
package quorumdata

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/evonet/llmq/engine"
	"github.com/evonet/llmq/model/llmq"
	"github.com/evonet/llmq/model/messages"
	"github.com/evonet/llmq/module"
	"github.com/evonet/llmq/module/quorum"
	"github.com/evonet/llmq/network"
)

// defaultQueueCapacity bounds each inbound message queue.
const defaultQueueCapacity = 500

type Engine struct {
	unit    *engine.Unit
	log     zerolog.Logger
	metrics module.EngineMetrics

	manager     *quorum.Manager
	connections network.ConnectionManager
	con         network.Conduit

	messageHandler   *engine.MessageHandler
	pendingRequests  *engine.FifoMessageStore
	pendingResponses *engine.FifoMessageStore
}

var _ network.Engine = (*Engine)(nil)
var _ quorum.DataSender = (*Engine)(nil)

func New(
	log zerolog.Logger,
	metrics module.EngineMetrics,
	net network.Network,
	connections network.ConnectionManager,
	manager *quorum.Manager,
) (*Engine, error) {

	pendingRequests, err := engine.NewFifoMessageStore(defaultQueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("could not create request queue: %w", err)
	}
	pendingResponses, err := engine.NewFifoMessageStore(defaultQueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("could not create response queue: %w", err)
	}

	e := &Engine{
		unit:             engine.NewUnit(),
		log:              log.With().Str("engine", "quorum_data").Logger(),
		metrics:          metrics,
		manager:          manager,
		connections:      connections,
		pendingRequests:  pendingRequests,
		pendingResponses: pendingResponses,
	}

	e.messageHandler = engine.NewMessageHandler(
		e.log,
		engine.NewNotifier(),
		engine.Pattern{
			Match: func(msg *engine.Message) bool {
				_, ok := msg.Payload.(*messages.QuorumDataRequest)
				if ok {
					e.metrics.MessageReceived("quorum_data", "QuorumDataRequest")
				}
				return ok
			},
			Store: pendingRequests,
		},
		engine.Pattern{
			Match: func(msg *engine.Message) bool {
				_, ok := msg.Payload.(*messages.QuorumDataResponse)
				if ok {
					e.metrics.MessageReceived("quorum_data", "QuorumDataResponse")
				}
				return ok
			},
			Store: pendingResponses,
		},
	)

	con, err := net.Register(network.QuorumDataChannel, e)
	if err != nil {
		return nil, fmt.Errorf("could not register engine: %w", err)
	}
	e.con = con

	manager.SetSender(e)

	return e, nil
}

// Ready starts the message processing loop.
func (e *Engine) Ready() <-chan struct{} {
	return e.unit.Ready(func() {
		e.unit.Launch(e.loop)
	})
}

// Done stops the engine.
func (e *Engine) Done() <-chan struct{} {
	return e.unit.Done()
}

// Submit processes the given event in a non-blocking manner; processing
// errors are logged internally.
func (e *Engine) Submit(channel network.Channel, originID llmq.Identifier, event interface{}) {
	err := e.Process(channel, originID, event)
	if err != nil {
		e.log.Error().Err(err).Msg("could not process submitted event")
	}
}

// Process enqueues the given event for handling by the processing loop.
func (e *Engine) Process(channel network.Channel, originID llmq.Identifier, event interface{}) error {
	err := e.messageHandler.Process(originID, event)
	if err != nil {
		return fmt.Errorf("unexpected event type (%T) on channel %s: %w", event, channel, err)
	}
	return nil
}

// SendRequest sends a quorum data request to the given peer.
func (e *Engine) SendRequest(targetID llmq.Identifier, request *messages.QuorumDataRequest) error {
	err := e.con.Unicast(request, targetID)
	if err != nil {
		return fmt.Errorf("could not send data request: %w", err)
	}
	e.metrics.MessageSent("quorum_data", "QuorumDataRequest")
	return nil
}

// SendResponse sends a quorum data response to the given peer.
func (e *Engine) SendResponse(targetID llmq.Identifier, response *messages.QuorumDataResponse) error {
	err := e.con.Unicast(response, targetID)
	if err != nil {
		return fmt.Errorf("could not send data response: %w", err)
	}
	e.metrics.MessageSent("quorum_data", "QuorumDataResponse")
	return nil
}

// loop waits for queued messages and drains the queues.
func (e *Engine) loop() {
	notifier := e.messageHandler.GetNotifier()
	for {
		select {
		case <-e.unit.Quit():
			return
		case <-notifier:
			e.processAvailableMessages()
		}
	}
}

// processAvailableMessages drains both queues, responses first so that an
// answer arriving while a burst of requests queues up is absorbed promptly.
func (e *Engine) processAvailableMessages() {
	for {
		select {
		case <-e.unit.Quit():
			return
		default:
		}

		if msg, ok := e.pendingResponses.Get(); ok {
			e.onResponse(msg.OriginID, msg.Payload.(*messages.QuorumDataResponse))
			continue
		}
		if msg, ok := e.pendingRequests.Get(); ok {
			e.onRequest(msg.OriginID, msg.Payload.(*messages.QuorumDataRequest))
			continue
		}

		return
	}
}

func (e *Engine) onRequest(originID llmq.Identifier, request *messages.QuorumDataRequest) {
	peer, ok := e.connections.PeerInfo(originID)
	if !ok {
		e.log.Debug().Hex("origin_id", originID[:]).Msg("data request from unknown peer, dropping")
		return
	}
	e.manager.HandleDataRequest(peer, request)
	e.metrics.MessageHandled("quorum_data", "QuorumDataRequest")
}

func (e *Engine) onResponse(originID llmq.Identifier, response *messages.QuorumDataResponse) {
	peer, ok := e.connections.PeerInfo(originID)
	if !ok {
		e.log.Debug().Hex("origin_id", originID[:]).Msg("data response from unknown peer, dropping")
		return
	}
	e.manager.HandleDataResponse(peer, response)
	e.metrics.MessageHandled("quorum_data", "QuorumDataResponse")
}
