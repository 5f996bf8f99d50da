package engine

import (
	"github.com/rs/zerolog"

	"github.com/evonet/llmq/model/llmq"
)

// Message is a network payload annotated with its origin.
type Message struct {
	OriginID llmq.Identifier
	Payload  interface{}
}

// MessageStore is the interface to abstract how messages are buffered in
// memory before being handled by the engine.
type MessageStore interface {
	Put(*Message) bool
	Get() (*Message, bool)
}

// Pattern associates a message matcher with the store receiving the matched
// messages.
type Pattern struct {
	// Match is a function to match a message to this pattern, typically by
	// payload type.
	Match MatchFunc
	// Store is an abstract message store where we will store the message
	// upon receipt.
	Store MessageStore
}

type MatchFunc func(*Message) bool

// MessageHandler routes incoming messages into per-type stores and notifies
// the consumer. Process never blocks; messages that overflow their store are
// dropped with a log entry.
type MessageHandler struct {
	log      zerolog.Logger
	notifier Notifier
	patterns []Pattern
}

func NewMessageHandler(log zerolog.Logger, notifier Notifier, patterns ...Pattern) *MessageHandler {
	return &MessageHandler{
		log:      log.With().Str("component", "message_handler").Logger(),
		notifier: notifier,
		patterns: patterns,
	}
}

// Process routes the payload to the first matching pattern's store. It
// returns IncompatibleInputTypeError if no pattern matches.
func (e *MessageHandler) Process(originID llmq.Identifier, payload interface{}) error {
	msg := &Message{
		OriginID: originID,
		Payload:  payload,
	}

	for _, pattern := range e.patterns {
		if pattern.Match(msg) {
			ok := pattern.Store.Put(msg)
			if !ok {
				e.log.Warn().
					Hex("origin_id", originID[:]).
					Msg("failed to store message - discarding")
				return nil
			}
			e.notifier.Notify()

			// message can only be matched by one pattern, and processed by
			// one handler
			return nil
		}
	}

	return IncompatibleInputTypeError
}

// GetNotifier returns the channel to wait on for new stored messages.
func (e *MessageHandler) GetNotifier() <-chan struct{} {
	return e.notifier.Channel()
}
