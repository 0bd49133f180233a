// Package chat connects tenants' conversation engines to chat platforms
// (Slack, Discord, a local console). Each tenant gets one Agent that owns
// its adapter and handles inbound messages strictly in arrival order.
package chat

import (
	"context"
	"errors"
	"time"
)

// ErrCredentialsInvalidated is wrapped by adapters when the platform rejects
// the tenant's credentials. The Supervisor recreates the agent on it.
var ErrCredentialsInvalidated = errors.New("chat: credentials invalidated")

// Adapter is the interface that platform-specific implementations must satisfy.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a customer message received from the platform.
// Non-text payloads arrive with an empty Text.
type InboundMessage struct {
	Platform  string    // e.g. "slack", "discord"
	Sender    string    // customer identity, stable per platform conversation
	UserName  string    // human-readable name, informational only
	Text      string    // plain message text
	Timestamp time.Time // when the message was sent
}

// OutboundMessage represents a reply to a customer.
type OutboundMessage struct {
	To   string // identity from InboundMessage.Sender
	Text string
}

// Pairer is an optional interface for adapters that need an operator to
// complete a pairing step before they can receive messages.
type Pairer interface {
	PairingPending() bool
}

// Exiter is an optional interface exposing why an adapter closed its
// inbound channel. A nil Err means a normal shutdown.
type Exiter interface {
	Err() error
}
