// Package websocket delivers real-time notifications to connected users. The
// Registry binds each user to at most one live channel; the Handler serves
// the WebSocket transport that creates those bindings.
package websocket

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ehr/carenotify/internal/platform/telemetry"
)

// Channel is one open push connection.
type Channel interface {
	ID() string
	IsOpen() bool
	Send(data []byte) error
}

// Registry maps a user id to its current live channel. A later Register for
// the same user replaces the earlier binding.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

func NewRegistry(logger zerolog.Logger, metrics *telemetry.Metrics) *Registry {
	return &Registry{
		channels: make(map[string]Channel),
		logger:   logger.With().Str("component", "registry").Logger(),
		metrics:  metrics,
	}
}

// Register binds ch to userID and returns the channel it replaced, if any.
func (r *Registry) Register(userID string, ch Channel) Channel {
	r.mu.Lock()
	prev := r.channels[userID]
	r.channels[userID] = ch
	n := len(r.channels)
	r.mu.Unlock()

	r.metrics.SetLiveChannels(n)
	if prev != nil && prev != ch {
		r.logger.Debug().Str("user_id", userID).Str("replaced", prev.ID()).Str("channel", ch.ID()).Msg("live channel replaced")
		return prev
	}
	return nil
}

// Unregister removes the user's binding, if any.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	delete(r.channels, userID)
	n := len(r.channels)
	r.mu.Unlock()
	r.metrics.SetLiveChannels(n)
}

// Release removes the user's binding only if it is still ch, so a replaced
// channel closing does not evict its successor. It reports whether a binding
// was removed.
func (r *Registry) Release(userID string, ch Channel) bool {
	r.mu.Lock()
	cur, ok := r.channels[userID]
	removed := ok && cur == ch
	if removed {
		delete(r.channels, userID)
	}
	n := len(r.channels)
	r.mu.Unlock()

	if removed {
		r.metrics.SetLiveChannels(n)
	}
	return removed
}

// Push sends msg as JSON to the user's channel when one is bound and open.
// Otherwise the message is dropped. The result reports delivery to the
// channel's send buffer.
func (r *Registry) Push(userID string, msg interface{}) bool {
	r.mu.RLock()
	ch := r.channels[userID]
	r.mu.RUnlock()
	if ch == nil || !ch.IsOpen() {
		return false
	}

	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to marshal push message")
		return false
	}
	if err := ch.Send(data); err != nil {
		r.logger.Debug().Err(err).Str("user_id", userID).Msg("push dropped")
		return false
	}
	return true
}

func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[userID]
	return ok && ch.IsOpen()
}

// Count returns the number of bound users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
