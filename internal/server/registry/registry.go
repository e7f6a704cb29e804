// Package registry tracks live client connections and routes outbound
// frames to them. It is transport-agnostic: anything implementing Channel
// can be registered.
package registry

import (
	"errors"
	"strings"
	"sync"

	"github.com/dmaft/dmaft-server/internal/logging"
)

// ErrClosed is returned by a Channel whose peer is gone for good. The
// registry treats it as terminal and drops the channel; any other send
// error is considered transient and leaves the registration intact.
var ErrClosed = errors.New("channel closed")

// Channel is one live client connection.
type Channel interface {
	Send(message []byte) error
}

// Registry maps channels to the user authenticated on them. A channel with
// an empty user ID is connected but not yet authenticated; one user may
// hold several channels (multiple devices).
type Registry struct {
	mu       sync.RWMutex
	channels map[Channel]string
	logger   logging.Logger
}

// New creates an empty registry.
func New(logger logging.Logger) *Registry {
	return &Registry{
		channels: make(map[Channel]string),
		logger:   logger.With("module", "registry"),
	}
}

// Register adds a channel without a user binding.
func (r *Registry) Register(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[ch]; !ok {
		r.channels[ch] = ""
	}
}

// Bind associates the channel with an authenticated user, registering it
// first if needed.
func (r *Registry) Bind(ch Channel, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch] = userID
}

// Unregister drops the channel. Unknown channels are ignored.
func (r *Registry) Unregister(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, ch)
}

// UserFor returns the user bound to the channel, empty if unauthenticated
// or unknown.
func (r *Registry) UserFor(ch Channel) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channels[ch]
}

// IsConnected reports whether at least one channel is bound to the user.
func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, bound := range r.channels {
		if bound != "" && strings.EqualFold(bound, userID) {
			return true
		}
	}
	return false
}

// SendToChannel delivers a frame to one channel. A terminal error removes
// the registration.
func (r *Registry) SendToChannel(ch Channel, message []byte) error {
	err := ch.Send(message)
	if errors.Is(err, ErrClosed) {
		r.Unregister(ch)
	}
	return err
}

// SendToUser delivers a frame to every channel bound to the user and
// succeeds if at least one delivery went through.
func (r *Registry) SendToUser(userID string, message []byte) error {
	delivered := false
	for _, ch := range r.channelsFor(userID) {
		if err := r.SendToChannel(ch, message); err == nil {
			delivered = true
		}
	}
	if !delivered {
		return ErrClosed
	}
	return nil
}

// Broadcast delivers a frame to every listed user and returns the subset
// that could not be reached on any channel. Duplicate IDs are collapsed.
func (r *Registry) Broadcast(userIDs []string, message []byte) []string {
	var unreached []string
	seen := make(map[string]bool, len(userIDs))
	for _, userID := range userIDs {
		key := strings.ToUpper(userID)
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := r.SendToUser(userID, message); err != nil {
			unreached = append(unreached, userID)
		}
	}
	return unreached
}

// channelsFor snapshots the matching channels under the read lock so the
// actual sends happen without holding it.
func (r *Registry) channelsFor(userID string) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Channel
	for ch, bound := range r.channels {
		if bound != "" && strings.EqualFold(bound, userID) {
			result = append(result, ch)
		}
	}
	return result
}
