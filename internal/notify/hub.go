package notify

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/brand-sync/internal/metrics"
)

// Conn is one live connection. Send must not block; an error means the
// connection is gone.
type Conn interface {
	Send(msg Message) error
	Close() error
}

// Notifier is the broadcast side of the hub used by the sync engine
type Notifier interface {
	BroadcastToAll(msg Message) int
	BroadcastToSubscribers(resourceType string, resourceID ResourceID, msg Message, exclude string) int
}

// Hub tracks one connection per identity and the subscriptions each holds.
// Subscriptions are indexed both ways so a disconnect can drop them all
// without scanning every resource.
type Hub struct {
	mu            sync.RWMutex
	connections   map[string]Conn
	subscribers   map[string]map[string]struct{} // resource key -> identities
	subscriptions map[string]map[string]struct{} // identity -> resource keys
	logger        *logrus.Logger
}

var _ Notifier = (*Hub)(nil)

// NewHub creates an empty hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		connections:   make(map[string]Conn),
		subscribers:   make(map[string]map[string]struct{}),
		subscriptions: make(map[string]map[string]struct{}),
		logger:        logger,
	}
}

func resourceKey(resourceType string, resourceID ResourceID) string {
	return resourceType + ":" + string(resourceID)
}

// RegisterConnection tracks conn for identity, replacing and closing any
// previous connection along with its subscriptions, then acknowledges.
func (h *Hub) RegisterConnection(conn Conn, identity string) {
	h.mu.Lock()
	old, existed := h.connections[identity]
	if existed {
		h.dropSubscriptionsLocked(identity)
	}
	h.connections[identity] = conn
	metrics.WebSocketConnections.Set(float64(len(h.connections)))
	h.mu.Unlock()

	if existed && old != conn {
		_ = old.Close()
		h.logger.WithField("user_id", identity).Info("Replaced existing websocket connection")
	}

	h.SendTo(identity, Connected(identity))
}

// UnregisterConnection removes the identity's connection and every
// subscription it held
func (h *Hub) UnregisterConnection(identity string) {
	h.mu.Lock()
	conn, ok := h.connections[identity]
	if ok {
		delete(h.connections, identity)
		h.dropSubscriptionsLocked(identity)
		metrics.WebSocketConnections.Set(float64(len(h.connections)))
	}
	h.mu.Unlock()

	if ok {
		_ = conn.Close()
		h.logger.WithField("user_id", identity).Debug("Websocket connection unregistered")
	}
}

// Release unregisters identity only if conn is still its tracked connection.
// A replaced connection calls this on its way out without disturbing the new one.
func (h *Hub) Release(identity string, conn Conn) {
	h.mu.RLock()
	current, ok := h.connections[identity]
	h.mu.RUnlock()
	if ok && current == conn {
		h.UnregisterConnection(identity)
	}
}

func (h *Hub) dropSubscriptionsLocked(identity string) {
	for key := range h.subscriptions[identity] {
		if ids, ok := h.subscribers[key]; ok {
			delete(ids, identity)
			if len(ids) == 0 {
				delete(h.subscribers, key)
			}
		}
	}
	delete(h.subscriptions, identity)
}

// SendTo delivers msg to one identity. A failed send unregisters it.
func (h *Hub) SendTo(identity string, msg Message) bool {
	h.mu.RLock()
	conn, ok := h.connections[identity]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	if err := conn.Send(msg); err != nil {
		h.logger.WithFields(logrus.Fields{"user_id": identity, "type": msg.Type}).Debugf("Send failed, dropping connection: %v", err)
		h.Release(identity, conn)
		return false
	}
	metrics.WebSocketMessagesSent.WithLabelValues(string(msg.Type)).Inc()
	return true
}

// Subscribe records interest of identity in a resource. Unknown resource types
// are answered with an error message and leave the indices untouched.
func (h *Hub) Subscribe(identity, resourceType string, resourceID ResourceID) bool {
	if !ValidResourceType(resourceType) {
		h.SendTo(identity, Error("invalid resource type: "+resourceType))
		return false
	}
	if resourceID == "" {
		h.SendTo(identity, Error("resource_id is required"))
		return false
	}

	key := resourceKey(resourceType, resourceID)
	h.mu.Lock()
	if _, ok := h.connections[identity]; !ok {
		h.mu.Unlock()
		return false
	}
	if h.subscribers[key] == nil {
		h.subscribers[key] = make(map[string]struct{})
	}
	h.subscribers[key][identity] = struct{}{}
	if h.subscriptions[identity] == nil {
		h.subscriptions[identity] = make(map[string]struct{})
	}
	h.subscriptions[identity][key] = struct{}{}
	h.mu.Unlock()

	h.SendTo(identity, Subscribed(resourceType, resourceID))
	return true
}

// Unsubscribe removes one subscription and prunes empty index entries.
// Unknown resource types are answered with an error message.
func (h *Hub) Unsubscribe(identity, resourceType string, resourceID ResourceID) bool {
	if !ValidResourceType(resourceType) {
		h.SendTo(identity, Error("invalid resource type: "+resourceType))
		return false
	}
	key := resourceKey(resourceType, resourceID)
	h.mu.Lock()
	if ids, ok := h.subscribers[key]; ok {
		delete(ids, identity)
		if len(ids) == 0 {
			delete(h.subscribers, key)
		}
	}
	if keys, ok := h.subscriptions[identity]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(h.subscriptions, identity)
		}
	}
	h.mu.Unlock()

	h.SendTo(identity, Unsubscribed(resourceType, resourceID))
	return true
}

// BroadcastToSubscribers sends msg to every subscriber of the resource except
// exclude, returning how many deliveries succeeded
func (h *Hub) BroadcastToSubscribers(resourceType string, resourceID ResourceID, msg Message, exclude string) int {
	h.mu.RLock()
	targets := make([]string, 0, len(h.subscribers[resourceKey(resourceType, resourceID)]))
	for identity := range h.subscribers[resourceKey(resourceType, resourceID)] {
		if identity != exclude {
			targets = append(targets, identity)
		}
	}
	h.mu.RUnlock()

	return h.sendAll(targets, msg)
}

// BroadcastToAll sends msg to every connected identity
func (h *Hub) BroadcastToAll(msg Message) int {
	h.mu.RLock()
	targets := make([]string, 0, len(h.connections))
	for identity := range h.connections {
		targets = append(targets, identity)
	}
	h.mu.RUnlock()

	return h.sendAll(targets, msg)
}

func (h *Hub) sendAll(targets []string, msg Message) int {
	sort.Strings(targets)
	delivered := 0
	for _, identity := range targets {
		if h.SendTo(identity, msg) {
			delivered++
		}
	}
	return delivered
}

// ConnectionCount returns the number of tracked connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Subscribers returns the identities subscribed to a resource, sorted
func (h *Hub) Subscribers(resourceType string, resourceID ResourceID) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.subscribers[resourceKey(resourceType, resourceID)]))
	for id := range h.subscribers[resourceKey(resourceType, resourceID)] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SubscriptionCount returns how many resources identity is subscribed to
func (h *Hub) SubscriptionCount(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[identity])
}

// IndexSize returns the number of resource keys with at least one subscriber
func (h *Hub) IndexSize() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every connection
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.connections))
	for id := range h.connections {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.UnregisterConnection(id)
	}
}
