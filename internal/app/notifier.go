package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bubble-chat/server/internal/domain"
	"github.com/bubble-chat/server/internal/push"
)

// Notifier tracks which identities follow a room's events and pushes to the
// subset that is offline with a registered device token. Push is strictly a
// fallback channel; live connections get the in-band event instead.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[domain.RoomID]map[domain.IdentityID]struct{}
	tokens map[domain.IdentityID]string

	registry *Registry
	gateway  push.Gateway
	collab   Collaborators
}

func NewNotifier(registry *Registry, gateway push.Gateway, collab Collaborators) *Notifier {
	return &Notifier{
		subs:     make(map[domain.RoomID]map[domain.IdentityID]struct{}),
		tokens:   make(map[domain.IdentityID]string),
		registry: registry,
		gateway:  gateway,
		collab:   collab,
	}
}

func (n *Notifier) Subscribe(roomID domain.RoomID, id domain.IdentityID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[roomID] == nil {
		n.subs[roomID] = make(map[domain.IdentityID]struct{})
	}
	n.subs[roomID][id] = struct{}{}
}

func (n *Notifier) Unsubscribe(roomID domain.RoomID, id domain.IdentityID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if subs, ok := n.subs[roomID]; ok {
		delete(subs, id)
	}
}

// RegisterToken stores a device token for an identity. Tokens survive
// disconnects.
func (n *Notifier) RegisterToken(id domain.IdentityID, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens[id] = token
}

// NotifyRoom pushes title/body to every subscriber that is offline and has a
// token. Delivery failures never affect the triggering operation.
func (n *Notifier) NotifyRoom(ctx context.Context, roomID domain.RoomID, title, body string) []push.Receipt {
	n.mu.RLock()
	var targets []string
	for id := range n.subs[roomID] {
		if n.registry.IsLive(id) {
			continue
		}
		if token, ok := n.tokens[id]; ok {
			targets = append(targets, token)
		}
	}
	n.mu.RUnlock()

	receipts := make([]push.Receipt, 0, len(targets))
	for _, token := range targets {
		var receipt push.Receipt
		_ = n.collab.Run("push", func() error {
			receipt = n.gateway.Send(ctx, token, title, body)
			return receipt.Err
		})
		receipts = append(receipts, receipt)
	}
	if len(receipts) > 0 {
		log.Info().Str("module", "app.notifier").Str("room", string(roomID)).Int("pushed", len(receipts)).Msg("notified offline subscribers")
	}
	return receipts
}
