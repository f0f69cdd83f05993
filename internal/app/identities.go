package app

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bubble-chat/server/internal/domain"
	"github.com/bubble-chat/server/internal/store"
	"github.com/bubble-chat/server/internal/validate"
)

// Identities maps reconnect secrets to durable pseudonymous identities.
// A connection presenting a known secret gets the same identity back, which
// is the whole reconnection story: room membership is keyed by identity, so
// nothing else needs restoring.
//
// The map is never pruned; identities live for the life of the process.
type Identities struct {
	mu       sync.RWMutex
	bySecret map[string]*domain.Identity
	byID     map[domain.IdentityID]*domain.Identity

	records store.Records
	collab  Collaborators
}

func NewIdentities(records store.Records, collab Collaborators) *Identities {
	return &Identities{
		bySecret: make(map[string]*domain.Identity),
		byID:     make(map[domain.IdentityID]*domain.Identity),
		records:  records,
		collab:   collab,
	}
}

// ResolveOrCreate returns the identity bound to secret, minting one if the
// secret is unknown or empty. Secrets that are not UUID-shaped are never
// bound; the client gets a fresh identity with a fresh secret. Never fails.
func (r *Identities) ResolveOrCreate(secret string) *domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	if secret != "" && !validate.ClaimToken(secret) {
		log.Warn().Str("module", "app.identities").Msg("malformed reconnect secret rejected")
		secret = ""
	}
	if secret != "" {
		if identity, ok := r.bySecret[secret]; ok {
			return identity
		}
	}

	if secret == "" {
		secret = uuid.NewString()
	}
	identity := &domain.Identity{
		ID:     domain.IdentityID(uuid.NewString()),
		Secret: secret,
	}
	r.bySecret[secret] = identity
	r.byID[identity.ID] = identity
	log.Info().Str("module", "app.identities").Str("identity", string(identity.ID)).Msg("minted identity")

	_ = r.collab.Run("save identity", func() error {
		return r.records.SaveIdentity(*identity)
	})
	return identity
}

// Get returns a known identity by id.
func (r *Identities) Get(id domain.IdentityID) (*domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.byID[id]
	return identity, ok
}

// SetName renames an identity; the new name travels with future broadcasts.
func (r *Identities) SetName(id domain.IdentityID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if identity, ok := r.byID[id]; ok {
		identity.Name = name
	}
}
