// Package session holds the one-time credential store that brokers the
// handoff between the HTTP session endpoint and the conversation socket.
package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"sync"
	"time"

	"github.com/pathwise-app/conversation-service/pkg/gateway/apierror"
)

const (
	MinTTL = 30 * time.Second
	MaxTTL = 10 * time.Minute

	sessionIDBytes    = 16
	sessionTokenBytes = 32
)

// Credential is the single-use pair handed to a client after a successful
// session request. The token is required alongside the id on redemption and
// is not derivable from it.
type Credential struct {
	SessionID    string
	SessionToken string
}

type record struct {
	ownerID   string
	token     string
	expiresAt time.Time
}

// Store is an in-memory registry of pending credentials. Every credential
// is redeemable at most once: the first Redeem call for a session id removes
// the record regardless of outcome. All mutations run under one mutex.
type Store struct {
	mu      sync.Mutex
	pending map[string]record
	ttl     time.Duration

	now func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl < MinTTL {
		ttl = MinTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}
	return &Store{
		pending: make(map[string]record),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Issue mints a credential bound to ownerID. It also sweeps expired entries
// that were never redeemed, so abandoned handshakes cannot grow the map
// without bound.
func (s *Store) Issue(ownerID string) Credential {
	cred := Credential{
		SessionID:    opaque(sessionIDBytes),
		SessionToken: opaque(sessionTokenBytes),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, rec := range s.pending {
		if now.After(rec.expiresAt) {
			delete(s.pending, id)
		}
	}

	s.pending[cred.SessionID] = record{
		ownerID:   ownerID,
		token:     cred.SessionToken,
		expiresAt: now.Add(s.ttl),
	}
	return cred
}

// Redeem atomically consumes the credential for sessionID and returns the
// owner it was minted for. An unknown id, a token mismatch, and an elapsed
// TTL all fail identically so a caller cannot distinguish which check
// failed; in every case the record is gone afterwards.
func (s *Store) Redeem(sessionID, sessionToken string) (string, error) {
	s.mu.Lock()
	rec, ok := s.pending[sessionID]
	if ok {
		delete(s.pending, sessionID)
	}
	now := s.now()
	s.mu.Unlock()

	if !ok {
		return "", errInvalidSession()
	}
	if subtle.ConstantTimeCompare([]byte(rec.token), []byte(sessionToken)) != 1 {
		return "", errInvalidSession()
	}
	if now.After(rec.expiresAt) {
		return "", errInvalidSession()
	}
	return rec.ownerID, nil
}

// Len reports the number of pending credentials.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func errInvalidSession() error {
	return apierror.E(apierror.KindInvalidSession, "invalid or expired session")
}

func opaque(nbytes int) string {
	b := make([]byte, nbytes)
	// crypto/rand.Read is documented to never fail on supported platforms.
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
