// Package challenge hands out one-time nonce/realm pairs that a holder must
// sign into a presentation before a relying party accepts it.
package challenge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultTTL bounds how long an issued challenge can be answered.
const DefaultTTL = 2 * time.Minute

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeMismatch = errors.New("challenge mismatch")
	ErrInvalidRequest    = errors.New("session and realm are required")
)

// Challenge is what a relying party expects back in a presentation proof.
type Challenge struct {
	Nonce    string    `json:"nonce"`
	Realm    string    `json:"realm"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Pool keeps at most one outstanding challenge per session.
type Pool struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]Challenge
	now      func() time.Time
}

// NewPool creates a pool whose challenges expire after ttl, DefaultTTL when
// ttl is not positive.
func NewPool(ttl time.Duration) *Pool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Pool{
		ttl:      ttl,
		sessions: make(map[string]Challenge),
		now:      time.Now,
	}
}

// Issue creates a fresh challenge for session, replacing any previous one.
func (p *Pool) Issue(session, realm string) (Challenge, error) {
	if session == "" || realm == "" {
		return Challenge{}, ErrInvalidRequest
	}

	c := Challenge{
		Nonce:    uuid.NewString(),
		Realm:    realm,
		IssuedAt: p.now(),
	}

	p.mu.Lock()
	p.sessions[session] = c
	p.mu.Unlock()
	return c, nil
}

// Check accepts nonce and realm if they answer the session's outstanding
// challenge. A challenge is consumed on success and on expiry; a mismatch
// leaves it in place.
func (p *Pool) Check(session, nonce, realm string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.sessions[session]
	if !ok {
		return ErrSessionNotFound
	}
	if p.expired(c) {
		delete(p.sessions, session)
		return ErrChallengeExpired
	}
	if c.Nonce != nonce || c.Realm != realm {
		return ErrChallengeMismatch
	}

	delete(p.sessions, session)
	return nil
}

// Len returns the number of outstanding challenges, expired or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Sweep drops expired challenges and returns how many were dropped.
func (p *Pool) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for session, c := range p.sessions {
		if p.expired(c) {
			delete(p.sessions, session)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (p *Pool) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = p.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := p.Sweep(); n > 0 {
				log.WithField("expired", n).Debug("swept challenges")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) expired(c Challenge) bool {
	return p.now().Sub(c.IssuedAt) > p.ttl
}
