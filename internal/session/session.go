// Package session holds the user's bearer token and tells interested parties
// when it appears, disappears or expires.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Event describes an auth state change.
type Event int

const (
	SignedIn Event = iota + 1
	SignedOut
	Expired
)

func (e Event) String() string {
	switch e {
	case SignedIn:
		return "signed-in"
	case SignedOut:
		return "signed-out"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ErrMalformedToken is returned by DecodeExpiry for tokens that are not JWTs.
var ErrMalformedToken = errors.New("malformed session token")

// DecodeExpiry reads the exp claim of a JWT without verifying its signature.
// A token without exp yields the zero time and no error.
func DecodeExpiry(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// Session is the current credential. It is safe for concurrent use; listeners
// run synchronously on the goroutine that caused the change, outside the lock.
type Session struct {
	mu        sync.Mutex
	token     *oauth2.Token
	malformed bool
	listeners map[int]func(Event)
	nextID    int
}

// New returns a session holding raw, or an empty session when raw is blank.
// No event is emitted.
func New(raw string) *Session {
	s := &Session{listeners: make(map[int]func(Event))}
	s.token, s.malformed = buildToken(raw)
	return s
}

func buildToken(raw string) (*oauth2.Token, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	exp, err := DecodeExpiry(raw)
	if err != nil {
		return tok, true
	}
	tok.Expiry = exp
	return tok, false
}

// Subscribe registers fn for auth events and returns a function that removes
// it.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Active reports whether a token is held. It does not check expiry.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil
}

// Token returns a copy of the held token, or nil.
func (s *Session) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil
	}
	cp := *s.token
	return &cp
}

// Set replaces the token with raw and emits SignedIn. A blank raw signs out.
// Setting the token already held is a no-op.
func (s *Session) Set(raw string) {
	tok, malformed := buildToken(raw)
	if tok == nil {
		s.Clear(SignedOut)
		return
	}

	s.mu.Lock()
	if s.token != nil && s.token.AccessToken == tok.AccessToken {
		s.mu.Unlock()
		return
	}
	s.token, s.malformed = tok, malformed
	s.mu.Unlock()

	s.emit(SignedIn)
}

// Clear drops the token and emits reason. Clearing an empty session emits
// nothing.
func (s *Session) Clear(reason Event) {
	s.mu.Lock()
	if s.token == nil {
		s.mu.Unlock()
		return
	}
	s.token, s.malformed = nil, false
	s.mu.Unlock()

	s.emit(reason)
}

// Validate returns the token if it is usable at now. An expired or
// undecodable token is cleared with Expired and the second result is true.
// A token without exp never expires.
func (s *Session) Validate(now time.Time) (*oauth2.Token, bool) {
	s.mu.Lock()
	tok, malformed := s.token, s.malformed
	s.mu.Unlock()

	if tok == nil {
		return nil, false
	}
	if malformed || (!tok.Expiry.IsZero() && !now.Before(tok.Expiry)) {
		s.Clear(Expired)
		return nil, true
	}
	cp := *tok
	return &cp, false
}

func (s *Session) emit(e Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
