// Package sequence hands out monotonic request tokens so that a response
// arriving after a newer request was issued can be recognized and dropped.
package sequence

import (
	"errors"
	"sync/atomic"
)

// ErrSuperseded is returned for work whose token is no longer the latest.
var ErrSuperseded = errors.New("superseded by a newer request")

// Token identifies one issued request.
type Token uint64

// Guard issues tokens. The zero value is ready to use and safe for concurrent
// use.
type Guard struct {
	latest atomic.Uint64
}

// Next issues a new token, invalidating every earlier one.
func (g *Guard) Next() Token {
	return Token(g.latest.Add(1))
}

// IsCurrent reports whether tok is the most recently issued token.
func (g *Guard) IsCurrent(tok Token) bool {
	return g.latest.Load() == uint64(tok)
}

// Check returns ErrSuperseded when tok is stale.
func (g *Guard) Check(tok Token) error {
	if !g.IsCurrent(tok) {
		return ErrSuperseded
	}
	return nil
}
