package translate

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrSuperseded is returned to a caller whose request was overtaken by a newer
// one. Its result, success or failure, was not applied.
var ErrSuperseded = errors.New("translation superseded by a newer request")

// Translator is satisfied by *Client.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Latest orders a stream of translation requests so that only the most
// recently issued one reaches the display.
type Latest struct {
	next Translator

	mu         sync.Mutex
	generation uint64
}

// NewLatest wraps t with last-request-wins semantics.
func NewLatest(t Translator) *Latest {
	return &Latest{next: t}
}

// Translate issues a request and, if no newer request was issued meanwhile,
// hands the outcome to apply before returning it. apply runs under Latest's
// lock, so a stale response can never overwrite a newer one. Blank text is
// applied as an empty translation without a network call.
func (l *Latest) Translate(ctx context.Context, text, targetLang string, apply func(string, error)) (string, error) {
	l.mu.Lock()
	l.generation++
	ticket := l.generation
	l.mu.Unlock()

	var out string
	var err error
	if strings.TrimSpace(text) != "" {
		out, err = l.next.Translate(ctx, text, targetLang)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.generation != ticket {
		return "", ErrSuperseded
	}
	if apply != nil {
		apply(out, err)
	}
	return out, err
}

// Invalidate supersedes every in-flight request without issuing a new one.
func (l *Latest) Invalidate() {
	l.mu.Lock()
	l.generation++
	l.mu.Unlock()
}
