// Package llm is the text-completion boundary used by every node.
package llm

import (
	"context"
	"sync"
)

// Request is one completion call. JSON asks for a JSON-constrained answer,
// which providers may or may not honour.
type Request struct {
	Prompt      string
	JSON        bool
	Temperature *float32
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to Client.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Complete(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Scripted replays queued replies in order, then Fallback. It records every request.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	Fallback Reply
	calls    []Request
}

func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// Texts builds a script of successful replies.
func Texts(texts ...string) *Scripted {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Text: t}
	}
	return NewScripted(replies...)
}

func (s *Scripted) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

func (s *Scripted) Complete(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r := s.Fallback
	if len(s.replies) > 0 {
		r = s.replies[0]
		s.replies = s.replies[1:]
	}
	return r.Text, r.Err
}

// Calls returns a copy of the recorded requests.
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request{}, s.calls...)
}
