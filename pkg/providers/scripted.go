package providers

import (
	"context"
	"sync"
)

// ScriptedProvider returns canned replies in order; after the script is
// exhausted it repeats the last entry. Used by tests and dry runs.
type ScriptedProvider struct {
	Replies []string
	Err     error

	mu    sync.Mutex
	calls int
}

func (p *ScriptedProvider) DefaultModel() string { return "scripted" }

func (p *ScriptedProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Replies) == 0 {
		return "", nil
	}
	idx := p.calls - 1
	if idx >= len(p.Replies) {
		idx = len(p.Replies) - 1
	}
	return p.Replies[idx], nil
}

// Calls reports how many times Generate ran.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
