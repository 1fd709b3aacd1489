// Package roots provides the client's answer to the server's roots/list
// request and the change signal behind notifications/roots/list_changed.
package roots

import (
	"context"
	"net/url"
	"path/filepath"
	"slices"
	"sync"

	"github.com/ggoodman/mcp-client-go/mcp"
)

// Provider lists the roots the client exposes to the server.
type Provider interface {
	ListRoots(ctx context.Context) ([]mcp.Root, error)
}

// ChangeSubscriber is implemented by providers whose root set can change.
// The session sends notifications/roots/list_changed for every signal and
// unsubscribes when it ends.
type ChangeSubscriber interface {
	Subscriber() <-chan struct{}
	Unsubscribe(ch <-chan struct{})
}

// Static is a Provider backed by an in-memory list.
type Static struct {
	ChangeNotifier

	mu    sync.RWMutex
	roots []mcp.Root
}

// NewStatic returns a Static provider seeded with roots.
func NewStatic(roots ...mcp.Root) *Static {
	return &Static{roots: slices.Clone(roots)}
}

func (s *Static) ListRoots(ctx context.Context) ([]mcp.Root, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.roots)
	if out == nil {
		out = []mcp.Root{}
	}
	return out, nil
}

// Set replaces the root list and signals subscribers.
func (s *Static) Set(roots ...mcp.Root) {
	s.mu.Lock()
	s.roots = slices.Clone(roots)
	s.mu.Unlock()
	s.Notify()
}

// DirRoot builds a file:// root for a directory path.
func DirRoot(dir string) (mcp.Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return mcp.Root{}, err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return mcp.Root{URI: u.String(), Name: filepath.Base(abs)}, nil
}

var (
	_ Provider         = (*Static)(nil)
	_ ChangeSubscriber = (*Static)(nil)
)
