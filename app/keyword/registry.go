package keyword

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Registry publishes the active Index. Readers take a snapshot with Index and
// keep using it for the whole scoring pass, even if a rebuild lands meanwhile.
type Registry struct {
	current       atomic.Pointer[Index]
	normalization float64

	mu     sync.Mutex
	groups []Group
}

func NewRegistry(normalization float64) *Registry {
	r := &Registry{normalization: normalization}
	empty, _ := Build(nil, normalization)
	r.current.Store(empty)
	return r
}

func (r *Registry) Index() *Index {
	return r.current.Load()
}

// Rebuild compiles groups and swaps them in. On error the previous index stays
// active and the error is a *apperr.ConfigError.
func (r *Registry) Rebuild(groups []Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := Build(groups, r.normalization)
	if err != nil {
		slog.Warn("Keyword index rebuild rejected, keeping previous index", "error", err)
		return err
	}

	r.current.Store(idx)
	r.groups = append([]Group(nil), groups...)

	slog.Info("Keyword index rebuilt", "groups", idx.GroupCount(), "patterns", idx.PatternCount())
	return nil
}

func (r *Registry) Groups() []Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Group(nil), r.groups...)
}
