package policy

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Handle loads a model lazily, at most once, and hands the same engine (or the
// same load error) to every caller.
type Handle struct {
	path    string
	options []Option
	once    sync.Once
	engine  *Engine
	err     error
}

var (
	sharedMu sync.Mutex
	shared   = make(map[string]*Handle)
)

func NewHandle(path string, options ...Option) *Handle {
	return &Handle{path: path, options: options}
}

// Shared returns the process-wide handle for path. Options only apply to the
// first call for a given path.
func Shared(path string, options ...Option) *Handle {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if h, ok := shared[path]; ok {
		return h
	}
	h := NewHandle(path, options...)
	shared[path] = h
	return h
}

// Preloaded wraps an engine that is already loaded.
func Preloaded(e *Engine) *Handle {
	h := &Handle{engine: e}
	h.once.Do(func() {})
	return h
}

func (h *Handle) Path() string { return h.path }

func (h *Handle) Get() (*Engine, error) {
	h.once.Do(func() {
		h.engine, h.err = LoadFile(h.path, h.options...)
		if h.err != nil {
			log.Warn().Msgf("Policy model unavailable: %v", h.err)
			return
		}
		log.Info().Msgf("Loaded policy model from %s", h.path)
	})
	return h.engine, h.err
}
