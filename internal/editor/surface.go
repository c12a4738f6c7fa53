package editor

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var editorLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	editorLogger = l
}

var ErrUnknownHandle = errors.New("unknown editor handle")

// Handle identifies one initialised editing surface.
type Handle string

// Transform turns what the browser posted into the serialised HTML body.
type Transform func(raw string) (string, error)

type instance struct {
	config    Config
	data      string
	listeners []func(string)
}

// Surface keeps the server side of every browser editing widget: its
// config, its last serialised body and its change listeners.
type Surface struct {
	kind      string
	transform Transform

	mu        sync.Mutex
	instances map[Handle]*instance
}

func newSurface(kind string, transform Transform) *Surface {
	return &Surface{
		kind:      kind,
		transform: transform,
		instances: make(map[Handle]*instance),
	}
}

// NewHTMLSurface accepts serialised HTML from the browser widget and keeps
// only what the sanitising policy allows.
func NewHTMLSurface() *Surface {
	policy := ContentPolicy()
	return newSurface("html", func(raw string) (string, error) {
		return policy.Sanitize(raw), nil
	})
}

func (s *Surface) Kind() string {
	return s.kind
}

func (s *Surface) Init(cfg Config) (Handle, error) {
	if cfg.IsZero() {
		return "", errors.New("editor config is empty")
	}

	h := Handle(uuid.NewString())
	s.mu.Lock()
	s.instances[h] = &instance{config: cfg}
	s.mu.Unlock()

	editorLogger.Debug().Str("handle", string(h)).Str("surface", s.kind).Msg("Editor surface initialised")
	return h, nil
}

func (s *Surface) OnChange(h Handle, fn func(string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	inst.listeners = append(inst.listeners, fn)
	return nil
}

func (s *Surface) GetData(h Handle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[h]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return inst.data, nil
}

// Apply records an edit made in the browser and notifies the listeners
// with the serialised body.
func (s *Surface) Apply(h Handle, raw string) error {
	data, err := s.transform(raw)
	if err != nil {
		return fmt.Errorf("transform %s content: %w", s.kind, err)
	}

	s.mu.Lock()
	inst, ok := s.instances[h]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	inst.data = data
	listeners := slices.Clone(inst.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(data)
	}
	return nil
}

// SetData replaces the stored body without running the transform or the
// listeners, like the widget's own setData.
func (s *Surface) SetData(h Handle, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	inst.data = data
	return nil
}

func (s *Surface) Destroy(h Handle) {
	s.mu.Lock()
	delete(s.instances, h)
	s.mu.Unlock()

	editorLogger.Debug().Str("handle", string(h)).Int("live", s.Live()).Msg("Editor surface destroyed")
}

// Live is the number of initialised, not yet destroyed instances.
func (s *Surface) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}
