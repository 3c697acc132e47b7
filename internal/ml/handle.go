package ml

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Loader produces the model artifact. It is called at most once per handle.
type Loader func() (*ModelArtifact, error)

// FileLoader loads the artifact at path.
func FileLoader(path string) Loader {
	return func() (*ModelArtifact, error) {
		return LoadArtifact(path)
	}
}

// ArtifactHandle is the process-wide, load-once reference to the model
// artifact. The first Get runs the loader; every later call returns the same
// artifact, or the same failure, without loading again.
type ArtifactHandle struct {
	once     sync.Once
	load     Loader
	metrics  MetricsInterface
	artifact *ModelArtifact
	err      error
	done     atomic.Bool
}

// NewArtifactHandle wraps load. metrics may be nil.
func NewArtifactHandle(load Loader, metrics MetricsInterface) *ArtifactHandle {
	return &ArtifactHandle{load: load, metrics: metrics}
}

// StaticHandle returns a handle that is already loaded with a.
func StaticHandle(a *ModelArtifact) *ArtifactHandle {
	h := NewArtifactHandle(func() (*ModelArtifact, error) { return a, nil }, nil)
	h.Preload()
	return h
}

// Get returns the artifact, loading it on first use. After a failed load
// every call returns an error wrapping ErrModelUnavailable and the cause.
func (h *ArtifactHandle) Get() (*ModelArtifact, error) {
	h.once.Do(h.doLoad)
	if h.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, h.err)
	}
	return h.artifact, nil
}

// Preload forces the one-time load and reports its outcome.
func (h *ArtifactHandle) Preload() error {
	_, err := h.Get()
	return err
}

// Loaded reports whether a load has completed successfully. It never
// triggers a load.
func (h *ArtifactHandle) Loaded() bool {
	return h.done.Load() && h.err == nil
}

func (h *ArtifactHandle) doLoad() {
	start := time.Now()
	defer h.done.Store(true)
	defer func() {
		if r := recover(); r != nil {
			h.artifact = nil
			h.err = &ArtifactLoadError{Err: fmt.Errorf("loader panicked: %v", r)}
			h.recordFailure(start)
		}
	}()

	h.artifact, h.err = h.load()
	if h.err == nil && h.artifact == nil {
		h.err = &ArtifactLoadError{Err: fmt.Errorf("loader returned no artifact")}
	}
	if h.err != nil {
		h.recordFailure(start)
		return
	}

	if h.metrics != nil && !h.artifact.Metadata.TrainedAt.IsZero() {
		h.metrics.ModelAgeSet(time.Since(h.artifact.Metadata.TrainedAt).Seconds())
	}
	log.Info().
		Dur("load_time", time.Since(start)).
		Str("version", h.artifact.Metadata.Version).
		Msg("prediction model ready")
}

func (h *ArtifactHandle) recordFailure(start time.Time) {
	log.Error().
		Err(h.err).
		Dur("load_time", time.Since(start)).
		Msg("model artifact failed to load; predictions unavailable until restart")
	if h.metrics != nil {
		h.metrics.ModelLoadFailuresInc()
	}
}
