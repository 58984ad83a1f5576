package config

import (
	"sync/atomic"
	"time"

	"github.com/civiciq/civiciq/internal/domain/scoring"
)

// Settings is an immutable snapshot of the pipeline tuning values. The
// orchestrator takes one snapshot at the start of each run so a reload
// mid-pipeline never mixes old and new values.
type Settings struct {
	RateLimitMax        int
	RateLimitWindow     time.Duration
	SimilarityThreshold float64
	Weights             scoring.Weights
	CallTimeout         time.Duration
	PipelineTimeout     time.Duration
	RescoreInterval     time.Duration
}

// Provider hands out pipeline settings snapshots and accepts hot reloads.
type Provider struct {
	current atomic.Pointer[Settings]
}

// NewProvider creates a settings provider seeded from the loaded config.
func NewProvider(cfg Config) *Provider {
	p := &Provider{}
	p.Store(cfg)
	return p
}

// Snapshot returns the current pipeline settings.
func (p *Provider) Snapshot() Settings {
	return *p.current.Load()
}

// Store replaces the settings from a freshly loaded config.
func (p *Provider) Store(cfg Config) {
	s := settingsFrom(cfg.Pipeline)
	p.current.Store(&s)
}

func settingsFrom(pc PipelineConfig) Settings {
	return Settings{
		RateLimitMax:        pc.RateLimitMax,
		RateLimitWindow:     pc.RateLimitWindow(),
		SimilarityThreshold: pc.SimilarityThreshold,
		Weights: scoring.Weights{
			Low:    pc.SeverityWeightLow,
			Medium: pc.SeverityWeightMed,
			High:   pc.SeverityWeightHigh,
		},
		CallTimeout:     time.Duration(pc.CallTimeoutSec) * time.Second,
		PipelineTimeout: time.Duration(pc.PipelineTimeoutSec) * time.Second,
		RescoreInterval: time.Duration(pc.RescoreIntervalSec) * time.Second,
	}
}
