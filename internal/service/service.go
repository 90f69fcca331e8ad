// Package service implements the ingestion pipeline, the heartbeat ticker
// and the read queries over derived agent state.
package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/xiaot623/hookwatch/config"
	"github.com/xiaot623/hookwatch/internal/adapter/translate"
	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/repository"
	"github.com/xiaot623/hookwatch/internal/settings"
)

// ErrNotFound is returned when a queried entity does not exist.
var ErrNotFound = errors.New("not found")

// Broadcaster fans messages out to live viewers. A nil scope reaches every
// viewer.
type Broadcaster interface {
	Broadcast(v interface{}, scope *domain.ScopeKey) int
}

// SettingsSource supplies the current compiled settings.
type SettingsSource interface {
	Current() *settings.Compiled
}

// Exporter receives every persisted event.
type Exporter interface {
	Export(ctx context.Context, ev *domain.NormalizedEvent) error
}

type Service struct {
	store       store.Store
	settings    SettingsSource
	broadcaster Broadcaster
	translator  translate.Translator
	exporter    Exporter
	config      *config.Config

	locks *keyedMutex
	now   func() time.Time
	rand  func() float64
}

// Option configures a Service.
type Option func(*Service)

// WithExporter publishes persisted events through e.
func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRandom replaces the placement random source. r must return values in [0, 1).
func WithRandom(r func() float64) Option {
	return func(s *Service) { s.rand = r }
}

// New creates a Service. translator may be nil to disable translation.
func New(store store.Store, settings SettingsSource, broadcaster Broadcaster, translator translate.Translator, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		store:       store,
		settings:    settings,
		broadcaster: broadcaster,
		translator:  translator,
		config:      cfg,
		locks:       newKeyedMutex(),
		now:         time.Now,
		rand:        rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
