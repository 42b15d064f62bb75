package main

import (
	"context"
	"errors"
	"fmt"

	"claimforge/compliance/pkg/config"
	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/ingest"
	"claimforge/compliance/pkg/ingest/fetch"
	"claimforge/compliance/pkg/rules"
	"claimforge/compliance/pkg/rules/gate"
	"claimforge/compliance/pkg/rules/store"
	"claimforge/compliance/pkg/telemetry/metrics"
)

// app wires the store, the builder and the validator from configuration.
type app struct {
	cfg       *config.Config
	store     *store.Store
	metrics   *metrics.Collector
	mirror    fetch.Mirror
	builder   *ingest.Builder
	gate      *gate.Gate
	source    *store.CachedSource
	validator *rules.Validator
}

// openApp opens the rule store and builds every component on top of it.
// onStaged may be nil.
func openApp(ctx context.Context, cfg *config.Config, onStaged func(*ingest.KindReport)) (*app, error) {
	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening rule store: %w", err)
	}

	mirror, err := fetch.NewMirror(cfg.Mirror)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("configuring mirror: %w", err)
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	builder := ingest.NewBuilder(&cfg.Sources, s, ingest.Deps{
		Mirror:   mirror,
		Metrics:  collector,
		OnStaged: onStaged,
	})
	source := store.NewCachedSource(s, cfg.Validation.CacheSize, cfg.Validation.CacheTTL, collector)

	return &app{
		cfg:       cfg,
		store:     s,
		metrics:   collector,
		mirror:    mirror,
		builder:   builder,
		gate:      gate.New(s, builder),
		source:    source,
		validator: rules.NewValidator(source, rules.OptionsFromConfig(cfg.Validation, collector)),
	}, nil
}

// Close releases the store.
func (a *app) Close() error {
	return a.store.Close()
}

// storeHint decorates an unavailable-store error with the command that
// fixes it.
func storeHint(err error) error {
	if errors.Is(err, edits.ErrRuleStoreUnavailable) {
		return fmt.Errorf("%w (run \"claimforge build\" first)", err)
	}
	return err
}
