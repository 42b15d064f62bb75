package gate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/singleflight"

	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/ingest"
)

// Probe reports whether the rule snapshot holds PTP rows.
type Probe interface {
	HasPTPRows(ctx context.Context) (bool, error)
}

// Builder runs a rebuild. *ingest.Builder implements it.
type Builder interface {
	Build(ctx context.Context, kinds []edits.Kind) (*ingest.Report, error)
}

// Gate reports snapshot readiness and serializes rebuilds. Concurrent
// Rebuild calls for the same kinds share one build.
type Gate struct {
	probe   Probe
	builder Builder
	group   singleflight.Group
	logger  *slog.Logger
}

// New creates a Gate.
func New(probe Probe, builder Builder) *Gate {
	return &Gate{
		probe:   probe,
		builder: builder,
		logger:  slog.Default().With("component", "rules.gate"),
	}
}

// Ready reports whether the snapshot holds at least one PTP edit.
func (g *Gate) Ready(ctx context.Context) (bool, error) {
	ok, err := g.probe.HasPTPRows(ctx)
	if err != nil {
		return false, fmt.Errorf("probing rule store: %w", err)
	}
	return ok, nil
}

// Check is a readiness probe that fails until the snapshot is built.
func (g *Gate) Check(ctx context.Context) error {
	ok, err := g.Ready(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no PTP edits loaded", edits.ErrRuleStoreUnavailable)
	}
	return nil
}

// Rebuild runs a build of kinds, or of every kind when none are given.
// A caller arriving while an identical build is in flight waits for and
// receives that build's result. The build runs under the context of the
// caller that started it; a waiting caller whose context ends returns
// early without affecting the build.
func (g *Gate) Rebuild(ctx context.Context, kinds ...edits.Kind) (*ingest.Report, error) {
	if len(kinds) == 0 {
		kinds = edits.AllKinds()
	}
	key := flightKey(kinds)

	ch := g.group.DoChan(key, func() (any, error) {
		g.logger.InfoContext(ctx, "rebuild started", "kinds", key)
		return g.builder.Build(ctx, kinds)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			g.logger.DebugContext(ctx, "joined in-flight rebuild", "kinds", key)
		}
		report, _ := res.Val.(*ingest.Report)
		return report, res.Err
	}
}

// EnsureReady rebuilds every kind when the snapshot is not ready. It
// returns a nil report when no build was needed.
func (g *Gate) EnsureReady(ctx context.Context) (*ingest.Report, error) {
	ok, err := g.Ready(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	return g.Rebuild(ctx)
}

func flightKey(kinds []edits.Kind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	slices.Sort(names)
	return strings.Join(slices.Compact(names), ",")
}
