// Package renderstats exports counters about the paths traced during a render.
package renderstats

import (
	"context"
	"fmt"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// PathStats tallies what happened to a batch of traced paths.
type PathStats struct {
	// Rays counts every intersection query made against the scene.
	Rays int64

	// Bounces counts scattering events.
	Bounces int64

	// Absorbed counts paths ended by a material declining to scatter.
	Absorbed int64

	// Escaped counts paths that left the scene and picked up the background.
	Escaped int64

	// Truncated counts paths cut off by the depth limit.
	Truncated int64
}

func (p *PathStats) Add(o PathStats) {
	p.Rays += o.Rays
	p.Bounces += o.Bounces
	p.Absorbed += o.Absorbed
	p.Escaped += o.Escaped
	p.Truncated += o.Truncated
}

var sceneKey = tag.MustNewKey("scene")

type Recorder struct {
	rays      *stats.Int64Measure
	bounces   *stats.Int64Measure
	absorbed  *stats.Int64Measure
	escaped   *stats.Int64Measure
	truncated *stats.Int64Measure

	views []*view.View
}

func New() *Recorder {
	r := &Recorder{
		rays:      stats.Int64("glint/rays", "Intersection queries against the scene", stats.UnitDimensionless),
		bounces:   stats.Int64("glint/bounces", "Scattering events", stats.UnitDimensionless),
		absorbed:  stats.Int64("glint/absorbed", "Paths absorbed by a material", stats.UnitDimensionless),
		escaped:   stats.Int64("glint/escaped", "Paths that escaped to the background", stats.UnitDimensionless),
		truncated: stats.Int64("glint/truncated", "Paths cut off by the depth limit", stats.UnitDimensionless),
	}

	for _, m := range []*stats.Int64Measure{r.rays, r.bounces, r.absorbed, r.escaped, r.truncated} {
		r.views = append(r.views, &view.View{
			Name:        m.Name(),
			Description: m.Description(),
			TagKeys:     []tag.Key{sceneKey},
			Measure:     m,
			Aggregation: view.Sum(),
		})
	}

	return r
}

func (r *Recorder) RegisterViews() error {
	if err := view.Register(r.views...); err != nil {
		return fmt.Errorf("while registering render views: %w", err)
	}
	return nil
}

// Record adds a batch of path statistics under the given scene name.
func (r *Recorder) Record(ctx context.Context, sceneName string, p PathStats) error {
	return stats.RecordWithOptions(
		ctx,
		stats.WithTags(tag.Upsert(sceneKey, sceneName)),
		stats.WithMeasurements(
			r.rays.M(p.Rays),
			r.bounces.M(p.Bounces),
			r.absorbed.M(p.Absorbed),
			r.escaped.M(p.Escaped),
			r.truncated.M(p.Truncated),
		))
}
