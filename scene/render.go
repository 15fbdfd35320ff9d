package scene

import (
	"context"
	"fmt"
	"math/rand"

	"glint/camera"
	"glint/ray"
	"glint/renderstats"
	"glint/rgbimage"
	"glint/vmath/vec3"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultMinT keeps scattered rays from immediately re-hitting the surface they
// left because of rounding error.
const DefaultMinT = 0.001

var (
	skyWhite = vec3.T{1.0, 1.0, 1.0}
	skyBlue  = vec3.T{0.5, 0.7, 1.0}
)

// Background is the radiance arriving along a ray that escapes the scene: a
// vertical gradient from white at the horizon below to sky blue overhead.
func Background(r ray.Ray) vec3.T {
	dir := vec3.Normalize(r.Slope)
	u := 0.5 * (dir[1] + 1.0)
	return vec3.Lerp(u, skyWhite, skyBlue)
}

// SampleRay follows one light path backwards from initialQuery.
//
// At each step the nearest contact in (minT, +Inf) is shaded by its material.
// The path ends when it escapes (picking up the background), is absorbed, or
// has made depthLim intersection queries; the last two contribute nothing.
// Contacts without a material absorb.
func (s *Scene) SampleRay(initialQuery ray.Ray, rng *rand.Rand, minT float64, depthLim int) (vec3.T, renderstats.PathStats) {
	pathStats := renderstats.PathStats{}
	throughput := vec3.T{1, 1, 1}
	curRay := initialQuery

	for i := 0; i < depthLim; i++ {
		pathStats.Rays++
		hit := s.Intersect(ray.RaySegment{
			TheRay:     curRay,
			TheSegment: ray.Forward(minT),
		})

		if !hit.IsHit() {
			pathStats.Escaped++
			return vec3.MulVV(throughput, Background(curRay)), pathStats
		}

		if hit.Material == nil {
			pathStats.Absorbed++
			return vec3.T{}, pathStats
		}

		shading := hit.Material.Scatter(curRay, hit, rng)
		if !shading.Scattered {
			pathStats.Absorbed++
			return vec3.T{}, pathStats
		}

		pathStats.Bounces++
		throughput = vec3.MulVV(throughput, shading.Attenuation)
		curRay = shading.Ray
	}

	pathStats.Truncated++
	return vec3.T{}, pathStats
}

type RenderOptions struct {
	MaxDepth         int
	TargetSubsamples int

	// MinT is the lower end of every intersection query.  Zero means
	// DefaultMinT.
	MinT float64

	Seed int64

	// SceneName tags exported statistics.
	SceneName string

	// Stats, if set, receives per-row path statistics.
	Stats *renderstats.Recorder
}

// ProgressFunction receives the number of samples taken so far and the number
// this render intends to take.
type ProgressFunction func(int, int)

// RenderScene tops every pixel of sampleDB up to options.TargetSubsamples
// samples.
//
// Pixels that already have enough samples are skipped, so a render can be
// resumed from a saved sampleDB.  Cancelling ctx stops the render between rows;
// samples already recorded stay in sampleDB.  Rendering happens on the calling
// goroutine.
func RenderScene(ctx context.Context, s *Scene, cam camera.Camera, options *RenderOptions, sampleDB *rgbimage.RGBImage, progressFunction ProgressFunction) error {
	tracer := otel.Tracer("glint/scene")
	ctx, span := tracer.Start(ctx, "RenderScene")
	defer span.End()

	minT := options.MinT
	if minT == 0 {
		minT = DefaultMinT
	}

	// Count the total number of samples recorded in sampleDB.  When we resume
	// a render, we don't want to just repeat our same RNG choices again!
	existingSamples := sampleDB.TotalSamples()
	rng := rand.New(rand.NewSource(options.Seed ^ int64(existingSamples)))

	// Count the number of samples we want to take, for reporting progress.
	totalSamples := 0
	for i := range sampleDB.Counts {
		if missing := options.TargetSubsamples - int(sampleDB.Counts[i]); missing > 0 {
			totalSamples += missing
		}
	}

	span.SetAttributes(
		attribute.Int("rows", sampleDB.RowSize),
		attribute.Int("cols", sampleDB.ColSize),
		attribute.Int("existing_samples", existingSamples),
		attribute.Int("total_samples", totalSamples),
	)
	glog.V(1).Infof("Rendering %dx%d, %d existing samples, %d to take", sampleDB.ColSize, sampleDB.RowSize, existingSamples, totalSamples)

	curProgress := 0
	renderStats := renderstats.PathStats{}

	for cr := 0; cr < sampleDB.RowSize; cr++ {
		if err := ctx.Err(); err != nil {
			err = fmt.Errorf("while rendering row %d: %w", cr, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		rowStats := renderstats.PathStats{}
		for cc := 0; cc < sampleDB.ColSize; cc++ {
			samp := sampleDB.ReadSample(cr, cc)
			if int(samp.Count) >= options.TargetSubsamples {
				continue
			}
			samplesToAdd := options.TargetSubsamples - int(samp.Count)

			for cs := 0; cs < samplesToAdd; cs++ {
				curQuery := cam.ImageToRay(cr, sampleDB.RowSize, cc, sampleDB.ColSize, rng)
				radiance, pathStats := s.SampleRay(curQuery, rng, minT, options.MaxDepth)
				sampleDB.RecordSample(cr, cc, radiance)
				rowStats.Add(pathStats)
				curProgress++
			}
		}

		renderStats.Add(rowStats)
		if options.Stats != nil {
			if err := options.Stats.Record(ctx, options.SceneName, rowStats); err != nil {
				glog.Errorf("Error while recording render stats: %v", err)
			}
		}

		if progressFunction != nil {
			progressFunction(curProgress, totalSamples)
		}
	}

	span.SetAttributes(
		attribute.Int64("rays", renderStats.Rays),
		attribute.Int64("bounces", renderStats.Bounces),
		attribute.Int64("absorbed", renderStats.Absorbed),
		attribute.Int64("escaped", renderStats.Escaped),
		attribute.Int64("truncated", renderStats.Truncated),
	)
	span.SetStatus(codes.Ok, "")

	return nil
}
