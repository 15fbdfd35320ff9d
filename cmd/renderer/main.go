// Command renderer path-traces a scene of spheres into a resumable sample
// file and, optionally, a PNG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"time"

	"glint/checkpoint"
	"glint/publish"
	"glint/renderstats"
	"glint/rgbimage"
	"glint/scene"
	"glint/scenefile"

	"cloud.google.com/go/profiler"
	"contrib.go.opencensus.io/exporter/stackdriver"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/golang/glog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/term"
	"golang.org/x/time/rate"
)

var (
	sceneFile = flag.String("scene", "", "YAML scene description.  If empty, a built-in demo scene is rendered.")

	outputFile = flag.String("output-file", "output.rgbimage", "Output sample db")
	outputRows = flag.Int("output-rows", 360, "Output image rows")
	outputCols = flag.Int("output-cols", 640, "Output image columns")

	renderTargetSubsamples = flag.Int("render-target-subsamples", 16, "Number of subsamples to collect from each pixel")
	renderMaxDepth         = flag.Int("render-max-depth", 8, "Maximum number of bounces to consider")
	seed                   = flag.Int64("seed", 1, "Random seed for the render")

	resume        = flag.Bool("resume", false, "Should we re-open the output file to add more samples?")
	checkpointDir = flag.String("checkpoint-dir", "", "Directory of a checkpoint store.  If set, finished and interrupted renders are saved there, and resumed renders start from there.")

	pngFile        = flag.String("png-file", "", "If set, write the developed image here as a PNG")
	thumbnailWidth = flag.Uint("thumbnail-width", 0, "If nonzero, also publish a thumbnail this many pixels wide")
	gamma          = flag.Float64("gamma", 2.0, "Display gamma used when developing the image")
	publishTo      = flag.String("publish", "", "Comma-separated destinations for the PNG: gs://bucket/prefix, s3://bucket/prefix, or a directory")

	monitoring           = flag.Bool("monitoring", false, "Enable monitoring?")
	monitoringProject    = flag.String("monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	monitoringTraceRatio = flag.Float64("monitoring-trace-ratio", 1.0, "What ratio of traces should be exported?")
	enableMetrics        = flag.Bool("enable-metrics", false, "Export render statistics to Cloud Monitoring?")
	enableProfiling      = flag.Bool("enable-profiling", false, "Enable Cloud Profiler?")

	cpuprofile = flag.String("cpu-profile", "", "write cpu profile to `file`")
	memprofile = flag.String("mem-profile", "", "write memory profile to `file`")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	glog.CopyStandardLogTo("INFO")

	if err := run(); err != nil {
		glog.Exitf("Error: %v", err)
	}
}

// run owns everything that must be flushed or stopped before the process
// exits.
func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if *enableProfiling {
		if err := profiler.Start(profiler.Config{
			Service:        "glint-renderer",
			ServiceVersion: "0.0.1",
			ProjectID:      *monitoringProject,
		}); err != nil {
			return fmt.Errorf("while initializing profiler: %w", err)
		}
	}

	if *monitoring {
		traceOpts := []cloudtrace.Option{}
		if *monitoringProject != "" {
			traceOpts = append(traceOpts, cloudtrace.WithProjectID(*monitoringProject))
		}

		_, traceShutdown, err := cloudtrace.InstallNewPipeline(traceOpts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(*monitoringTraceRatio)))
		if err != nil {
			return fmt.Errorf("while installing Cloud Trace OpenTelemetry trace pipeline: %w", err)
		}
		defer traceShutdown()
	}

	var stats *renderstats.Recorder
	if *enableMetrics {
		stats = renderstats.New()
		if err := stats.RegisterViews(); err != nil {
			return fmt.Errorf("while registering render stats views: %w", err)
		}

		exporter, err := stackdriver.NewExporter(stackdriver.Options{
			ProjectID:         *monitoringProject,
			MetricPrefix:      "glint",
			ReportingInterval: 60 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("while initializing metrics exporter: %w", err)
		}
		if err := exporter.StartMetricsExporter(); err != nil {
			return fmt.Errorf("while starting metrics exporter: %w", err)
		}
		defer exporter.Flush()
		defer exporter.StopMetricsExporter()
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return fmt.Errorf("while creating CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("while starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	if err := do(ctx, stats); err != nil {
		return err
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			return fmt.Errorf("while creating memory profile: %w", err)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("while writing memory profile: %w", err)
		}
	}

	return nil
}

func do(ctx context.Context, stats *renderstats.Recorder) error {
	if *outputRows <= 0 || *outputCols <= 0 {
		return fmt.Errorf("output dimensions must be positive (got %dx%d)", *outputCols, *outputRows)
	}
	aspect := float64(*outputCols) / float64(*outputRows)

	var loaded *scenefile.Loaded
	var err error
	if *sceneFile == "" {
		loaded, err = scenefile.Default(aspect)
	} else {
		loaded, err = scenefile.LoadFile(*sceneFile, aspect)
	}
	if err != nil {
		return fmt.Errorf("while loading scene: %w", err)
	}

	sceneName := *sceneFile
	if sceneName == "" {
		sceneName = "default"
	}
	checkpointKey := fmt.Sprintf("%s/%dx%d", loaded.Digest, *outputRows, *outputCols)

	var store *checkpoint.Store
	if *checkpointDir != "" {
		store, err = checkpoint.Open(*checkpointDir)
		if err != nil {
			return fmt.Errorf("while opening checkpoint store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				glog.Errorf("Error while closing checkpoint store: %v", err)
			}
		}()
	}

	sampleDB, err := loadSampleDB(store, checkpointKey)
	if err != nil {
		return err
	}

	options := &scene.RenderOptions{
		MaxDepth:         *renderMaxDepth,
		TargetSubsamples: *renderTargetSubsamples,
		Seed:             *seed,
		SceneName:        sceneName,
		Stats:            stats,
	}

	glog.Infof("Rendering %s (%s) at %dx%d, %d subsamples", sceneName, loaded.Digest[:12], *outputCols, *outputRows, *renderTargetSubsamples)
	start := time.Now()

	renderErr := scene.RenderScene(ctx, loaded.Scene, loaded.Camera, options, sampleDB, progressPrinter())
	if term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintf(os.Stderr, "\n")
	}
	if renderErr != nil && !errors.Is(renderErr, context.Canceled) {
		return fmt.Errorf("while rendering: %w", renderErr)
	}

	// Save even an interrupted render so it can be resumed.
	if err := rgbimage.WriteToFile(sampleDB, *outputFile); err != nil {
		return fmt.Errorf("while writing sample db: %w", err)
	}
	if store != nil {
		if err := store.Put(checkpointKey, sampleDB); err != nil {
			return fmt.Errorf("while saving checkpoint: %w", err)
		}
	}

	if renderErr != nil {
		return fmt.Errorf("render interrupted after %v; rerun with -resume to continue: %w", time.Since(start), renderErr)
	}
	glog.Infof("Render finished in %v", time.Since(start))

	return develop(ctx, sampleDB)
}

// loadSampleDB returns the samples to start from: a checkpoint or the output
// file when resuming, or a fresh image otherwise.
func loadSampleDB(store *checkpoint.Store, checkpointKey string) (*rgbimage.RGBImage, error) {
	if !*resume {
		// Check that the output file doesn't exist, to avoid blowing away hours
		// of render time.
		if _, err := os.Stat(*outputFile); err == nil {
			return nil, fmt.Errorf("resumption not requested, but output file exists")
		}
		return rgbimage.New(*outputRows, *outputCols), nil
	}

	var sampleDB *rgbimage.RGBImage
	if store != nil {
		img, ok, err := store.Get(checkpointKey)
		if err != nil {
			return nil, fmt.Errorf("while reading checkpoint: %w", err)
		}
		if ok {
			glog.Infof("Resuming from checkpoint %s with %d samples", checkpointKey, img.TotalSamples())
			sampleDB = img
		}
	}

	if sampleDB == nil {
		img, err := rgbimage.ReadFromFile(*outputFile)
		if err != nil {
			return nil, fmt.Errorf("resumption requested, but encountered error loading existing file: %w", err)
		}
		sampleDB = img
	}

	if sampleDB.RowSize != *outputRows {
		return nil, fmt.Errorf("resumption requested, but the existing image doesn't have the right number of rows (got %d, want %d)", sampleDB.RowSize, *outputRows)
	}
	if sampleDB.ColSize != *outputCols {
		return nil, fmt.Errorf("resumption requested, but the existing image doesn't have the right number of columns (got %d, want %d)", sampleDB.ColSize, *outputCols)
	}
	return sampleDB, nil
}

// progressPrinter reports progress on stderr, at most a few times a second,
// and only when stderr is a terminal.
func progressPrinter() scene.ProgressFunction {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}

	limiter := rate.NewLimiter(rate.Every(200*time.Millisecond), 1)
	return func(cur, tot int) {
		if cur != tot && !limiter.Allow() {
			return
		}
		pct := 100
		if tot != 0 {
			pct = 100 * cur / tot
		}
		fmt.Fprintf(os.Stderr, "\r%d/%d %d%%", cur, tot, pct)
	}
}

// develop writes the PNG and pushes it, plus an optional thumbnail, to every
// publish destination.
func develop(ctx context.Context, sampleDB *rgbimage.RGBImage) error {
	var dests []string
	for _, d := range strings.Split(*publishTo, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dests = append(dests, d)
		}
	}

	if *pngFile == "" && len(dests) == 0 {
		return nil
	}

	developed := sampleDB.Develop(*gamma)
	pngData, err := rgbimage.EncodePNG(developed)
	if err != nil {
		return fmt.Errorf("while encoding PNG: %w", err)
	}

	pngName := "render.png"
	if *pngFile != "" {
		if err := os.WriteFile(*pngFile, pngData, 0644); err != nil {
			return fmt.Errorf("while writing PNG: %w", err)
		}
		glog.Infof("Wrote %s", *pngFile)
		pngName = filepath.Base(*pngFile)
	}

	if len(dests) == 0 {
		return nil
	}

	pubs := []publish.Publisher{}
	defer func() {
		for _, p := range pubs {
			if err := p.Close(); err != nil {
				glog.Errorf("Error while closing publisher: %v", err)
			}
		}
	}()
	for _, d := range dests {
		p, err := publish.ForURL(ctx, d)
		if err != nil {
			return fmt.Errorf("while setting up publish destination %q: %w", d, err)
		}
		pubs = append(pubs, p)
	}

	if err := publish.All(ctx, pubs, pngName, pngData, "image/png"); err != nil {
		return fmt.Errorf("while publishing image: %w", err)
	}

	if *thumbnailWidth > 0 {
		thumbData, err := rgbimage.EncodePNG(rgbimage.Thumbnail(developed, *thumbnailWidth))
		if err != nil {
			return fmt.Errorf("while encoding thumbnail: %w", err)
		}
		thumbName := strings.TrimSuffix(pngName, filepath.Ext(pngName)) + "-thumb.png"
		if err := publish.All(ctx, pubs, thumbName, thumbData, "image/png"); err != nil {
			return fmt.Errorf("while publishing thumbnail: %w", err)
		}
	}

	glog.Infof("Published %s to %d destinations", pngName, len(pubs))
	return nil
}
