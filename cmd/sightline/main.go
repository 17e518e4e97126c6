// Command sightline evaluates the viewing geometry of every enabled camera
// in a scene: distance to the surface at the image center and surface
// tilt along both image axes.
//
// Usage:
//
//	sightline -scene site.scene [-config tuning.json] [-csv out.csv] [-json out.json] [-plot out.png]
//	sightline -scene site.scene -pick-camera IMG_0001 -pick-row 1500 -pick-col 2000
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/chazu/sightline/pkg/config"
	"github.com/chazu/sightline/pkg/crs"
	"github.com/chazu/sightline/pkg/engine"
	"github.com/chazu/sightline/pkg/evaluate"
	"github.com/chazu/sightline/pkg/probe"
	"github.com/chazu/sightline/pkg/report"
	"github.com/chazu/sightline/pkg/scene"
)

type options struct {
	scene      string
	config     string
	csv        string
	json       string
	plot       string
	gapPerc    float64
	workers    int
	pickCamera string
	pickRow    float64
	pickCol    float64
}

func main() {
	var o options
	flag.StringVar(&o.scene, "scene", "", "Scene script to evaluate (required)")
	flag.StringVar(&o.config, "config", "", "JSON tuning file")
	flag.StringVar(&o.csv, "csv", "", "Write results as CSV to this file")
	flag.StringVar(&o.json, "json", "", "Write results as JSON to this file")
	flag.StringVar(&o.plot, "plot", "", "Write a plot of the surface angles (png, svg or pdf)")
	flag.Float64Var(&o.gapPerc, "gap-perc", 0, "Override gap_perc (probe offset, percent of half width + half height)")
	flag.IntVar(&o.workers, "workers", -1, "Override workers (0 = one per CPU)")
	flag.StringVar(&o.pickCamera, "pick-camera", "", "Project one image point of this camera onto the surface and exit")
	flag.Float64Var(&o.pickRow, "pick-row", 0, "Image row for -pick-camera, from the top")
	flag.Float64Var(&o.pickCol, "pick-col", 0, "Image column for -pick-camera, from the left")
	flag.Parse()

	if o.scene == "" {
		fmt.Fprintln(os.Stderr, "sightline: -scene is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		log.Fatalf("sightline: %v", err)
	}
}

func loadConfig(o options) (*config.Config, error) {
	cfg := config.Empty()
	if o.config != "" {
		var err error
		if cfg, err = config.Load(o.config); err != nil {
			return nil, err
		}
	}
	if o.gapPerc != 0 {
		cfg.SetGapPerc(o.gapPerc)
	}
	if o.workers >= 0 {
		cfg.SetWorkers(o.workers)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadScene(cfg *config.Config, path string) (*scene.Document, error) {
	eng := engine.NewEngineWithOptions(engine.Options{
		Trace:     cfg.TraceOptions(),
		MeshCells: cfg.GetMeshCells(),
	})
	doc, evalErrs, err := eng.EvaluateFile(path)
	if err != nil {
		return nil, err
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			log.Printf("%s: %v", path, e)
		}
		return nil, fmt.Errorf("scene %s has %d error(s)", path, len(evalErrs))
	}

	res := doc.Validate()
	for _, w := range res.Warnings {
		log.Printf("%s: %v", path, w)
	}
	if !res.OK() {
		for _, e := range res.Errors {
			log.Printf("%s: %v", path, e)
		}
		return nil, fmt.Errorf("scene %s is invalid", path)
	}
	log.Printf("loaded scene %q: %d cameras (%d enabled), surface %s, crs %s",
		doc.Name, len(doc.Cameras), len(doc.EnabledCameras()), doc.SurfaceKind, doc.Projection().Name())
	return doc, nil
}

func run(ctx context.Context, o options, out io.Writer) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	doc, err := loadScene(cfg, o.scene)
	if err != nil {
		return err
	}

	if o.pickCamera != "" {
		return pick(ctx, cfg, doc, o, out)
	}

	opts := cfg.EvaluateOptions()
	ev, err := evaluate.New(doc, opts)
	if err != nil {
		return err
	}

	var results []evaluate.Result
	err = ev.Stream(ctx, doc.Cameras, func(r evaluate.Result) error {
		results = append(results, r)
		_, err := fmt.Fprintln(out, report.LegacyLine(r))
		return err
	})
	if err != nil {
		return err
	}

	flagged := 0
	for _, r := range results {
		if r.Flags != 0 {
			flagged++
		}
	}
	log.Printf("evaluated %d cameras, %d flagged", len(results), flagged)

	rep := report.NewRun(doc.Name, opts.GapPerc, results)
	if o.csv != "" {
		if err := writeFile(o.csv, func(w io.Writer) error { return report.WriteCSV(w, rep) }); err != nil {
			return err
		}
		log.Printf("wrote %s", o.csv)
	}
	if o.json != "" {
		if err := writeFile(o.json, func(w io.Writer) error { return report.WriteJSON(w, rep) }); err != nil {
			return err
		}
		log.Printf("wrote %s", o.json)
	}
	if o.plot != "" {
		if err := report.Plot(o.plot, rep); err != nil {
			return err
		}
		log.Printf("wrote %s", o.plot)
	}
	return nil
}

// pick projects one image point onto the surface and prints its internal
// and projected coordinates.
func pick(ctx context.Context, cfg *config.Config, doc *scene.Document, o options, out io.Writer) error {
	cam, ok := doc.Camera(o.pickCamera)
	if !ok {
		return fmt.Errorf("no camera named %q", o.pickCamera)
	}
	p := probe.NewProjector(doc.Surface, cfg.GetQueryTimeout())
	pt, hit, err := p.Pick(ctx, cam, o.pickRow, o.pickCol)
	if err != nil {
		return err
	}
	if !hit {
		_, err := fmt.Fprintf(out, "camera %s: point (%g, %g) does not hit the surface\n", cam.Name(), o.pickRow, o.pickCol)
		return err
	}
	world := crs.Point(doc.Transform, doc.Projection(), pt)
	_, err = fmt.Fprintf(out, "3D coordinates of the added marker: internal (%g, %g, %g) %s (%g, %g, %g)\n",
		pt.X, pt.Y, pt.Z, doc.Projection().Name(), world.X, world.Y, world.Z)
	return err
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
