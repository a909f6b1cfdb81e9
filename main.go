// Command csgcloud samples a CSG scene into a colored point cloud.
//
//	csgcloud [flags] scene-file
//	csgcloud serve [-addr :8080]
//
// Scene files ending in .lisp go through the Lisp engine, .yaml
// and .yml through the YAML form, anything else through the line format.
// Flag defaults come from the CSGCLOUD_* environment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chazu/csgcloud/pkg/config"
	"github.com/chazu/csgcloud/pkg/export"
	"github.com/chazu/csgcloud/pkg/logging"
	"github.com/chazu/csgcloud/pkg/scene"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "csgcloud: %v\n", err)
		return 1
	}
	level, _ := logging.ParseLevel(cfg.LogLevel)
	logging.SetLogger(logging.NewText(stderr, level))
	defer logging.SetLogger(nil)

	if len(args) > 0 && args[0] == "serve" {
		return serve(cfg, args[1:], stderr)
	}
	return sample(cfg, args, stdout, stderr)
}

func sample(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	log := logging.Logger()
	fs := flag.NewFlagSet("csgcloud", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		density  = fs.String("density", cfg.Density, "sample density: low, medium, high or a positive count")
		seed     = fs.Uint64("seed", cfg.Seed, "random seed")
		parallel = fs.Int("parallel", cfg.Parallel, "max concurrent subtree workers, 0 for sequential")
		format   = fs.String("format", cfg.Format, "output format: json, ply or xyz")
		output   = fs.String("o", "", "output file (default stdout)")
		timeout  = fs.Duration("timeout", cfg.EvalTimeout, "Lisp evaluation timeout")
		verify   = fs.Bool("verify", false, "report how far the cloud strays from the scene surface")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: csgcloud [flags] scene-file\n       csgcloud serve [-addr :8080]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		log.Error("bad flag", "error", err)
		return 1
	}
	d, err := scene.Density(*density)
	if err != nil {
		log.Error("bad flag", "error", err)
		return 1
	}

	name := fs.Arg(0)
	src, err := os.ReadFile(name)
	if err != nil {
		log.Error("read scene", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := NewApp(Options{Density: d, Seed: *seed, Parallel: *parallel, Timeout: *timeout, Verify: *verify})
	pc, res := app.Run(ctx, Request{Name: name, Source: string(src)})
	for _, w := range res.Warnings {
		log.Warn(w.Message, "file", name, "line", w.Line, "col", w.Col)
	}
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			log.Error(e.Message, "file", name, "line", e.Line, "col", e.Col)
		}
		return 1
	}
	defer pc.Release()

	out := stdout
	if *output != "" {
		fh, err := os.Create(*output)
		if err != nil {
			log.Error("create output", "error", err)
			return 1
		}
		defer fh.Close()
		out = fh
	}
	if err := export.Write(out, pc, f); err != nil {
		log.Error("write cloud", "error", err)
		return 1
	}
	log.Info("wrote cloud", "points", pc.Len(), "format", f, "eval", res.ID)
	return 0
}

func serve(cfg *config.Config, args []string, stderr io.Writer) int {
	log := logging.Logger()
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", cfg.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	d, err := scene.Density(cfg.Density)
	if err != nil {
		log.Error("load config", "error", err)
		return 1
	}

	app := NewApp(Options{
		Density:   d,
		Seed:      cfg.Seed,
		Parallel:  cfg.Parallel,
		Timeout:   cfg.EvalTimeout,
		MaxPoints: cfg.MaxPoints,
		MaxEvals:  cfg.MaxEvals,
	})
	srv := &http.Server{
		Addr:         *addr,
		Handler:      NewServer(app, cfg.MaxDensity).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("server starting", "addr", *addr, "max_density", cfg.MaxDensity)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		return 1
	}
	return 0
}
