package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rasmus-Riis/PDFRecon/internal/config"
	"github.com/Rasmus-Riis/PDFRecon/internal/engine"
	"github.com/Rasmus-Riis/PDFRecon/internal/forensic"
	"github.com/Rasmus-Riis/PDFRecon/internal/metaext"
)

var (
	version   = "dev"     // set by build flags
	buildTime = "unknown" // set by build flags
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, targets, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "error: no files or directories given")
		os.Exit(2)
	}

	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signalCh
		log.Printf("Received signal: %s, cancelling scan", sig)
		cancel()
	}()

	analyzer := forensic.NewAnalyzer(cfg,
		forensic.WithMetadataExtractor(metaext.PDFCPUExtractor{}))
	eng := engine.New(analyzer, cfg.MaxConcurrentScans)

	var all []*forensic.FileReport
	for _, target := range targets {
		paths, err := engine.FindPDFs(target)
		if err != nil {
			log.Printf("skipping %s: %v", target, err)
			continue
		}
		reports, err := eng.ScanAll(ctx, paths)
		all = append(all, reports...)
		if err != nil {
			break
		}
	}

	printSummary(all, cfg)

	for _, r := range all {
		if r.Classification == forensic.ClassificationRed {
			os.Exit(1)
		}
	}
}

func setupLogging(cfg *config.Config) {
	log.SetOutput(os.Stderr)
	if cfg.IsDebug() {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

func printSummary(reports []*forensic.FileReport, cfg *config.Config) {
	red, yellow, green := 0, 0, 0
	for _, r := range reports {
		switch r.Classification {
		case forensic.ClassificationRed:
			red++
		case forensic.ClassificationYellow:
			yellow++
		default:
			green++
		}

		fmt.Printf("%-6s %s\n", r.Classification, r.Path)
		for _, f := range r.Findings {
			fmt.Printf("       %s\n", f.String())
		}
		for _, rev := range r.Revisions {
			if rev.Status == forensic.RevisionCorrupt {
				continue
			}
			status := string(rev.Status)
			if rev.Reason != "" {
				status += " (" + rev.Reason + ")"
			}
			fmt.Printf("       revision %d: %s -> %s\n", rev.Index, status, rev.OutputPath)
		}
		if cfg.IsDebug() {
			for _, e := range r.Errors {
				fmt.Printf("       error: %s\n", e)
			}
			for _, ev := range r.Timeline {
				fmt.Printf("       %s  %s: %s\n", ev.When.Format("2006-01-02 15:04:05 -0700"), ev.Source, ev.Label)
			}
		}
	}
	fmt.Printf("\n%d file(s): %d red, %d yellow, %d green\n", len(reports), red, yellow, green)
}

func printVersion() {
	fmt.Printf("PDFRecon\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
}
