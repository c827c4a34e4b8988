package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"modisdestripe/pkg/config"
	"modisdestripe/pkg/destripe"
	"modisdestripe/pkg/granule"
	"modisdestripe/pkg/modis"
	"modisdestripe/pkg/processing"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Parse command line arguments
	input := flag.String("input", "", "Granule directory to destripe in place")
	platform := flag.String("platform", "", "Platform: terra or aqua (default: from granule)")
	resolution := flag.String("resolution", "", "Resolution: 1km or 500m (default: from granule)")
	configPath := flag.String("config", "modisdestripe.yaml", "Run configuration file")
	bandConfig := flag.String("band-config", "", "Band configuration table (default: per-mode table in bandConfig.dir)")
	numCores := flag.Int("cores", 0, "Number of detectors processed in parallel (default: from config)")
	medianShift := flag.String("median-shift", "", "Median restoration policy: valid or all (default: from config)")
	ledgerPath := flag.String("ledger", "", "SQLite run ledger (default: from config)")
	quicklookDir := flag.String("quicklook-dir", "", "Directory for before/after JPEG quicklooks (default: from config)")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the configuration file
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *medianShift != "" {
		cfg.Processing.MedianShift = *medianShift
	}
	if *ledgerPath != "" {
		cfg.Ledger.Path = *ledgerPath
	}
	if *quicklookDir != "" {
		cfg.Output.QuicklookDir = *quicklookDir
	}
	if *bandConfig != "" {
		cfg.BandConfig.File = *bandConfig
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	policy, err := destripe.ParseMedianShiftPolicy(cfg.Processing.MedianShift)
	if err != nil {
		log.Fatalf("Invalid median shift policy: %v", err)
	}

	// The default band table depends on the mode, which may come from the granule
	tablePath := cfg.BandConfig.File
	if tablePath == "" {
		mode, err := resolveMode(*input, *platform, *resolution)
		if err != nil {
			log.Fatalf("Failed to determine instrument mode: %v", err)
		}
		tablePath = cfg.BandConfigPath(mode.ConfigFile)
	}

	fmt.Println("================================")
	fmt.Println("MODIS L1B EDF HISTOGRAM MATCHING DESTRIPER")
	fmt.Println("================================")

	params := &processing.Params{
		GranuleDir:     *input,
		Platform:       *platform,
		Resolution:     *resolution,
		BandConfigPath: tablePath,
		NumCores:       cfg.Processing.NumCores,
		MedianShift:    policy,
		MaxBandBytes:   cfg.Processing.MaxBandBytes,
		QuicklookDir:   cfg.Output.QuicklookDir,
		LedgerPath:     cfg.Ledger.Path,
	}
	if !cfg.Output.Verbose {
		params.Logf = func(string, ...any) {}
	}

	processor := processing.NewProcessor(params)

	fmt.Println("Starting destriping...")
	startTime := time.Now()
	if err := processor.Process(); err != nil {
		log.Fatalf("Destriping failed: %v", err)
	}
	processingTime := time.Since(startTime)

	summary := processor.Summary()
	fmt.Printf("\nDestriping completed in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Mode: %s (%s), %s pixels x %s lines, %d scans\n",
		summary.Mode, summary.Mode.ShortName(),
		humanize.Comma(int64(summary.Geometry.Pixels)), humanize.Comma(int64(summary.Geometry.Lines())),
		summary.Geometry.Scans)
	fmt.Printf("Band table: %s\n\n", summary.Header)

	fmt.Printf("Band results:\n")
	fmt.Printf("=======================================\n")
	for _, b := range summary.Bands {
		if !b.OK() {
			fmt.Printf("Band %2d: FAILED (%s) %v\n", b.Band, b.Status(), b.Err)
			continue
		}
		fmt.Printf("Band %2d: ok  ref %2d  median shift %5d  restored %s  repaired %d  striping reduced %.1f%%\n",
			b.Band, b.Result.ReferenceIndex, b.Result.MedianShift, humanize.Comma(int64(b.Result.Restored)),
			b.Repaired, b.Metrics.Reduction()*100)
	}
	fmt.Printf("\n%d of %d bands destriped\n", summary.Succeeded(), len(summary.Bands))
	if summary.RunID != 0 {
		fmt.Printf("Run %d recorded in %s\n", summary.RunID, cfg.Ledger.Path)
	}
}

// resolveMode takes the mode from the flags, falling back to the granule
// manifest for anything left empty.
func resolveMode(dir, platform, resolution string) (modis.Mode, error) {
	if platform == "" || resolution == "" {
		g, err := granule.Open(dir)
		if err != nil {
			return modis.Mode{}, err
		}
		if platform == "" {
			platform = g.Platform()
		}
		if resolution == "" {
			resolution = g.Resolution()
		}
	}
	return modis.LookupMode(platform, resolution)
}
