// Command dream runs one offline consolidation pass: cluster the profile's
// unconsolidated experiences, synthesize strategies, and write them into a
// learning unit.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"github.com/gridmind/gridmind/internal/cluster"
	"github.com/gridmind/gridmind/internal/config"
	"github.com/gridmind/gridmind/internal/dream"
	"github.com/gridmind/gridmind/internal/experience"
	"github.com/gridmind/gridmind/internal/learnunit"
	"github.com/gridmind/gridmind/internal/llm"
	"github.com/gridmind/gridmind/internal/store"
)

func main() {
	godotenv.Load()

	stateDir := flag.String("state", "state", "Path to state directory")
	profile := flag.String("profile", "", "Profile to consolidate (required)")
	algorithm := flag.String("algorithm", "", "Clustering algorithm name or versioned id (default from config)")
	mode := flag.String("mode", "consolidate", "Run mode: consolidate, reconsolidate, dual, all")
	unitID := flag.String("unit", "", "Destination unit id (required for reconsolidate)")
	target := flag.Int("target", 0, "Target cluster count (default from config)")
	algorithms := flag.String("algorithms", "", "Comma-separated algorithms for -mode all")
	resetBetween := flag.Bool("reset-between", true, "Reset consolidated flags between algorithm passes in -mode all")
	anonymous := flag.Bool("anonymous", false, "Strip identifying language from synthesized strategies")
	compact := flag.Bool("compact", false, "Add the compact strategy encoding")
	reportPath := flag.String("report", "", "Write the consolidation report to this path")
	dryRun := flag.Bool("dry-run", false, "Print stats without consolidating")
	flag.Parse()

	if *profile == "" {
		log.Fatal("Usage: dream -profile <name> [-mode consolidate|reconsolidate|dual|all]")
	}

	cfg, err := config.Load(*stateDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *algorithm == "" {
		*algorithm = cfg.Algorithm
	}
	if *target == 0 {
		*target = cfg.TargetClusters
	}

	db, err := store.Open(*stateDir)
	if err != nil {
		log.Fatalf("Failed to open metadata store: %v", err)
	}
	defer db.Close()

	exps := experience.NewStore(db)
	units := learnunit.NewManager(db)
	client := llm.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel)
	registry := cluster.DefaultRegistry(cluster.PatternDeps{Client: client})
	consolidator := dream.NewConsolidator(exps, units, registry, client)

	// Pre-run summary
	stats, err := db.Stats()
	if err != nil {
		log.Fatalf("Failed to get stats: %v", err)
	}
	unconsolidated, err := exps.GetUnconsolidated(*profile)
	if err != nil {
		log.Fatalf("Failed to get unconsolidated experiences: %v", err)
	}
	log.Printf("Store: %s", db.Path())
	log.Printf("  Experiences: %d", stats[store.TypeExperience])
	log.Printf("  Learning units: %d", stats[store.TypeUnit])
	log.Printf("  Unconsolidated for %s: %d", *profile, len(unconsolidated))

	if *dryRun {
		log.Println("Dry run - exiting")
		return
	}

	opts := dream.Options{
		Profile:   *profile,
		Algorithm: *algorithm,
		Target:    *target,
		UnitID:    *unitID,
		ClusterConfig: cluster.Config{
			BatchSize:   cfg.BatchSize,
			Concurrency: cfg.Concurrency,
			Hybrid:      cfg.Hybrid || *algorithm == "pattern-discovery",
			Cache:       cluster.NewCache(),
		},
		AnonymousPatterns: *anonymous || cfg.AnonymousPatterns,
		CompactEncoding:   *compact || cfg.CompactEncoding,
		MaxExemplars:      cfg.MaxExemplars,
		ReportPath:        *reportPath,
	}

	ctx := context.Background()

	switch *mode {
	case "consolidate":
		report, err := consolidator.Consolidate(ctx, opts)
		if err != nil {
			log.Fatalf("Consolidation failed: %v", err)
		}
		log.Printf("Done: %s", report.Insights)

	case "reconsolidate":
		if *unitID == "" {
			log.Fatal("-mode reconsolidate requires -unit")
		}
		report, err := consolidator.ReConsolidate(ctx, *unitID, opts)
		if err != nil {
			log.Fatalf("Re-consolidation failed: %v", err)
		}
		log.Printf("Done: %s", report.Insights)

	case "dual":
		report, err := consolidator.ConsolidateDual(ctx, opts)
		if err != nil {
			log.Fatalf("Dual-tier consolidation failed: %v", err)
		}
		log.Printf("Done: %s", report.Insights)

	case "all":
		names := splitList(*algorithms)
		if len(names) == 0 {
			for _, a := range registry.All() {
				names = append(names, a.Meta().ID)
			}
		}
		reports, err := consolidator.ConsolidateAll(ctx, opts, names, *resetBetween)
		if err != nil {
			log.Fatalf("Multi-algorithm consolidation failed: %v", err)
		}
		for i, report := range reports {
			log.Printf("[%s] %s", names[i], report.Insights)
		}

	default:
		log.Fatalf("Unknown mode %q", *mode)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
