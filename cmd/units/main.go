// Command units maintains learning units: list, show, merge, export, import,
// reset, delete.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"github.com/gridmind/gridmind/internal/learnunit"
	"github.com/gridmind/gridmind/internal/store"
)

func main() {
	godotenv.Load()

	stateDir := flag.String("state", "state", "Path to state directory")
	profile := flag.String("profile", "", "Profile (for list)")
	unitID := flag.String("unit", "", "Unit id (for show/export/reset/delete)")
	mergeIDs := flag.String("merge", "", "Comma-separated source unit ids to merge")
	mergeInto := flag.String("into", "", "Destination unit id for -merge")
	exportPath := flag.String("export", "", "Export -unit to this path")
	importPath := flag.String("import", "", "Import a unit export from this path")
	remapID := flag.String("remap", "", "Remap the imported unit to this id")
	reset := flag.Bool("reset", false, "Reset -unit's absorbed-experience set")
	del := flag.Bool("delete", false, "Delete -unit")
	flag.Parse()

	db, err := store.Open(*stateDir)
	if err != nil {
		log.Fatalf("Failed to open metadata store: %v", err)
	}
	defer db.Close()

	units := learnunit.NewManager(db)

	switch {
	case *mergeIDs != "":
		if *mergeInto == "" {
			log.Fatal("-merge requires -into")
		}
		sources := strings.Split(*mergeIDs, ",")
		merged, err := units.Merge(*mergeInto, *mergeInto, sources)
		if err != nil {
			log.Fatalf("Merge failed: %v", err)
		}
		log.Printf("Merged %d units into %s: %d strategies, %d absorbed experiences",
			len(sources), merged.ID, len(merged.Strategies), len(merged.AbsorbedIDs))

	case *exportPath != "":
		if *unitID == "" {
			log.Fatal("-export requires -unit")
		}
		if err := units.ExportToFile(*unitID, *exportPath); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		log.Printf("Exported %s to %s", *unitID, *exportPath)

	case *importPath != "":
		unit, err := units.ImportFromFile(*importPath, *remapID)
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		log.Printf("Imported unit %s (%d strategies)", unit.ID, len(unit.Strategies))

	case *reset:
		if *unitID == "" {
			log.Fatal("-reset requires -unit")
		}
		if err := units.ResetAbsorbed(*unitID); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		log.Printf("Reset absorbed set of %s", *unitID)

	case *del:
		if *unitID == "" {
			log.Fatal("-delete requires -unit")
		}
		existed, err := units.Delete(*unitID)
		if err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		if !existed {
			log.Fatalf("Unit %s not found", *unitID)
		}
		log.Printf("Deleted %s", *unitID)

	case *unitID != "":
		unit, err := units.Get(*unitID)
		if err != nil {
			log.Fatalf("Failed to load unit: %v", err)
		}
		fmt.Printf("%s (profile %s, v%d)\n", unit.ID, unit.Profile, unit.Meta.Version)
		fmt.Printf("  absorbed: %d experiences\n", len(unit.AbsorbedIDs))
		if len(unit.Meta.MergedFrom) > 0 {
			fmt.Printf("  merged from: %s\n", strings.Join(unit.Meta.MergedFrom, ", "))
		}
		for _, s := range unit.Strategies {
			fmt.Printf("  - [%s] %s: %s\n", s.Level, s.Name, s.Trigger)
		}

	case *profile != "":
		list, err := units.List(*profile)
		if err != nil {
			log.Fatalf("Failed to list units: %v", err)
		}
		for _, unit := range list {
			fmt.Printf("%s  v%d  %d strategies  %d experiences\n",
				unit.ID, unit.Meta.Version, len(unit.Strategies), len(unit.AbsorbedIDs))
		}

	default:
		log.Fatal("Usage: units -profile <name> | -unit <id> | -merge a,b -into c | -unit <id> -export <path> | -import <path> [-remap id]")
	}
}
