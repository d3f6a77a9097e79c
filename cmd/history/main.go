package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"visiondemo/internal/model"
	"visiondemo/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/runs.db", "Run history database path")
	limit := flag.Int("limit", 20, "Number of runs to list")
	runID := flag.String("run", "", "Show the detections of one run")
	clearAll := flag.Bool("clear", false, "Delete every stored run")
	flag.Parse()

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		log.Fatalf("Database %s does not exist", *dbPath)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewRunRepository(db)

	switch {
	case *clearAll:
		total, err := repo.Count()
		if err != nil {
			log.Fatalf("Failed to count runs: %v", err)
		}
		if err := repo.DeleteAll(); err != nil {
			log.Fatalf("Failed to clear runs: %v", err)
		}
		fmt.Printf("✅ Deleted %d run(s)\n", total)

	case *runID != "":
		run, err := repo.GetByRunID(*runID)
		if err != nil {
			log.Fatalf("Failed to load run: %v", err)
		}
		if run == nil {
			log.Fatalf("Run %s not found", *runID)
		}
		detections, err := repo.GetDetections(run.ID)
		if err != nil {
			log.Fatalf("Failed to load detections: %v", err)
		}
		printRun(os.Stdout, run, detections)

	default:
		runs, err := repo.GetRecent(*limit)
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		printRuns(os.Stdout, runs)
	}
}

// percent renders a confidence fraction in [0, 1] as a percentage.
func percent(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}

func printRun(out io.Writer, run *model.RunRecord, detections []model.RunDetection) {
	fmt.Fprintf(out, "Run %s (%s, %s mode): %d image(s), %d detection(s), %s average\n",
		run.RunID, run.Scene, run.Mode, run.TotalImages, run.VehiclesDetected, percent(run.Confidence))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IMAGE\tFILE\tLABEL\tCONFIDENCE\tBOX")
	for _, d := range detections {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.0f,%.0f %.0fx%.0f\n",
			d.ImageIndex, d.FileName, d.Label, percent(d.Confidence), d.X, d.Y, d.Width, d.Height)
	}
	w.Flush()
}

func printRuns(out io.Writer, runs []model.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tFINISHED\tSCENE\tMODE\tIMAGES\tDETECTIONS\tAVG")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.RunID, r.FinishedAt.Format(time.DateTime), r.Scene, r.Mode,
			r.TotalImages, r.VehiclesDetected, percent(r.Confidence))
	}
	w.Flush()
}
