package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"facequant/config"
	"facequant/internal/domain"
	"facequant/internal/usecase"
)

func main() {
	dir := flag.String("dir", "", "Directory of <label>/<name>.json embeddings")
	lines := flag.String("jsonl", "", "JSON lines written by 'facequant embed --dir'")
	cfgPath := flag.String("config", "", "Config file for the default thresholds")
	threshold := flag.Float64("threshold", 0, "Threshold to evaluate (default from config)")
	repFlag := flag.String("representation", "", "quantized or reduced (default inferred from input)")
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	flag.Parse()

	if (*dir == "") == (*lines == "") {
		fmt.Println("Usage: calibrate -dir ./embeddings | -jsonl embeddings.jsonl [-threshold 1.0]")
		fmt.Println("\nReports:")
		fmt.Println("  1. Genuine pair distances (same label)")
		fmt.Println("  2. Impostor pair distances (different labels)")
		fmt.Println("  3. False accept / reject rates and a suggested threshold")
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	var samples []domain.LabeledEmbedding
	var rep domain.Representation
	var err error
	if *dir != "" {
		samples, rep, err = loadDir(*dir)
	} else {
		samples, rep, err = loadLines(*lines)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading embeddings: %v\n", err)
		os.Exit(1)
	}

	if *repFlag != "" {
		rep, err = domain.ParseRepresentation(*repFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if rep == "" {
		rep = domain.RepresentationQuantized
	}

	t := *threshold
	if t == 0 {
		t = cfg.Thresholds.Quantized
		if rep == domain.RepresentationReduced {
			t = cfg.Thresholds.Reduced
		}
	}

	report, err := usecase.Calibrate(samples, t)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return
	}

	labels := make(map[string]int)
	for _, s := range samples {
		labels[s.Label]++
	}

	fmt.Println("THRESHOLD CALIBRATION")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Samples:        %d (%d identities)\n", len(samples), len(labels))
	fmt.Printf("Representation: %s\n", rep)
	fmt.Println()

	printStats("Genuine pairs", report.Genuine)
	printStats("Impostor pairs", report.Impostor)

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("At threshold %.4g:\n", report.Threshold)
	fmt.Printf("  False accept rate: %.2f%%\n", report.FalseAcceptRate*100)
	fmt.Printf("  False reject rate: %.2f%%\n", report.FalseRejectRate*100)
	fmt.Println()
	fmt.Printf("Suggested threshold: %.4g\n", report.SuggestedThreshold)
	fmt.Printf("  False accept rate: %.2f%%\n", report.SuggestedFAR*100)
	fmt.Printf("  False reject rate: %.2f%%\n", report.SuggestedFRR*100)

	if report.Genuine.Max < report.Impostor.Min {
		fmt.Println("  Status: SEPARABLE - genuine and impostor distances do not overlap")
	} else {
		fmt.Println("  Status: OVERLAP - some pairs will be misclassified at any threshold")
	}
}

func printStats(name string, s usecase.DistanceStats) {
	fmt.Printf("%s (%d):\n", name, s.Count)
	fmt.Printf("  min %.4f  mean %.4f  max %.4f\n\n", s.Min, s.Mean, s.Max)
}
