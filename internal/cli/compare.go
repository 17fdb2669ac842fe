package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"facequant/internal/domain"
	"facequant/internal/similarity"
)

var (
	compareThreshold      float64
	compareRepresentation string
	compareJSON           bool
)

var compareCmd = &cobra.Command{
	Use:   "compare <login.json> <reg.json>",
	Short: "Compare two stored embeddings",
	Long: `Compute the Euclidean distance between two embeddings and decide
whether they match. Inputs may be bare JSON arrays or embed output.

Examples:
  facequant compare login.json reg.json
  facequant compare a.json b.json --representation reduced --threshold 6.5`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().Float64Var(&compareThreshold, "threshold", 0, "match threshold (default from config for the representation)")
	compareCmd.Flags().StringVar(&compareRepresentation, "representation", "", "quantized or reduced (default inferred from input, else quantized)")
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "output as JSON")
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	login, loginRep, err := readVector(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	reg, regRep, err := readVector(args[1], cmd.InOrStdin())
	if err != nil {
		return err
	}

	rep := domain.RepresentationQuantized
	switch {
	case compareRepresentation != "":
		rep, err = domain.ParseRepresentation(compareRepresentation)
		if err != nil {
			return err
		}
	case loginRep != "" && regRep != "" && loginRep != regRep:
		return fmt.Errorf("inputs use different representations: %s vs %s", loginRep, regRep)
	case loginRep != "":
		rep = loginRep
	case regRep != "":
		rep = regRep
	}

	var result domain.ComparisonResult
	if cmd.Flags().Changed("threshold") {
		result, err = similarity.Compare(login, reg, compareThreshold)
		result.Representation = rep
	} else {
		comparator, cerr := newComparator(cfg)
		if cerr != nil {
			return cerr
		}
		result, err = comparator.Compare(rep, login, reg)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if compareJSON {
		body, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(out, string(body))
		return nil
	}

	verdict := "no match"
	if result.Match {
		verdict = "match"
	}
	fmt.Fprintf(out, "distance: %.6f (threshold %.4g, %s)\n", result.Distance, result.Threshold, result.Representation)
	fmt.Fprintln(out, verdict)
	return nil
}
