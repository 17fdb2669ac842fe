package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"facequant/internal/domain"
	"facequant/internal/quantize"
)

var (
	quantizeBase float64
	quantizeBias float64
)

var quantizeCmd = &cobra.Command{
	Use:   "quantize [file|-]",
	Short: "Quantize a raw float embedding",
	Long: `Read a JSON array of floats and print its logarithmic quantization.
Reads stdin when the argument is "-" or omitted.

Examples:
  facequant quantize raw.json
  echo '[0.1, -0.2, 0.0]' | facequant quantize --bias 50`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuantize,
}

func init() {
	rootCmd.AddCommand(quantizeCmd)
	quantizeCmd.Flags().Float64Var(&quantizeBase, "base", 0, "logarithm base (default from config)")
	quantizeCmd.Flags().Float64Var(&quantizeBias, "bias", 0, "additive bias (default from config)")
}

func runQuantize(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	path := "-"
	if len(args) > 0 {
		path = args[0]
	}
	raw, _, err := readVector(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	base, bias := cfg.Quantizer.Base, cfg.Quantizer.Bias
	if cmd.Flags().Changed("base") {
		base = quantizeBase
	}
	if cmd.Flags().Changed("bias") {
		bias = quantizeBias
	}

	q, err := quantize.New(base, bias)
	if err != nil {
		return err
	}
	out, err := q.Compress(domain.RawEmbedding(raw))
	if err != nil {
		return err
	}

	body, err := json.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(body))
	return nil
}
