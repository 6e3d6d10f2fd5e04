package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cwfsearch "github.com/whiteboxllms/clever-widget-factory-sub018/pkg/sdk"
)

var rewriteJSON bool

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <query>",
	Short: "Show how a query is split into semantic text, price bounds and exclusions",
	Long: `Parse a natural-language query the same way the search service does.
No connection to the store or the embedding provider is made.

Examples:
  cwfctl rewrite "instant noodles under 20 pesos, no spicy"
  cwfctl rewrite --json "rice between 50 and 100"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRewrite,
}

func init() {
	rewriteCmd.Flags().BoolVar(&rewriteJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(rewriteCmd)
}

type rewriteOutput struct {
	SemanticQuery string   `json:"semantic_query"`
	PriceMin      *float64 `json:"price_min"`
	PriceMax      *float64 `json:"price_max"`
	NegatedTerms  []string `json:"negated_terms"`
	Notes         []string `json:"notes,omitempty"`
}

func runRewrite(cmd *cobra.Command, args []string) error {
	qc := cwfsearch.ParseQuery(strings.Join(args, " "))
	out := rewriteOutput{
		SemanticQuery: qc.SemanticQuery,
		PriceMin:      qc.PriceMin,
		PriceMax:      qc.PriceMax,
		NegatedTerms:  qc.NegatedTerms,
		Notes:         qc.Notes,
	}
	if out.NegatedTerms == nil {
		out.NegatedTerms = []string{}
	}

	w := cmd.OutOrStdout()
	if rewriteJSON {
		return writeJSON(w, out)
	}

	_, _ = fmt.Fprintf(w, "semantic:  %s\n", out.SemanticQuery)
	_, _ = fmt.Fprintf(w, "price_min: %s\n", formatBound(out.PriceMin))
	_, _ = fmt.Fprintf(w, "price_max: %s\n", formatBound(out.PriceMax))
	_, _ = fmt.Fprintf(w, "negated:   %s\n", formatList(out.NegatedTerms))
	for _, n := range out.Notes {
		_, _ = fmt.Fprintf(w, "note:      %s\n", n)
	}
	return nil
}

func formatBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
