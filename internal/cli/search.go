package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	cwfsearch "github.com/whiteboxllms/clever-widget-factory-sub018/pkg/sdk"
)

var (
	searchOrg            string
	searchTypes          []string
	searchLimit          int
	searchDebug          bool
	searchJSON           bool
	searchConversational bool
	searchVerbose        bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a catalog search without the HTTP service",
	Long: `Run the full search pipeline against the configured store and
embedding provider.

Examples:
  cwfctl search "hot sauce under 30 but not spicy"
  cwfctl search --type product --limit 5 "fresh tomatoes"
  cwfctl search --debug --json "cordless drill below 1500"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchOrg, "org", "", "organization to search (default: auth.default_org)")
	searchCmd.Flags().StringSliceVarP(&searchTypes, "type", "t", nil, "restrict to entity types")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchDebug, "debug", false, "include the decision trace")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.Flags().BoolVar(&searchConversational, "conversational", false, "add intent and follow-up suggestion")
	searchCmd.Flags().BoolVarP(&searchVerbose, "verbose", "v", false, "log SDK operations to stderr")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	org := searchOrg
	if org == "" {
		org = cfg.Auth.DefaultOrg
	}
	if org == "" {
		return fmt.Errorf("--org is required when auth.default_org is not configured")
	}

	ctx := cmd.Context()
	client, err := openClient(ctx, cfg, searchVerbose)
	if err != nil {
		return err
	}
	defer client.Close()

	opts := []cwfsearch.SearchOption{cwfsearch.Limit(searchLimit)}
	if len(searchTypes) > 0 {
		opts = append(opts, cwfsearch.Types(searchTypes...))
	}
	if searchDebug {
		opts = append(opts, cwfsearch.Debug())
	}

	q := strings.Join(args, " ")
	w := cmd.OutOrStdout()

	if searchConversational {
		resp, err := client.SearchConversational(ctx, org, q, opts...)
		if err != nil {
			return fmt.Errorf("%s: %w", cwfsearch.ErrorCode(err), err)
		}
		if searchJSON {
			return writeJSON(w, resp)
		}
		printResponse(w, &resp.Response)
		_, _ = fmt.Fprintf(w, "\nintent:    %s\nfollow-up: %s\n", resp.Intent, resp.FollowUp)
		return nil
	}

	resp, err := client.Search(ctx, org, q, opts...)
	if err != nil {
		return fmt.Errorf("%s: %w", cwfsearch.ErrorCode(err), err)
	}
	if searchJSON {
		return writeJSON(w, resp)
	}
	printResponse(w, resp)
	return nil
}

// printResponse renders results as a numbered list.
func printResponse(w io.Writer, resp *cwfsearch.Response) {
	q := resp.Query
	_, _ = fmt.Fprintf(w, "query: %q", q.SemanticQuery)
	if q.PriceMin != nil || q.PriceMax != nil {
		_, _ = fmt.Fprintf(w, "  price: %s..%s", formatBound(q.PriceMin), formatBound(q.PriceMax))
	}
	if len(q.NegatedTerms) > 0 {
		_, _ = fmt.Fprintf(w, "  excluding: %s", formatList(q.NegatedTerms))
	}
	_, _ = fmt.Fprintln(w)

	if len(resp.Results) == 0 {
		_, _ = fmt.Fprintln(w, "No results found.")
	}
	for i, r := range resp.Results {
		_, _ = fmt.Fprintf(w, "%2d. %s [%s] %.2f %s\n", i+1, r.Name, r.EntityType, r.Similarity, r.Relevance)
		for _, p := range r.SellingPoints {
			_, _ = fmt.Fprintf(w, "      + %s\n", p)
		}
		if r.StockStatus != "" {
			_, _ = fmt.Fprintf(w, "      stock: %s\n", r.StockStatus)
		}
		if r.FreshnessStatus != "" {
			_, _ = fmt.Fprintf(w, "      freshness: %s\n", r.FreshnessStatus)
		}
		if len(r.Complements) > 0 {
			_, _ = fmt.Fprintf(w, "      goes with: %s\n", formatList(r.Complements))
		}
	}

	if d := resp.Debug; d != nil {
		_, _ = fmt.Fprintf(w, "\ntrace %s (%d dims, %s)\n", d.TraceID, d.Dimensions, d.Elapsed)
		_, _ = fmt.Fprintf(w, "  query: %s\n", d.BuiltQuery)
		for _, e := range d.Events {
			_, _ = fmt.Fprintf(w, "  %s\n", describeEvent(e))
		}
	}
}

func describeEvent(e cwfsearch.TraceEvent) string {
	switch {
	case e.State != "":
		return fmt.Sprintf("%-18s %-17s %.3fms", e.Kind, e.State, e.DurationMS)
	case e.Term != "" && e.CandidateID != "":
		sim := "-"
		if e.Similarity != nil {
			sim = fmt.Sprintf("%.2f", *e.Similarity)
		}
		return fmt.Sprintf("%-18s %s vs %q %s (%s, %s)", e.Kind, e.CandidateID, e.Term, e.Decision, sim, e.Strategy)
	case e.Message != "":
		return fmt.Sprintf("%-18s %s", e.Kind, e.Message)
	default:
		return e.Kind
	}
}
