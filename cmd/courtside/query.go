package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/courtside/internal/domain/search/filter"
	"github.com/kailas-cloud/courtside/internal/domain/search/request"
	"github.com/kailas-cloud/courtside/internal/domain/search/result"
)

// cliPreviewLength caps document text printed by the search command.
const cliPreviewLength = 120

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Run a similarity search against the stored reviews",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	cmd.Flags().IntP("k", "k", 0, "number of results (default retrieval.default_k)")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	k, _ := cmd.Flags().GetInt("k")
	if k <= 0 {
		k = a.cfg.Retrieval.DefaultK
	}
	req, err := request.New(strings.Join(args, " "), min(k, a.cfg.Retrieval.MaxK), request.Preferences{})
	if err != nil {
		return err
	}

	results, err := a.retrieval.SimilaritySearch(cmd.Context(), req.Query(), req.K(), filter.Expression{})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return printResults(cmd.OutOrStdout(), results)
}

func newRouteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route QUERY",
		Short: "Print the routing decision for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRoute,
	}
	cmd.Flags().String("playstyle", "", "guard, forward, center, all_around")
	cmd.Flags().Float64("budget", 0, "maximum starting price in dollars")
	cmd.Flags().String("foot-type", "", "foot type, e.g. wide or narrow")
	cmd.Flags().StringSlice("injury", nil, "injury concerns, comma separated")
	return cmd
}

func runRoute(cmd *cobra.Command, args []string) error {
	playstyle, _ := cmd.Flags().GetString("playstyle")
	footType, _ := cmd.Flags().GetString("foot-type")
	injuries, _ := cmd.Flags().GetStringSlice("injury")
	var budget *float64
	if cmd.Flags().Changed("budget") {
		b, _ := cmd.Flags().GetFloat64("budget")
		budget = &b
	}
	prefs, err := request.NewPreferences(playstyle, budget, footType, injuries)
	if err != nil {
		return err
	}

	a, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	d := a.retrieval.Route(strings.Join(args, " "), prefs)
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "strategy: %s\nreason:   %s\n", d.Strategy, d.Reason)
	if len(d.Mentions) > 0 {
		_, _ = fmt.Fprintf(out, "mentions: %s\n", strings.Join(d.Mentions, ", "))
	}
	if len(d.Unknown) > 0 {
		_, _ = fmt.Fprintf(out, "unknown:  %s\n", strings.Join(d.Unknown, ", "))
	}
	for _, f := range d.Filter.Keys() {
		e, _ := d.Filter.Entry(f)
		_, _ = fmt.Fprintf(out, "filter:   %s %s\n", f, describeEntry(e))
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			st := a.retrieval.Stats()
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"documents: %d\nindex size: %d\nembedding dimension: %d\nknown models: %d\n",
				st.DocumentCount, st.IndexSize, st.EmbeddingDimension, st.KnownModels)
			return err
		},
	}
}

func printResults(out io.Writer, results []result.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(out, "no results")
		return err
	}
	for i := range results {
		doc := results[i].Document()
		md := doc.Meta()
		text := []rune(doc.Text())
		if len(text) > cliPreviewLength {
			text = append(text[:cliPreviewLength], []rune("...")...)
		}
		if _, err := fmt.Fprintf(out, "%d. [%.4f] %s (%s, #%d)\n   %s\n",
			i+1, results[i].Score(), md.ShoeModel, md.Source, results[i].Position(), string(text)); err != nil {
			return err
		}
	}
	return nil
}

func describeEntry(e filter.Entry) string {
	switch e.Kind() {
	case filter.KindExact:
		return "= " + e.Value()
	case filter.KindAnyOf:
		return "any of " + strings.Join(e.Values(), ", ")
	case filter.KindLessThan:
		return fmt.Sprintf("< %g", e.Bound())
	default:
		return e.Kind().String()
	}
}
