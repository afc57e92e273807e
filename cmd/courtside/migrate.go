package main

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/courtside/internal/logger"
	"github.com/kailas-cloud/courtside/internal/repository/reviewfile"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Ingest reviews from a JSON export",
		Long: "Load reviews from a JSON file, encode them and append them to the index.\n" +
			"Formats: reviews (ingest API shape), catalog (shoe catalog export), scrape (scraper dump).",
		RunE: runMigrate,
	}
	cmd.Flags().StringP("file", "f", "", "path to the JSON file")
	cmd.Flags().String("format", string(reviewfile.FormatReviews), "input format: reviews, catalog, scrape")
	cmd.Flags().Int("batch-size", 0, "reviews per ingest batch (default retrieval.max_ingest_batch)")
	cmd.Flags().Bool("dry-run", false, "parse and validate without ingesting")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	formatName, _ := cmd.Flags().GetString("format")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	out := cmd.OutOrStdout()

	format, err := reviewfile.ParseFormat(formatName)
	if err != nil {
		return err
	}

	batch, err := reviewfile.Load(path, format)
	if err != nil {
		return fmt.Errorf("loading reviews: %w", err)
	}

	a, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := a.logger.With(zap.String("file", path), zap.String("format", string(format)))
	for _, s := range batch.Skipped {
		logger.Warn("Skipping invalid entry", zap.String("entry", s.Entry), zap.Error(s.Err))
	}
	logger.Info("Loaded review file",
		zap.Int("reviews", len(batch.Reviews)),
		zap.Int("skipped", len(batch.Skipped)),
	)

	if dryRun {
		_, err := fmt.Fprintf(out, "%d reviews valid, %d skipped (dry run)\n", len(batch.Reviews), len(batch.Skipped))
		return err
	}

	if batchSize <= 0 {
		batchSize = a.cfg.Retrieval.MaxIngestBatch
	}
	ctx := logpkg.ContextWithLogger(cmd.Context(), logger)

	added, persisted := 0, true
	for i, chunk := range lo.Chunk(batch.Reviews, batchSize) {
		res, err := a.retrieval.AddReviews(logpkg.With(ctx, zap.Int("batch", i)), chunk)
		if err != nil {
			return fmt.Errorf("ingesting batch %d (%d reviews already added): %w", i, added, err)
		}
		added += res.Added
		persisted = persisted && (res.Persisted || a.backend == nil)
	}

	st := a.retrieval.Stats()
	if _, err := fmt.Fprintf(out, "added %d reviews, skipped %d, index now holds %d documents\n",
		added, len(batch.Skipped), st.DocumentCount); err != nil {
		return err
	}
	if !persisted {
		_, err := fmt.Fprintln(out, "warning: some batches were not persisted, see logs")
		return err
	}
	return nil
}
