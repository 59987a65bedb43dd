package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var skipIndex bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract candidate records from every PDF resume and rebuild the index",
	Run: func(_ *cobra.Command, _ []string) {
		ctx, stop, config, logger := bootstrap()
		defer stop()

		svc, err := newServices(ctx, config, logger)
		if err != nil {
			logger.Fatal("configuring ai provider", zap.Error(err))
		}

		result, err := svc.ingest(ctx)
		if err != nil {
			logger.Fatal("ingesting resumes", zap.Error(err))
		}

		logger.Info("ingestion summary",
			zap.String("records", config.Records),
			zap.Int("ingested", len(result.Records)),
			zap.Int("failed", len(result.Failures)),
			zap.Int("unparseable", len(result.ParseFailures())),
		)

		if skipIndex {
			return
		}

		store, err := svc.rebuildIndex(ctx, result.Records)
		if err != nil {
			logger.Fatal("indexing candidate records", zap.Error(err))
		}
		defer store.Close()
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&skipIndex, "skip-index", false, "write the records file without rebuilding the index")
	rootCmd.AddCommand(ingestCmd)
}
