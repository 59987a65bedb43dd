package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-query/internal/candidate"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the similarity index from the candidate records file",
	Run: func(_ *cobra.Command, _ []string) {
		ctx, stop, config, logger := bootstrap()
		defer stop()

		records, err := candidate.Load(config.Records)
		if err != nil {
			logger.Fatal("loading candidate records", zap.String("records", config.Records), zap.Error(err))
		}

		svc, err := newServices(ctx, config, logger)
		if err != nil {
			logger.Fatal("configuring ai provider", zap.Error(err))
		}

		store, err := svc.rebuildIndex(ctx, records)
		if err != nil {
			logger.Fatal("indexing candidate records", zap.Error(err))
		}
		defer store.Close()
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
