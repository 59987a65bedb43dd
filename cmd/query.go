package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-query/internal/ai"
	"github.com/spigell/resume-query/internal/answer"
	"github.com/spigell/resume-query/internal/index"
	"github.com/spigell/resume-query/internal/retrieval"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var anotherQuery = promptui.Select{
	Label: "Ask another question?",
	Items: []string{PromptYes, PromptNo},
}

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a recruiter question about the indexed candidates",
	Long: "Answer a recruiter question about the indexed candidates. Without arguments " +
		"the question is read interactively.",
	Run: func(cmd *cobra.Command, args []string) {
		showEvidence, _ := cmd.Flags().GetBool("show-evidence")
		query(args, showEvidence)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().Bool("show-evidence", false, "log the merged evidence sent to the model")
}

type asker struct {
	engine   *retrieval.Engine
	answerer *answer.Generator
	logger   *zap.Logger
	evidence bool
}

func query(args []string, showEvidence bool) {
	ctx, stop, config, logger := bootstrap()
	defer stop()

	svc, err := newServices(ctx, config, logger)
	if err != nil {
		logger.Fatal("configuring ai provider", zap.Error(err))
	}

	store, err := openIndex(ctx, svc)
	if err != nil {
		if errors.Is(err, index.ErrUnavailable) {
			logger.Fatal("index is not available; run the ingest or index command first", zap.Error(err))
		}
		logger.Fatal("opening index", zap.Error(err))
	}
	defer store.Close()

	logger.Debug("index opened", zap.String("path", store.Path()), zap.Int("chunks", store.Len()))

	q := config.Query
	if q == nil {
		q = &QueryConfig{Variants: retrieval.DefaultVariants, TopK: retrieval.DefaultTopK, Compress: true}
	}

	a := &asker{
		engine: retrieval.NewEngine(retrieval.Config{
			Variants: q.Variants,
			TopK:     q.TopK,
			Compress: q.Compress,
			Timeout:  callerTimeout,
		}, retrieval.Deps{
			Generator: svc.text,
			Embedder:  svc.embedder,
			Searcher:  store,
			Logger:    logger,
		}),
		answerer: answer.NewGenerator(svc.json, callerTimeout, logger),
		logger:   logger,
		evidence: showEvidence,
	}

	for _, status := range retrieval.Describe(a.engine.Stages()) {
		logger.Debug("retrieval stage configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	if len(args) > 0 {
		if err := a.ask(ctx, strings.Join(args, " ")); err != nil {
			logger.Fatal("answering query", zap.Error(err))
		}
		return
	}

	if err := a.interactive(ctx); err != nil {
		logger.Fatal("interactive session", zap.Error(err))
	}
}

// openIndex loads the persisted index. When it is unavailable and ingestion
// on demand is enabled, the index is rebuilt from the records file, ingesting
// the resumes first if there are no records.
func openIndex(ctx context.Context, svc *services) (*index.SQLiteStore, error) {
	store, err := index.Load(ctx, svc.config.IndexPath, svc.logger)
	if err == nil {
		return store, nil
	}

	onDemand := svc.config.Query == nil || svc.config.Query.IngestOnDemand
	if !errors.Is(err, index.ErrUnavailable) || !onDemand {
		return nil, err
	}

	svc.logger.Info("index is not available; building it", zap.String("index", svc.config.IndexPath), zap.Error(err))

	records, err := svc.loadRecords(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no candidate records to index", index.ErrUnavailable)
	}

	return svc.rebuildIndex(ctx, records)
}

func (a *asker) interactive(ctx context.Context) error {
	input := promptui.Prompt{
		Label: "Query",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("query must not be empty")
			}
			return nil
		},
	}

	for {
		text, err := input.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := a.ask(ctx, text); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("answering query", zap.Error(err))
		}

		_, selected, err := anotherQuery.Run()
		if err != nil || selected == PromptNo {
			return nil
		}
	}
}

// ask answers one query and prints the answer to stdout.
func (a *asker) ask(ctx context.Context, text string) error {
	log := a.logger.With(zap.String("query", text))

	ev, err := a.engine.Retrieve(ctx, text)
	if err != nil {
		if ai.IsTimeout(err) {
			log.Warn("retrieval timed out; consider raising ai.timeout")
		}
		return fmt.Errorf("retrieve evidence: %w", err)
	}

	log.Info("evidence merged", zap.Strings("unique_ids", ev.UniqueIDs()), zap.Int("candidates", ev.Len()))
	if a.evidence {
		log.Info("evidence", zap.String("text", ev.Text()))
	}

	ans, err := a.answerer.Answer(ctx, text, ev.Text())
	if err != nil {
		var parseErr *answer.ParseError
		if errors.As(err, &parseErr) {
			fmt.Println("Model returned invalid JSON. Raw output:")
			fmt.Println(parseErr.Raw)
		}
		if ai.IsTimeout(err) {
			log.Warn("answer generation timed out; consider raising ai.timeout")
		}
		return err
	}

	out, err := ans.Indent()
	if err != nil {
		return err
	}

	fmt.Println(out)
	log.Info("query answered", zap.Int("candidates", len(ans.Candidates)))
	return nil
}
