// Package app wires configuration into a ready grading pipeline for the
// HTTP service, the Telegram bot and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"echo-grade/api/internal/config"
	"echo-grade/api/internal/embed/httpembed"
	"echo-grade/api/internal/grade/pipeline"
	"echo-grade/api/internal/grade/types"
	"echo-grade/api/internal/llm/gemini"
	"echo-grade/api/internal/store"
)

type Options struct {
	// NoDB skips Postgres; only uploaded answers can be graded.
	NoDB bool
}

type App struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	DB       *sql.DB          // nil with NoDB
	Answers  *store.AnswerRepo // nil with NoDB

	gemini *gemini.Client
}

func Build(ctx context.Context, cfg *config.Config, opt Options) (*App, error) {
	a := &App{Config: cfg}

	gc, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	a.gemini = gc

	sbert, e5, err := sentenceEmbedders(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	caps := types.Capabilities{
		Generator:        gc.Generator(cfg.GeminiModel),
		EquationEmbedder: gc.Embedder(cfg.GeminiEmbeddingModel),
		SBERT:            sbert,
		E5:               e5,
	}

	var answers pipeline.Store
	if !opt.NoDB {
		dsn := store.ResolveDSN()
		if a.DB, err = store.Open(ctx, dsn); err != nil {
			_ = a.Close()
			return nil, err
		}
		if err := store.Migrate(ctx, a.DB); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.Answers = store.NewAnswerRepo(a.DB)
		answers = a.Answers
	}

	a.Pipeline = pipeline.New(caps, answers, pipeline.Options{
		Weights:         cfg.Policy.Weights,
		SBERTPrefix:     cfg.Policy.SBERTPrefix,
		E5Prefix:        cfg.Policy.E5Prefix,
		ExtractParallel: cfg.Policy.ExtractParallel,
	})
	w := a.Pipeline.Weights()
	log.Printf("pipeline ready: gen=%s eq_embed=%s sbert=%s e5=%s weights=%.2f/%.2f/%.2f db=%v",
		cfg.GeminiModel, cfg.GeminiEmbeddingModel, cfg.SBERTModel, cfg.E5Model,
		w.Equation, w.SBERT, w.E5, a.DB != nil)
	return a, nil
}

// sentenceEmbedders builds the SBERT and E5 clients; both models are served
// by the same embeddings endpoint.
func sentenceEmbedders(cfg *config.Config) (*httpembed.Client, *httpembed.Client, error) {
	base := httpembed.Config{
		BaseURL: cfg.EmbeddingsURL,
		APIKey:  cfg.EmbeddingsAPIKey,
		Flavor:  cfg.EmbeddingsFlavor,
		Retries: 2,
		RPS:     cfg.EmbeddingsRPS,
	}
	sc, ec := base, base
	sc.Model = cfg.SBERTModel
	ec.Model = cfg.E5Model

	sbert, err := httpembed.New(sc)
	if err != nil {
		return nil, nil, fmt.Errorf("sbert embeddings: %w", err)
	}
	e5, err := httpembed.New(ec)
	if err != nil {
		return nil, nil, fmt.Errorf("e5 embeddings: %w", err)
	}
	return sbert, e5, nil
}

// Close releases the model client and the database.
func (a *App) Close() error {
	var errs []error
	if a.gemini != nil {
		errs = append(errs, a.gemini.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
