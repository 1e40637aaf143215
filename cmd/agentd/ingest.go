package main

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/threadwise/agentd/config"
	"github.com/threadwise/agentd/internal/ingest"
	"github.com/threadwise/agentd/internal/store"
	"github.com/threadwise/agentd/provider"
)

// buildIngestService wires the embedding pipeline for one-shot CLI use.
func buildIngestService(cfgPath string) (*ingest.Service, *config.Config, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.NewWithDSN(context.Background(), cfg.Storage.Postgres.DSN())
	if err != nil {
		return nil, nil, err
	}
	llm, err := provider.NewProvider(provider.OpenAI, provider.Options{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		CompletionModel: cfg.LLM.CompletionModel,
		EmbeddingModel:  cfg.LLM.EmbeddingModel,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		Timeout:         cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger := log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	svc, err := ingest.NewService(st, llm, cfg.Embedding, cfg.LLM.EmbeddingModel, logger)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

func ingestCMD() *cobra.Command {
	var cfgPath string
	var mediaType string

	var cmd = &cobra.Command{
		Use:   "ingest FILE",
		Short: "Embed a local file into the vector store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildIngestService(cfgPath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			filename := filepath.Base(args[0])
			if mediaType == "" {
				mediaType = mime.TypeByExtension(filepath.Ext(filename))
			}
			res, err := svc.IngestBytes(cmd.Context(), data, mediaType, filename, "")
			if err != nil {
				return err
			}
			fmt.Printf("ingested %s: document %s, %d chunks, %d characters\n",
				res.Filename, res.DocumentID, res.Chunks, res.TextLength)
			return nil
		},
	}
	cmd.Flags().StringVar(&mediaType, "type", "", "media type (default: inferred from extension)")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
