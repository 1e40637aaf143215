package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func searchCMD() *cobra.Command {
	var cfgPath string
	var topK int
	var keyword bool

	var cmd = &cobra.Command{
		Use:   "search QUERY",
		Short: "Search ingested documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := buildIngestService(cfgPath)
			if err != nil {
				return err
			}
			if topK <= 0 {
				topK = cfg.Embedding.SearchTopK
			}
			search := svc.Search
			if keyword {
				search = svc.KeywordSearch
			}
			hits, err := search(cmd.Context(), args[0], topK)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("no results")
				return nil
			}
			for i, h := range hits {
				fmt.Printf("%d. [%.4f] %v\n   %s\n", i+1, h.Score, h.Metadata["fileName"], h.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of results (default: embedding.search_top_k)")
	// The keyword index is process-local, so this flag only finds documents
	// ingested in the same invocation.
	cmd.Flags().BoolVar(&keyword, "keyword", false, "use the keyword index instead of vector search")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
