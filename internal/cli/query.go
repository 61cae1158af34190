package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/api"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

type recallCommander struct {
	limit         int
	threshold     float64
	after         string
	before        string
	minImportance float64
	source        string
	tag           string
}

const recallLongDesc string = `Recall memories similar in meaning to the query.

Results are ordered by cosine similarity. Without a query the most recent
memories are listed.

Example:
  agent-recall recall "connection pool exhaustion"
  agent-recall recall "flaky tests" --tag ci --after 2025-01-01 --limit 3`

func newRecallCmd() *cobra.Command {
	cmder := &recallCommander{}

	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Recall memories by semantic similarity",
		Long:  recallLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", 0, "Maximum number of results (default from recall.limit)")
	cmd.Flags().Float64Var(&cmder.threshold, "threshold", 0, "Minimum similarity (default from recall.threshold)")
	cmd.Flags().StringVar(&cmder.after, "after", "", "Only memories created at or after this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&cmder.before, "before", "", "Only memories created at or before this date")
	cmd.Flags().Float64Var(&cmder.minImportance, "min-importance", 0, "Only memories at least this important")
	cmd.Flags().StringVar(&cmder.source, "source", "", "Only memories from this source")
	cmd.Flags().StringVar(&cmder.tag, "tag", "", "Only memories carrying this tag")

	return cmd
}

func (c *recallCommander) run(cmd *cobra.Command, query string) error {
	after, err := service.ParseDate(c.after, false)
	if err != nil {
		return err
	}
	before, err := service.ParseDate(c.before, true)
	if err != nil {
		return err
	}

	req := service.RecallRequest{
		Query:         query,
		DateFilter:    service.DateFilter{After: after, Before: before},
		MinImportance: c.minImportance,
		Source:        c.source,
		Tag:           c.tag,
	}
	if cmd.Flags().Changed("limit") {
		req.Limit = &c.limit
	}
	if cmd.Flags().Changed("threshold") {
		req.SimilarityThreshold = &c.threshold
	}

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.svc.Recall(cmd.Context(), req)
	if err != nil {
		return commandError("recall", err)
	}

	return render(cmd, res, func(w io.Writer) {
		printRecall(w, res)
	})
}

type searchCommander struct {
	limit  int
	hybrid bool
}

const searchLongDesc string = `Search memories by keyword.

Every word must appear in the memory. Heading matches rank above summary
matches, which rank above context matches. With --hybrid the keyword ranking
is fused with semantic similarity.

Example:
  agent-recall search "pgx pool"
  agent-recall search "retry backoff" --hybrid --limit 5`

func newSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories by keyword",
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", 0, "Maximum number of results (default from recall.limit)")
	cmd.Flags().BoolVar(&cmder.hybrid, "hybrid", false, "Fuse keyword and semantic rankings")

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command, query string) error {
	var limit *int
	if cmd.Flags().Changed("limit") {
		limit = &c.limit
	}

	// Only hybrid search needs the embedder.
	a, err := openApp(cmd, c.hybrid)
	if err != nil {
		return err
	}
	defer a.Close()

	search := a.svc.Search
	if c.hybrid {
		search = a.svc.Hybrid
	}
	res, err := search(cmd.Context(), query, limit)
	if err != nil {
		return commandError("search", err)
	}

	return render(cmd, res, func(w io.Writer) {
		printSearch(w, res)
	})
}

func newRecentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently created memories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var n *int
			if cmd.Flags().Changed("limit") {
				n = &limit
			}

			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			memories, err := a.svc.Recent(cmd.Context(), n)
			if err != nil {
				return commandError("recent", err)
			}

			out := make([]api.MemoryResponse, 0, len(memories))
			for i := range memories {
				out = append(out, api.NewMemoryResponse(&memories[i]))
			}
			return render(cmd, out, func(w io.Writer) {
				printMemoryList(w, out)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "k", 0, "Maximum number of memories (default from recall.limit)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show memory and tag counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.svc.Stats(cmd.Context())
			if err != nil {
				return commandError("stats", err)
			}

			out := api.NewStatsResponse(st)
			return render(cmd, out, func(w io.Writer) {
				printStats(w, out)
			})
		},
	}
}
