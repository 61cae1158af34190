package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/api"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/memory"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	tagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
)

const previewWidth = 100

// render writes v as indented JSON when --json is set, and calls human otherwise.
func render(cmd *cobra.Command, v any, human func(io.Writer)) error {
	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(w)
	return nil
}

func printRemembered(w io.Writer, res *service.RememberResult) {
	fmt.Fprintf(w, "%s remembered %s\n", successMark, idStyle.Render(res.MemoryID))
	fmt.Fprintf(w, "  %s\n", headingStyle.Render(res.Heading))
	fmt.Fprintf(w, "  %s\n", memory.Snippet(oneLine(res.Summary), previewWidth))
}

func printRecall(w io.Writer, res *service.RecallResult) {
	if len(res.Results) == 0 {
		fmt.Fprintln(w, "No related memories found.")
		return
	}
	for i, hit := range res.Results {
		printHit(w, i+1, fmt.Sprintf("similarity: %.4f", hit.Similarity), hit.ID, hit.Heading, hit.Summary, hit.CreatedAt, hit.Tags)
	}
}

func printSearch(w io.Writer, res *service.SearchResult) {
	if len(res.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for i, hit := range res.Results {
		printHit(w, i+1, fmt.Sprintf("score: %.4f", hit.Score), hit.ID, hit.Heading, hit.Summary, hit.CreatedAt, hit.Tags)
	}
}

func printHit(w io.Writer, rank int, score, id, heading, summary string, createdAt time.Time, tags []string) {
	fmt.Fprintf(w, "  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(score),
		idStyle.Render(id),
	)
	fmt.Fprintf(w, "  %s\n", headingStyle.Render(heading))
	fmt.Fprintf(w, "  %s\n", memory.Snippet(oneLine(summary), previewWidth))
	fmt.Fprintf(w, "  %s%s\n\n", dimStyle.Render(createdAt.Local().Format(time.DateTime)), formatTags(tags))
}

func printMemoryList(w io.Writer, memories []api.MemoryResponse) {
	if len(memories) == 0 {
		fmt.Fprintln(w, "No memories stored yet.")
		return
	}
	for _, m := range memories {
		fmt.Fprintf(w, "  %s  %s  %s%s\n",
			dimStyle.Render(m.CreatedAt.Local().Format(time.DateTime)),
			idStyle.Render(m.ID),
			headingStyle.Render(m.Heading),
			formatTags(m.Tags),
		)
	}
}

func printMemory(w io.Writer, m api.MemoryResponse) {
	fmt.Fprintf(w, "%s\n", headingStyle.Render(m.Heading))
	fmt.Fprintf(w, "%s  %s\n", dimStyle.Render("id"), idStyle.Render(m.ID))
	fmt.Fprintf(w, "%s  %s  %s  %.2f\n",
		dimStyle.Render("source"), m.Source,
		dimStyle.Render("importance"), m.Importance,
	)
	fmt.Fprintf(w, "%s  %s\n", dimStyle.Render("created"), m.CreatedAt.Local().Format(time.DateTime))
	if len(m.Tags) > 0 {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("tags"), formatTags(m.Tags))
	}

	fmt.Fprintf(w, "\n%s\n", m.Summary)
	if m.Context != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", dimStyle.Render("context"), m.Context)
	}

	if len(m.Metadata) > 0 {
		fmt.Fprintf(w, "\n%s\n", dimStyle.Render("metadata"))
		keys := make([]string, 0, len(m.Metadata))
		for k := range m.Metadata {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s = %s\n", k, m.Metadata[k])
		}
	}
}

func printStats(w io.Writer, st api.StatsResponse) {
	fmt.Fprintf(w, "%s %d\n", headingStyle.Render("memories"), st.TotalMemories)
	fmt.Fprintf(w, "%s %d\n", headingStyle.Render("tags"), st.TotalTags)
	if len(st.LastWeek) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", dimStyle.Render("created this week"))
	for _, d := range st.LastWeek {
		fmt.Fprintf(w, "  %s  %s\n", d.Day, rankStyle.Render(strings.Repeat("■", d.Count)))
	}
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(tags))
	for _, t := range tags {
		rendered = append(rendered, tagStyle.Render("#"+t))
	}
	return "  " + strings.Join(rendered, " ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
