package cli

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/cmd/launcher"
	"google.golang.org/adk/cmd/launcher/full"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/tools"
)

// recentTopics is how many recent headings are shown to the agent up front.
const recentTopics = 5

const agentLongDesc string = `Run a coding assistant with long-term memory.

The agent saves and recalls memories through its tools, and finished sessions
are consolidated into the store. Remaining arguments go to the ADK launcher.

Example:
  agent-recall agent console
  agent-recall agent web api webui`

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent [launcher args]",
		Short: "Run the coding agent with long-term memory",
		Long:  agentLongDesc,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, args)
		},
	}

	// Everything after the first positional argument belongs to the launcher.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	llmAgent, err := newLLMAgent(ctx, a)
	if err != nil {
		return err
	}

	config := &launcher.Config{
		AgentLoader:   agent.NewSingleLoader(llmAgent),
		MemoryService: tools.NewMemoryService(a.svc),
	}
	l := full.NewLauncher()
	if err := l.Execute(ctx, config, args); err != nil {
		return fmt.Errorf("failed to run agent: %w\n\n%s", err, l.CommandLineSyntax())
	}
	return nil
}

// newLLMAgent creates the agent with the memory tools and a system prompt
// listing what was remembered most recently.
func newLLMAgent(ctx context.Context, a *app) (agent.Agent, error) {
	limit := recentTopics
	recent, err := a.svc.Recent(ctx, &limit)
	if err != nil {
		a.logger.Warn("failed to load recent memories", zap.Error(err))
	}
	topics := make([]string, 0, len(recent))
	for _, m := range recent {
		topics = append(topics, m.Heading)
	}

	agentTools, err := tools.BuildTools(tools.ToolsConfig{Service: a.svc})
	if err != nil {
		return nil, fmt.Errorf("failed to build tools: %w", err)
	}

	llmModel, err := gemini.NewModel(ctx, a.cfg.Agent.Model, &genai.ClientConfig{
		APIKey:  a.cfg.LLM.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}

	llmAgent, err := llmagent.New(llmagent.Config{
		Name:        "recall_assistant",
		Description: "A coding assistant that remembers what it learned in earlier sessions",
		Model:       llmModel,
		Instruction: buildSystemPrompt(topics),
		Tools:       agentTools,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	a.logger.Info("agent initialized",
		zap.String("model", a.cfg.Agent.Model),
		zap.Int("recent_topics", len(topics)),
	)
	return llmAgent, nil
}

var systemPromptTmpl = template.Must(template.New("systemPrompt").Funcs(template.FuncMap{"inc": inc}).Parse(`
You are a senior software engineer helping a developer understand, debug and fix code.
You have a long-term memory of earlier sessions.

You can:
1. Recall memories similar to a problem with {{.RecallTool}}
2. Search memories by keyword with {{.SearchTool}}
3. Save what was learned with {{.RememberTool}}

{{- if .Topics }}

Recently remembered topics:
{{- range $idx, $topic := .Topics }}
{{ inc $idx }}. {{ $topic }}
{{- end }}
{{- end }}

When answering:
- Check your memory first when a problem may have come up before
- After solving a problem or making a decision, save it with {{.RememberTool}}
- Give clear, actionable advice
`))

// inc is a small helper for incrementing index
func inc(i int) int { return i + 1 }

// buildSystemPrompt renders the system prompt with recent memory headings.
func buildSystemPrompt(topics []string) string {
	data := struct {
		Topics       []string
		RememberTool string
		RecallTool   string
		SearchTool   string
	}{
		Topics:       topics,
		RememberTool: tools.RememberToolName,
		RecallTool:   tools.RecallToolName,
		SearchTool:   tools.SearchToolName,
	}

	var buf bytes.Buffer
	_ = systemPromptTmpl.Execute(&buf, data)
	return buf.String()
}
