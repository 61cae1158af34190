package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/memory"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

type rememberCommander struct {
	file       string
	context    string
	tags       []string
	meta       []string
	source     string
	importance float64
}

const rememberLongDesc string = `Summarize a chat log and store it as a memory.

The chat log is read from --file, or from stdin when no file is given, one
message per line. Blank lines are ignored.

Example:
  agent-recall remember --file session.txt --tag postgres --tag perf
  pbpaste | agent-recall remember --context "repo: billing" --meta pr=412`

const rememberShortDesc string = "Store a chat log as a memory"

func newRememberCmd() *cobra.Command {
	cmder := &rememberCommander{}

	cmd := &cobra.Command{
		Use:   "remember",
		Short: rememberShortDesc,
		Long:  rememberLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Read the chat log from this file instead of stdin")
	cmd.Flags().StringVarP(&cmder.context, "context", "c", "", "Project or task context for the summary")
	cmd.Flags().StringArrayVarP(&cmder.tags, "tag", "t", nil, "Tag to attach (repeatable)")
	cmd.Flags().StringArrayVarP(&cmder.meta, "meta", "m", nil, "Metadata as key=value; JSON values are kept as JSON (repeatable)")
	cmd.Flags().StringVar(&cmder.source, "source", "cli", "Where the memory came from")
	cmd.Flags().Float64Var(&cmder.importance, "importance", memory.DefaultImportance, "Importance between 0 and 1")

	return cmd
}

func (c *rememberCommander) run(cmd *cobra.Command) error {
	in := cmd.InOrStdin()
	if c.file != "" {
		f, err := os.Open(c.file)
		if err != nil {
			return fmt.Errorf("opening chat log: %w", err)
		}
		defer f.Close()
		in = f
	}

	chatLog, err := readChatLog(in)
	if err != nil {
		return err
	}
	metadata, err := parseMetadata(c.meta)
	if err != nil {
		return err
	}

	req := service.RememberRequest{
		ChatLog:  chatLog,
		Context:  c.context,
		Tags:     c.tags,
		Metadata: metadata,
		Source:   c.source,
	}
	if cmd.Flags().Changed("importance") {
		req.Importance = &c.importance
	}

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.svc.Remember(cmd.Context(), req)
	if err != nil {
		return commandError("remember", err)
	}

	return render(cmd, res, func(w io.Writer) {
		printRemembered(w, res)
	})
}

// readChatLog returns the non-blank lines of r.
func readChatLog(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading chat log: %w", err)
	}
	if len(lines) == 0 {
		return nil, errors.New("chat log is empty")
	}
	return lines, nil
}

// parseMetadata turns key=value pairs into JSON values. A value that is not
// valid JSON is stored as a JSON string.
func parseMetadata(pairs []string) (map[string]json.RawMessage, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("metadata %q must be key=value", pair)
		}
		if json.Valid([]byte(value)) {
			out[key] = json.RawMessage(value)
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata %q: %w", key, err)
		}
		out[key] = raw
	}
	return out, nil
}

// commandError prefixes err with the operation and its kind.
func commandError(op string, err error) error {
	return fmt.Errorf("%s failed (%s): %w", op, memory.Kind(err), err)
}
