package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	adkmemory "google.golang.org/adk/memory"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

// minResponseLength skips sessions whose agent replies are too short to be
// worth summarizing.
const minResponseLength = 20

// MemoryService implements the ADK memory.Service interface on top of the
// memory service, so an ADK runner can use the store as long-term memory.
type MemoryService struct {
	svc *service.Service
}

// NewMemoryService creates a new ADK memory service.
func NewMemoryService(svc *service.Service) *MemoryService {
	return &MemoryService{svc: svc}
}

// AddSession implements memory.Service interface.
// It turns the session transcript into a chat log and runs it through the
// write pipeline. Sessions where the agent already called remember_memory are
// skipped to avoid duplicates.
func (m *MemoryService) AddSession(ctx context.Context, sess session.Session) error {
	var chatLog []string
	var hasUser, hasExplicitSave bool
	agentChars := 0

	for event := range sess.Events().All() {
		if event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			if part.FunctionCall != nil && part.FunctionCall.Name == RememberToolName {
				hasExplicitSave = true
			}
		}

		text := strings.Join(extractTextFromContent([]*genai.Content{event.Content}), " ")
		if strings.TrimSpace(text) == "" {
			continue
		}
		author := event.Author
		if author == "" {
			author = "agent"
		}
		if author == "user" {
			hasUser = true
		} else {
			agentChars += len(text)
		}
		chatLog = append(chatLog, author+": "+text)
	}

	if hasExplicitSave || !hasUser || agentChars <= minResponseLength {
		return nil
	}

	sessionID, err := json.Marshal(sess.ID())
	if err != nil {
		return fmt.Errorf("failed to encode session id: %w", err)
	}
	_, err = m.svc.Remember(ctx, service.RememberRequest{
		ChatLog: chatLog,
		Context: fmt.Sprintf("ADK session %s (app %s, user %s)", sess.ID(), sess.AppName(), sess.UserID()),
		Source:  "adk",
		Metadata: map[string]json.RawMessage{
			"session_id": sessionID,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to save session to memory: %w", err)
	}
	return nil
}

// Search implements memory.Service interface.
// It recalls memories similar to the query and returns them as text entries.
func (m *MemoryService) Search(ctx context.Context, req *adkmemory.SearchRequest) (*adkmemory.SearchResponse, error) {
	res, err := m.svc.Recall(ctx, service.RecallRequest{Query: req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to recall memories: %w", err)
	}

	memories := make([]adkmemory.Entry, 0, len(res.Results))
	for _, hit := range res.Results {
		contentParts := genai.Text(service.EmbeddingText(hit.Heading, hit.Summary))
		if len(contentParts) == 0 {
			continue
		}
		memories = append(memories, adkmemory.Entry{
			Content:   contentParts[0],
			Author:    "memory",
			Timestamp: hit.CreatedAt,
		})
	}

	return &adkmemory.SearchResponse{Memories: memories}, nil
}

// extractTextFromContent extracts text from genai.Content parts
func extractTextFromContent(content []*genai.Content) []string {
	var texts []string
	for _, c := range content {
		for _, part := range c.Parts {
			if text := part.Text; text != "" {
				texts = append(texts, text)
			}
		}
	}
	return texts
}

var _ adkmemory.Service = (*MemoryService)(nil)
