package llm

import (
	"bytes"
	"strings"
	"text/template"
)

// FallbackHeading is used when the model reply has no recognizable heading.
const FallbackHeading = "Technical Discussion Summary"

const systemPrompt = `You are an expert code assistant that summarizes developer conversations.
Focus on:
1. Meaningful code changes, implementations, and technical decisions
2. Problem-solving discussions and solutions
3. Architecture decisions and design patterns
4. Bug fixes and debugging insights
5. Library/framework usage and configurations

Ignore small talk, simple clarifications without code impact, and repeated content.

Generate:
1. A concise heading (max 10 words) that captures the main technical topic
2. A detailed summary that highlights key technical insights, code changes, and decisions made

Be specific about technical details, file names, functions, and implementation approaches mentioned.`

var userPromptTmpl = template.Must(template.New("userPrompt").Parse(`Please summarize this developer conversation:
{{if .Context}}
Context: {{.Context}}
{{end}}
Chat Log:
{{range .ChatLog}}{{.}}
{{end}}
Provide:
Heading: A brief title summarizing the main technical topic
Summary: A detailed summary of technical insights and code changes discussed`))

// buildUserPrompt renders the chat log and optional context into the request.
func buildUserPrompt(chatLog []string, chatContext string) string {
	data := struct {
		ChatLog []string
		Context string
	}{
		ChatLog: chatLog,
		Context: strings.TrimSpace(chatContext),
	}

	var buf bytes.Buffer
	_ = userPromptTmpl.Execute(&buf, data)
	return buf.String()
}

// ParseSummary extracts the heading and summary sections from a model reply.
// It accepts "Heading:" / "Summary:" labels with optional "1." / "2." numbering
// and markdown emphasis. A missing heading falls back to FallbackHeading and
// a missing summary to the whole reply.
func ParseSummary(reply string) (heading, summary string) {
	var (
		section      string
		summaryLines []string
	)

	for _, line := range strings.Split(strings.TrimSpace(reply), "\n") {
		line = strings.TrimSpace(line)
		label, rest, ok := sectionLabel(line)
		switch {
		case ok && label == "heading":
			section = "heading"
			if rest != "" {
				heading = rest
			}
		case ok && label == "summary":
			section = "summary"
			if rest != "" {
				summaryLines = append(summaryLines, rest)
			}
		case section == "summary" && line != "":
			summaryLines = append(summaryLines, line)
		case section == "heading" && line != "" && heading == "":
			heading = line
		}
	}

	heading = strings.Trim(heading, "*#\" ")
	summary = strings.TrimSpace(strings.Join(summaryLines, "\n"))
	if heading == "" {
		heading = FallbackHeading
	}
	if summary == "" {
		summary = strings.TrimSpace(reply)
	}
	return heading, summary
}

// sectionLabel recognizes "Heading: ..." style lines, tolerating list
// numbering and bold markers around the label.
func sectionLabel(line string) (label, rest string, ok bool) {
	s := strings.TrimLeft(line, "#*- ")
	if len(s) > 2 && s[0] >= '1' && s[0] <= '9' && s[1] == '.' {
		s = strings.TrimLeft(s[2:], " *")
	}
	name, after, found := strings.Cut(s, ":")
	if !found {
		return "", "", false
	}
	name = strings.ToLower(strings.Trim(name, "* "))
	if name != "heading" && name != "summary" {
		return "", "", false
	}
	return name, strings.TrimSpace(strings.Trim(after, "* ")), true
}
