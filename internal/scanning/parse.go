package scanning

import (
	"strings"
)

// cleanTranscript tidies the text an LLM engine returns. Models sometimes wrap the
// transcription in markdown fences or add a lead-in line despite the prompt.
func cleanTranscript(text string) string {
	text = strings.TrimSpace(text)

	// Remove opening and closing markdown code blocks
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	// Normalize line endings so reading order is line by line
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		if i == 0 && isLeadIn(line) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// isLeadIn reports whether a line is chatter like "Here is the transcription:"
func isLeadIn(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	if !strings.HasSuffix(lower, ":") {
		return false
	}
	return strings.HasPrefix(lower, "here is") || strings.HasPrefix(lower, "here's") ||
		strings.HasPrefix(lower, "sure") || strings.Contains(lower, "transcription")
}
