package assist

import (
	"fmt"
	"strings"

	"github.com/matheus3301/replykit/internal/store"
)

// transcriptWindow is how many of the supplied messages reach the prompt.
const transcriptWindow = 10

const (
	selfLabel    = "You"
	unknownLabel = "Them"
)

// RecentMessage is one line of the conversation the caller wants answered.
type RecentMessage struct {
	Text      string `json:"text"`
	IsFromMe  bool   `json:"is_from_me"`
	Timestamp int64  `json:"timestamp,string"`
}

type promptInput struct {
	Identifier string
	Name       string
	Contact    *store.ContactContext
	Status     []store.UserContextEntry
	Messages   []RecentMessage
	Additional string
	Count      int
}

func buildSuggestionPrompt(in promptInput) (system, user string) {
	addressee := in.Name
	if addressee == "" {
		addressee = in.Identifier
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are helping draft a response to %s.\n\n", addressee)
	if in.Contact != nil && in.Contact.BackgroundContext != "" {
		fmt.Fprintf(&b, "CONTACT CONTEXT:\n%s\n\n", in.Contact.BackgroundContext)
	}
	if in.Contact != nil && in.Contact.Formality != "" {
		fmt.Fprintf(&b, "FORMALITY LEVEL: %s\n\n", in.Contact.Formality)
	}
	if len(in.Status) > 0 {
		b.WriteString("YOUR CURRENT STATUS:\n")
		for _, s := range in.Status {
			fmt.Fprintf(&b, "- %s\n", s.Content)
		}
		b.WriteString("\n")
	}
	if extra := strings.TrimSpace(in.Additional); extra != "" {
		fmt.Fprintf(&b, "ADDITIONAL CONTEXT:\n%s\n\n", extra)
	}
	fmt.Fprintf(&b, `Generate %d response options that:
1. Match the formality and style of this conversation
2. Use relevant context from the contact's background
3. Consider your current status and availability
4. Sound natural and authentic

Respond with a JSON object of the form {"suggestions": ["...", "..."]}.`, in.Count)

	them := in.Name
	if them == "" {
		them = unknownLabel
	}
	return b.String(), fmt.Sprintf("Recent conversation:\n%s\n\nGenerate %d response suggestions:",
		transcript(window(in.Messages), them), in.Count)
}

// window keeps the newest transcriptWindow messages.
func window(msgs []RecentMessage) []RecentMessage {
	if len(msgs) <= transcriptWindow {
		return msgs
	}
	return msgs[len(msgs)-transcriptWindow:]
}

func transcript(msgs []RecentMessage, them string) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		label := them
		if m.IsFromMe {
			label = selfLabel
		}
		lines = append(lines, label+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

const styleSystemPrompt = `Analyze the formality level of these messages. Respond with a JSON object containing: { "formality": "casual" | "neutral" | "formal", "analysis": "brief explanation" }`
