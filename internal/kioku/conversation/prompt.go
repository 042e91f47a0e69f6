package conversation

import (
	"fmt"
	"strings"

	"github.com/bdobrica/kioku/internal/kioku/memory"
	"github.com/bdobrica/kioku/internal/kioku/persona"
)

// PassToken is the reply that means "stay silent".
const PassToken = "PASS"

// replyContext is what the router asked to gather for one reply.
type replyContext struct {
	summary   string
	recalled  []memory.ArchivalEntry
	webResult string
	direct    bool
	members   int
}

func buildSystemPrompt(p *persona.Persona, rc replyContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, chatting in a Matrix room.", p.Name)
	if q := p.QualityList(); q != "" {
		fmt.Fprintf(&b, " You are %s.", q)
	}
	b.WriteString(" Reply in plain text as yourself, without prefixing your name.\n")

	if rc.direct {
		b.WriteString("This is a private, one-to-one conversation.\n")
	} else if rc.members > 0 {
		fmt.Fprintf(&b, "This is a group conversation with %d members; speakers are shown as \"name: message\".\n", rc.members)
	} else {
		b.WriteString("This is a group conversation; speakers are shown as \"name: message\".\n")
	}

	if rc.summary != "" {
		b.WriteString("\nWhat you remember from earlier today:\n")
		b.WriteString(rc.summary)
		b.WriteString("\n")
	}
	if len(rc.recalled) > 0 {
		b.WriteString("\nThings you remember from before:\n")
		for _, e := range rc.recalled {
			fmt.Fprintf(&b, "- %s\n", e.Content)
		}
	}
	if rc.webResult != "" {
		b.WriteString("\nWeb search results:\n")
		b.WriteString(rc.webResult)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nIf you have nothing useful to add, reply with exactly %s.", PassToken)
	return b.String()
}

// cleanReply strips the speaker prefixes models tend to echo back.
func cleanReply(reply string, p *persona.Persona) string {
	reply = strings.TrimSpace(reply)
	prefixes := []string{p.DisplayName + ":", p.Name + ":", "AI:"}
	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range prefixes {
			if prefix == ":" {
				continue
			}
			if len(reply) >= len(prefix) && strings.EqualFold(reply[:len(prefix)], prefix) {
				reply = strings.TrimSpace(reply[len(prefix):])
				stripped = true
			}
		}
	}
	return reply
}

// isPass reports whether the model chose to stay silent.
func isPass(reply string) bool {
	r := strings.TrimRight(strings.TrimSpace(reply), ".!")
	return r == "" || strings.EqualFold(r, PassToken)
}
