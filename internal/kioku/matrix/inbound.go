package matrix

import (
	"strings"
	"time"
	"unicode/utf8"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Inbound is a text message from someone other than the agent.
type Inbound struct {
	RoomID  string
	EventID string
	Sender  string
	Body    string
	At      time.Time
	// Addressed is set when the agent is mentioned, named in the body, or
	// the room is direct.
	Addressed bool
	Direct    bool
	Members   int
}

// classify turns a room message into an Inbound. ok is false for our own
// messages and anything that is not plain text.
func classify(evt *event.Event, self id.UserID, names []string, members int) (Inbound, bool) {
	if evt.Sender == self {
		return Inbound{}, false
	}
	msg := evt.Content.AsMessage()
	if msg == nil || msg.MsgType != event.MsgText || strings.TrimSpace(msg.Body) == "" {
		return Inbound{}, false
	}

	in := Inbound{
		RoomID:  evt.RoomID.String(),
		EventID: evt.ID.String(),
		Sender:  evt.Sender.String(),
		Body:    msg.Body,
		At:      time.UnixMilli(evt.Timestamp),
		Direct:  members > 0 && members <= 2,
		Members: members,
	}
	in.Addressed = in.Direct || mentions(msg, self) || named(msg.Body, self, names)
	return in, true
}

func mentions(msg *event.MessageEventContent, self id.UserID) bool {
	if msg.Mentions == nil {
		return false
	}
	for _, u := range msg.Mentions.UserIDs {
		if u == self {
			return true
		}
	}
	return false
}

func named(body string, self id.UserID, names []string) bool {
	lower := strings.ToLower(body)
	if strings.Contains(lower, strings.ToLower(self.String())) {
		return true
	}
	for _, n := range names {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// truncate cuts s to at most max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
