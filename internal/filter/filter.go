package filter

import (
	"regexp"
	"strings"

	"school-inbox/internal/config"
	"school-inbox/internal/model"
)

// ResolveChannel returns the channel of the first roster key contained in
// sender, or "" when no key matches.
func ResolveChannel(sender string, roster config.Roster) string {
	for _, e := range roster {
		if strings.Contains(sender, e.Key) {
			return e.Channel
		}
	}
	return ""
}

// Engine decides which listing rows and messages are kept.
type Engine struct {
	Roster    config.Roster
	Relevance *regexp.Regexp
}

// Channel resolves sender; ok is false when the sender is not on the roster.
func (e *Engine) Channel(sender string) (channel string, ok bool) {
	channel = ResolveChannel(sender, e.Roster)
	return channel, channel != ""
}

// Relevant reports whether the message body matches the relevance pattern
// anywhere. A nil pattern keeps everything.
func (e *Engine) Relevant(msg model.Message) bool {
	if e.Relevance == nil {
		return true
	}
	return e.Relevance.MatchString(msg.Text)
}

// IsUnread reports whether a listing cell style marks the message unread,
// i.e. declares font-weight: bold.
func IsUnread(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		prop, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(prop), "font-weight") && strings.EqualFold(strings.TrimSpace(value), "bold") {
			return true
		}
	}
	return false
}
