package llm

import "strings"

const (
	fenceJSON = "```json"
	fence     = "```"
)

// StripCodeFence removes a markdown code fence wrapped around a model reply.
// A leading "```json" or "```" and a trailing "```" are dropped; anything else is left as is.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, fenceJSON):
		s = s[len(fenceJSON):]
	case strings.HasPrefix(s, fence):
		s = s[len(fence):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), fence)
	return strings.TrimSpace(s)
}
