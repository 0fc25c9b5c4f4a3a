package ai

import (
	"fmt"
	"strings"
)

// questionPrompt renders a question and its option list for providers that
// receive the options in-prompt.
func questionPrompt(question string, options []string) string {
	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n\nOptions:\n")
	for i, opt := range options {
		fmt.Fprintf(&b, "%d. %s\n", i, opt)
	}
	return b.String()
}
