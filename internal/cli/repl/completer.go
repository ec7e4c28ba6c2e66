package repl

import (
	"sort"
	"strings"
)

// Builtins are handled by the shell itself.
var Builtins = []string{"exit", "quit", "history"}

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over commands plus the builtins.
func NewCompleter(commands []string) *Completer {
	all := append(append([]string{}, commands...), Builtins...)
	sort.Strings(all)
	return &Completer{commands: all}
}

// Complete returns completion suggestions for the given prefix.
// Whitespace inside the prefix is collapsed.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.Join(strings.Fields(prefix), " ")
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
