// Package repl provides the interactive shell of unitrack-cli.
//
// Each line is split with shell-style quoting and handed to an Executor,
// which runs it against the same session and client as the previous line.
// A line ending in "?" lists the commands that complete it; "history"
// prints past lines, and "exit" or "quit" leaves the shell.
package repl
