package command

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/unitrack-go/internal/cli/config"
	"github.com/yndnr/unitrack-go/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:   "shell",
		Usage:  "Start an interactive shell sharing one session",
		Action: shell,
	}
}

func shell(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	// Hydrate once so a broken store fails before the prompt appears.
	if _, err := rt.Sessions(); err != nil {
		return err
	}

	historyFile := rt.Config.HistoryFile
	if historyFile == "" {
		historyFile = filepath.Join(config.Dir(), "history")
	}

	r := repl.New(Executor(rt),
		repl.WithIO(rt.Stdin, rt.Stdout),
		repl.WithCompleter(repl.NewCompleter(commandPaths(newApp(rt).Commands))),
		repl.WithHistory(repl.NewHistory(historyFile)),
	)
	return r.Run(c.Context)
}

// Executor runs shell lines as unitrack-cli invocations against rt.
func Executor(rt *Runtime) repl.Executor {
	return func(ctx context.Context, args []string) error {
		app := newApp(rt)
		return app.RunContext(ctx, append([]string{app.Name}, args...))
	}
}

// commandPaths lists "cmd" and "cmd sub" for completion.
func commandPaths(cmds []*cli.Command) []string {
	var out []string
	for _, cmd := range cmds {
		out = append(out, cmd.Name)
		for _, sub := range cmd.Subcommands {
			out = append(out, cmd.Name+" "+sub.Name)
		}
	}
	sort.Strings(out)
	return out
}
