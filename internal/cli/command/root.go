package command

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/unitrack-go/internal/cli/config"
	"github.com/yndnr/unitrack-go/internal/cli/output"
	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/infra/buildinfo"
)

// Metadata keys on cli.App.
const (
	runtimeKey    = "runtime"
	ownRuntimeKey = "ownRuntime"
)

// App creates the CLI application.
func App() *cli.App {
	return newApp(nil)
}

// newApp builds the command tree. A non-nil rt is shared instead of being
// created from flags; the shell uses this for every line.
func newApp(rt *Runtime) *cli.App {
	app := &cli.App{
		Name:                 "unitrack-cli",
		Usage:                "UniTrack command-line client",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			WhoamiCommand(),
			SessionCommand(),
			RequestCommand(),
			ResourceCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before:   before,
		After:    after,
		Metadata: map[string]any{},
	}
	if rt == nil {
		app.Commands = append(app.Commands, ShellCommand())
	} else {
		app.Metadata[runtimeKey] = rt
		app.Writer = rt.Stdout
		app.ErrWriter = rt.Stderr
		app.HideVersion = true
		app.ExitErrHandler = func(*cli.Context, error) {}
	}
	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Backend origin (e.g., https://unitrack.example.edu/api/v1)",
			EnvVars: []string{"UNITRACK_SERVER"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file (default ~/.unitrack/cli.yaml)",
			EnvVars: []string{"UNITRACK_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "Session store: file, badger, redis, memory",
		},
		&cli.StringFlag{
			Name:  "session-file",
			Usage: "Session file for the file store",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging on stderr",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server      string
	Config      string
	Output      string
	Store       string
	SessionFile string
	Wide        bool
	Verbose     bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:      c.String("server"),
		Config:      c.String("config"),
		Output:      c.String("output"),
		Store:       c.String("store"),
		SessionFile: c.String("session-file"),
		Wide:        c.Bool("wide"),
		Verbose:     c.Bool("verbose"),
	}
}

// Overrides maps the flags that were set explicitly onto config keys.
func (f *GlobalFlags) Overrides(c *cli.Context) map[string]any {
	o := make(map[string]any)
	if c.IsSet("server") {
		o["server"] = f.Server
	}
	if c.IsSet("output") {
		o["output"] = f.Output
	}
	if c.IsSet("store") {
		o["session.store"] = f.Store
	}
	if c.IsSet("session-file") {
		o["session.file"] = f.SessionFile
	}
	if f.Verbose {
		o["log.level"] = "debug"
	}
	return o
}

func before(c *cli.Context) error {
	if _, ok := c.App.Metadata[runtimeKey].(*Runtime); ok {
		return nil
	}

	flags := ParseGlobalFlags(c)
	path := flags.Config
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path, flags.Overrides(c))
	if err != nil {
		return err
	}
	rt, err := NewRuntime(cfg, path, os.Stdin, c.App.Writer, c.App.ErrWriter)
	if err != nil {
		return err
	}
	rt.Wide = flags.Wide

	c.App.Metadata[runtimeKey] = rt
	c.App.Metadata[ownRuntimeKey] = true
	return nil
}

func after(c *cli.Context) error {
	if owned, _ := c.App.Metadata[ownRuntimeKey].(bool); !owned {
		return nil
	}
	rt, ok := c.App.Metadata[runtimeKey].(*Runtime)
	if !ok {
		return nil
	}
	return rt.Close()
}

// GetRuntime retrieves the shared Runtime from context.
func GetRuntime(c *cli.Context) (*Runtime, error) {
	if rt, ok := c.App.Metadata[runtimeKey].(*Runtime); ok {
		return rt, nil
	}
	return nil, domain.ErrInternal.WithDetails("runtime not initialized")
}

// render writes data in the runtime's format, honouring per-command
// --output and --wide.
func render(c *cli.Context, rt *Runtime, data any) error {
	format, wide := rt.Format, rt.Wide || c.Bool("wide")
	if c.IsSet("output") {
		f, err := output.ParseFormat(c.String("output"))
		if err != nil {
			return domain.ErrInvalidArgument.WithCause(err)
		}
		format = f
	}
	return output.NewFormatter(format, wide).Format(rt.Stdout, data)
}

// PrintError prints err to w with a hint for session failures.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
	switch {
	case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrNotAuthenticated):
		fmt.Fprintln(w, "hint: run 'unitrack-cli login' to start a new session")
	case errors.Is(err, domain.ErrPermissionDenied):
		fmt.Fprintln(w, "hint: run 'unitrack-cli whoami' to see what your role may do")
	}
}
