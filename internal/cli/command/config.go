package command

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/unitrack-go/internal/cli/config"
	"github.com/yndnr/unitrack-go/internal/cli/output"
	"github.com/yndnr/unitrack-go/internal/core/domain"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"cfg"},
		Usage:   "CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration (secrets redacted)",
				Action: configShow,
			},
			{
				Name:   "validate",
				Usage:  "Validate the effective configuration",
				Action: configValidate,
			},
			{
				Name:  "init",
				Usage: "Write a default configuration file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Overwrite an existing file",
					},
				},
				Action: configInit,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	fmt.Fprintf(rt.Stderr, "# config file: %s\n", rt.ConfigPath)
	f := rt.Format
	if c.IsSet("output") {
		if f, err = output.ParseFormat(c.String("output")); err != nil {
			return domain.ErrInvalidArgument.WithCause(err)
		}
	}
	// Nested sections read poorly as a table.
	if f == output.FormatTable {
		f = output.FormatYAML
	}
	return output.NewFormatter(f, false).Format(rt.Stdout, rt.Config.Redacted())
}

func configValidate(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	if err := rt.Config.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(rt.Stdout, "Configuration is valid (%s).\n", rt.ConfigPath)
	return nil
}

func configInit(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	path := rt.ConfigPath
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return domain.ErrInvalidArgument.WithDetails(path + " exists, use --force to overwrite")
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.ErrConfig.WithCause(err)
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(rt.Stdout, "Wrote %s\n", path)
	return nil
}
