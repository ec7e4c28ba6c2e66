package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/unitrack-go/internal/apiclient"
	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/resource"
)

// ResourceCommand returns the resource subcommand group.
func ResourceCommand() *cli.Command {
	return &cli.Command{
		Name:    "resource",
		Aliases: []string{"res"},
		Usage:   "Work with backend record families (courses, batches, marks, ...)",
		Subcommands: []*cli.Command{
			{
				Name:   "names",
				Usage:  "List the known resources",
				Action: resourceNames,
			},
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List records",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Filter as KEY=VALUE (repeatable)",
					},
				},
				Action: resourceList,
			},
			{
				Name:      "get",
				Usage:     "Show one record",
				ArgsUsage: "NAME ID",
				Action:    resourceGet,
			},
			{
				Name:      "create",
				Usage:     "Create a record",
				ArgsUsage: "NAME",
				Flags:     dataFlags(),
				Action:    resourceCreate,
			},
			{
				Name:      "update",
				Usage:     "Patch a record",
				ArgsUsage: "NAME ID",
				Flags:     dataFlags(),
				Action:    resourceUpdate,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a record",
				ArgsUsage: "NAME ID",
				Action:    resourceDelete,
			},
			{
				Name:      "upload",
				Usage:     "Upload files with form fields",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "File as FIELD=PATH (repeatable)",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "field",
						Usage: "Form field as KEY=VALUE (repeatable)",
					},
				},
				Action: resourceUpload,
			},
		},
	}
}

// catalogEntry is the printable catalog row.
type catalogEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

func resourceNames(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	var rows []catalogEntry
	for _, e := range resource.Entries() {
		rows = append(rows, catalogEntry{Name: e.Name, Path: e.Path, Description: e.Description})
	}
	return render(c, rt, rows)
}

// openResource resolves the NAME argument and checks the argument count.
func openResource(c *cli.Context, nargs int, usage string) (*Runtime, *resource.Resource, error) {
	rt, err := GetRuntime(c)
	if err != nil {
		return nil, nil, err
	}
	if c.NArg() != nargs {
		return nil, nil, domain.ErrMissingArgument.WithDetails("usage: resource " + c.Command.Name + " " + usage)
	}
	catalog, err := rt.Catalog()
	if err != nil {
		return nil, nil, err
	}
	res, err := catalog.Resource(c.Args().First())
	if err != nil {
		return nil, nil, err
	}
	return rt, res, nil
}

func resourceList(c *cli.Context) error {
	rt, res, err := openResource(c, 1, "NAME")
	if err != nil {
		return err
	}
	query, err := parseQuery(c.StringSlice("query"))
	if err != nil {
		return err
	}

	ctx, cancel := rt.requestContext()
	defer cancel()
	recs, err := res.List(ctx, query)
	if err != nil {
		return err
	}
	return render(c, rt, recs)
}

func resourceGet(c *cli.Context) error {
	rt, res, err := openResource(c, 2, "NAME ID")
	if err != nil {
		return err
	}

	ctx, cancel := rt.requestContext()
	defer cancel()
	rec, err := res.Get(ctx, c.Args().Get(1))
	if err != nil {
		return err
	}
	return render(c, rt, rec)
}

func resourceCreate(c *cli.Context) error {
	rt, res, err := openResource(c, 1, "NAME --data JSON")
	if err != nil {
		return err
	}
	body, err := requiredBody(c)
	if err != nil {
		return err
	}

	ctx, cancel := rt.requestContext()
	defer cancel()
	rec, err := res.Create(ctx, body)
	if err != nil {
		return err
	}
	return render(c, rt, rec)
}

func resourceUpdate(c *cli.Context) error {
	rt, res, err := openResource(c, 2, "NAME ID --data JSON")
	if err != nil {
		return err
	}
	body, err := requiredBody(c)
	if err != nil {
		return err
	}

	ctx, cancel := rt.requestContext()
	defer cancel()
	rec, err := res.Update(ctx, c.Args().Get(1), body)
	if err != nil {
		return err
	}
	return render(c, rt, rec)
}

func resourceDelete(c *cli.Context) error {
	rt, res, err := openResource(c, 2, "NAME ID")
	if err != nil {
		return err
	}

	ctx, cancel := rt.requestContext()
	defer cancel()
	if err := res.Delete(ctx, c.Args().Get(1)); err != nil {
		return err
	}
	fmt.Fprintf(rt.Stdout, "Deleted %s %s.\n", res.Name, c.Args().Get(1))
	return nil
}

func resourceUpload(c *cli.Context) error {
	rt, res, err := openResource(c, 1, "NAME --file FIELD=PATH")
	if err != nil {
		return err
	}

	var files []apiclient.File
	for _, spec := range c.StringSlice("file") {
		field, path, ok := strings.Cut(spec, "=")
		if !ok || field == "" || path == "" {
			return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("file %q: want FIELD=PATH", spec))
		}
		f, err := apiclient.FileFromPath(field, path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	fields := make(map[string]string)
	for _, kv := range c.StringSlice("field") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("field %q: want KEY=VALUE", kv))
		}
		fields[k] = v
	}

	ctx, cancel := rt.requestContext()
	defer cancel()
	rec, err := res.Upload(ctx, files, fields)
	if err != nil {
		return err
	}
	return render(c, rt, rec)
}

// requiredBody decodes --data or --data-file into a value for the JSON
// encoder.
func requiredBody(c *cli.Context) (json.RawMessage, error) {
	raw, err := readData(c)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, domain.ErrMissingArgument.WithDetails("--data or --data-file")
	}
	return json.RawMessage(raw), nil
}
