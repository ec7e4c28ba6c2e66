package command

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/unitrack-go/internal/apiclient"
	"github.com/yndnr/unitrack-go/internal/core/domain"
)

// RequestCommand returns the request subcommand group: raw authenticated
// calls against any backend path.
func RequestCommand() *cli.Command {
	verbs := []struct {
		name   string
		method string
		body   bool
	}{
		{"get", http.MethodGet, false},
		{"post", http.MethodPost, true},
		{"put", http.MethodPut, true},
		{"patch", http.MethodPatch, true},
		{"delete", http.MethodDelete, false},
	}

	cmd := &cli.Command{
		Name:    "request",
		Aliases: []string{"req"},
		Usage:   "Send an authenticated request to a backend path",
	}
	for _, v := range verbs {
		flags := []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Query parameter as KEY=VALUE (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "Print the response body as received",
			},
		}
		if v.body {
			flags = append(flags, dataFlags()...)
		}
		cmd.Subcommands = append(cmd.Subcommands, &cli.Command{
			Name:      v.name,
			Usage:     v.method + " a path relative to the server",
			ArgsUsage: "PATH",
			Flags:     flags,
			Action:    requestAction(v.method),
		})
	}
	return cmd
}

func dataFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data",
			Aliases: []string{"d"},
			Usage:   "JSON request body",
		},
		&cli.StringFlag{
			Name:  "data-file",
			Usage: "Read the JSON request body from a file",
		},
	}
}

func requestAction(method string) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := GetRuntime(c)
		if err != nil {
			return err
		}
		if c.NArg() != 1 {
			return domain.ErrMissingArgument.WithDetails("PATH")
		}
		client, err := rt.Client()
		if err != nil {
			return err
		}

		req := apiclient.NewRequest(method, c.Args().First())
		if req.Query, err = parseQuery(c.StringSlice("query")); err != nil {
			return err
		}
		body, err := readData(c)
		if err != nil {
			return err
		}
		if body != nil {
			req.Body = body
			req.ContentType = "application/json"
		}

		ctx, cancel := rt.requestContext()
		defer cancel()
		resp, err := client.Do(ctx, req)
		if err != nil {
			return err
		}

		if c.Bool("raw") || len(resp.Body) == 0 {
			_, err := fmt.Fprintln(rt.Stdout, strings.TrimRight(string(resp.Body), "\n"))
			return err
		}
		var payload any
		if err := resp.Decode(&payload); err != nil {
			return err
		}
		return render(c, rt, recordsOrValue(payload))
	}
}

// parseQuery turns KEY=VALUE pairs into url.Values.
func parseQuery(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("query %q: want KEY=VALUE", p))
		}
		q.Add(k, v)
	}
	return q, nil
}

// readData returns the --data or --data-file body, validated as JSON.
func readData(c *cli.Context) ([]byte, error) {
	var raw []byte
	switch {
	case c.String("data") != "" && c.String("data-file") != "":
		return nil, domain.ErrInvalidArgument.WithDetails("use either --data or --data-file")
	case c.String("data") != "":
		raw = []byte(c.String("data"))
	case c.String("data-file") != "":
		b, err := os.ReadFile(c.String("data-file"))
		if err != nil {
			return nil, domain.ErrInvalidArgument.WithCause(err)
		}
		raw = b
	default:
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, domain.ErrInvalidArgument.WithDetails("request body is not valid JSON")
	}
	return raw, nil
}

// recordsOrValue narrows a decoded list of objects so the table
// formatter lays it out one column per field.
func recordsOrValue(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	recs := make([]map[string]any, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return v
		}
		recs = append(recs, m)
	}
	return recs
}
