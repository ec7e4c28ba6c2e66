package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// SessionCommand returns the session subcommand group.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Inspect the local session",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the persisted session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reveal",
						Usage: "Print tokens unmasked",
					},
				},
				Action: sessionShow,
			},
			{
				Name:   "clear",
				Usage:  "Forget the session locally without contacting the server",
				Action: sessionClear,
			},
			{
				Name:   "path",
				Usage:  "Print where the session is stored",
				Action: sessionPath,
			},
		},
	}
}

// sessionView is the printable session state.
type sessionView struct {
	Authenticated bool   `json:"authenticated"`
	User          string `json:"user,omitempty"`
	Role          string `json:"role,omitempty"`
	AccessToken   string `json:"access_token,omitempty"`
	RefreshToken  string `json:"refresh_token,omitempty"`
	AccessExpires string `json:"access_expires,omitempty"`
	Store         string `json:"store"`
	Location      string `json:"location"`
}

func sessionShow(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	sessions, err := rt.Sessions()
	if err != nil {
		return err
	}

	snap := sessions.Snapshot()
	view := sessionView{
		Authenticated: snap.IsAuthenticated(),
		AccessToken:   maskToken(snap.AccessToken, c.Bool("reveal")),
		RefreshToken:  maskToken(snap.RefreshToken, c.Bool("reveal")),
		Store:         rt.Config.Session.Store,
		Location:      rt.StoreLocation(),
	}
	if snap.User != nil {
		view.User = snap.User.Email
		view.Role = snap.Role().String()
	}
	if exp, ok := tokenExpiry(snap.AccessToken); ok {
		view.AccessExpires = exp.Local().Format("2006-01-02 15:04:05")
	}
	return render(c, rt, view)
}

func sessionClear(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	sessions, err := rt.Sessions()
	if err != nil {
		return err
	}
	if err := sessions.Clear(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(rt.Stdout, "Session cleared.")
	return nil
}

func sessionPath(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.Stdout, rt.StoreLocation())
	return nil
}

// maskToken keeps a short prefix so tokens can be told apart.
func maskToken(token string, reveal bool) string {
	if reveal || token == "" {
		return token
	}
	if len(token) <= 12 {
		return "****"
	}
	return token[:8] + "..." + token[len(token)-4:]
}
