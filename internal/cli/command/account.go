package command

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/unitrack-go/internal/auth"
	"github.com/yndnr/unitrack-go/internal/cli/output"
	"github.com/yndnr/unitrack-go/internal/core/domain"
)

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in and persist the session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Account email",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Account password (read from stdin when omitted)",
				EnvVars: []string{"UNITRACK_PASSWORD"},
			},
			&cli.StringFlag{
				Name:  "role",
				Usage: "Account role: admin, teacher, departmentadmin, student",
			},
		},
		Action: login,
	}
}

func login(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	svc, err := rt.Auth()
	if err != nil {
		return err
	}

	creds := auth.Credentials{
		Email:    c.String("email"),
		Password: c.String("password"),
		Role:     c.String("role"),
	}
	if creds.Password == "" {
		fmt.Fprint(rt.Stderr, "Password: ")
		line, err := bufio.NewReader(rt.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return domain.ErrMissingArgument.WithDetails("password")
		}
		creds.Password = strings.TrimRight(line, "\r\n")
	}

	ctx, cancel := rt.requestContext()
	defer cancel()

	spinner := output.NewSpinner(rt.Stderr, "Logging in as "+creds.Email)
	spinner.Start()
	user, err := svc.Login(ctx, creds)
	if err != nil {
		spinner.Fail("Login failed")
		return err
	}
	spinner.Success("Logged in")

	return render(c, rt, profileOf(user, ""))
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "End the session on the server and locally",
		Action: logout,
	}
}

func logout(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	svc, err := rt.Auth()
	if err != nil {
		return err
	}

	ctx, cancel := rt.requestContext()
	defer cancel()
	if err := svc.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(rt.Stdout, "Logged out.")
	return nil
}

// WhoamiCommand returns the whoami command.
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the logged-in user",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "remote",
				Aliases: []string{"r"},
				Usage:   "Fetch the profile from the server",
			},
			&cli.BoolFlag{
				Name:  "menu",
				Usage: "List the screens the role can open",
			},
		},
		Action: whoami,
	}
}

// profile is the printable view of the session user.
type profile struct {
	ID            string `json:"_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	Department    string `json:"department,omitempty"`
	AccessExpires string `json:"access_expires,omitempty"`
}

func profileOf(u *domain.User, access string) profile {
	p := profile{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.ParsedRole().String(),
		Department: u.DepartmentID,
	}
	if exp, ok := tokenExpiry(access); ok {
		p.AccessExpires = exp.Local().Format(time.RFC3339)
	}
	return p
}

// tokenExpiry reads the exp claim without verifying the signature. The
// client never holds the signing key.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func whoami(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	sessions, err := rt.Sessions()
	if err != nil {
		return err
	}

	snap := sessions.Snapshot()
	user := snap.User
	if c.Bool("remote") {
		svc, err := rt.Auth()
		if err != nil {
			return err
		}
		ctx, cancel := rt.requestContext()
		defer cancel()
		if user, err = svc.Me(ctx); err != nil {
			return err
		}
		snap = sessions.Snapshot()
	}
	if user == nil || !snap.IsAuthenticated() {
		return domain.ErrNotAuthenticated
	}

	if c.Bool("menu") {
		return render(c, rt, user.ParsedRole().Menu())
	}
	return render(c, rt, profileOf(user, snap.AccessToken))
}

// requestContext bounds one command by the configured timeout.
func (r *Runtime) requestContext() (context.Context, context.CancelFunc) {
	timeout, err := r.Config.RequestTimeout()
	if err != nil || timeout <= 0 {
		return context.WithCancel(r.ctx)
	}
	return context.WithTimeout(r.ctx, timeout)
}
