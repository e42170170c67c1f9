package console

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/api"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/gateway"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/identity/client"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/security"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/service"
)

const defaultPageSize = 20

const helpText = `commands:
  open <route>                      go to a route
  login <username> <password>       sign in
  logout                            sign out
  whoami                            show the signed-in user
  get <path>                        GET an API path
  list <resource> [page] [search]   list inventories, recipes, suppliers, promotions or stocks
  help                              show this help
  quit                              leave the shell
`

// Shell reads commands line by line. Every line counts as user activity.
type Shell struct {
	host *Host
	ctrl *service.Controller
	api  *api.Client
	out  io.Writer
}

// NewShell returns a Shell over the given host, controller and API client.
func NewShell(host *Host, ctrl *service.Controller, apiClient *api.Client, out io.Writer) *Shell {
	return &Shell{host: host, ctrl: ctrl, api: apiClient, out: out}
}

// Run reads commands from in until quit, EOF, or ctx is done. Command errors are printed.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	s.prompt()
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		s.ctrl.RecordActivity()
		if quit := s.Exec(ctx, scanner.Text()); quit {
			return nil
		}
		s.prompt()
	}
	return scanner.Err()
}

func (s *Shell) prompt() {
	fmt.Fprintf(s.out, "%s> ", s.host.Route())
}

// Exec runs one command line and reports whether the shell should stop.
func (s *Shell) Exec(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]
	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(s.out, helpText)
	case "open":
		err = s.open(args)
	case "login":
		err = s.login(ctx, args)
	case "logout":
		s.ctrl.SignOut(ctx)
		fmt.Fprintln(s.out, "signed out")
	case "whoami":
		s.whoami()
	case "get":
		err = s.get(ctx, args)
	case "list":
		err = s.list(ctx, args)
	default:
		err = fmt.Errorf("unknown command %q (try help)", cmd)
	}
	if err != nil {
		s.printError(err)
	}
	return false
}

func (s *Shell) printError(err error) {
	switch {
	case errors.Is(err, gateway.ErrSessionExpired):
		// The redirector already told the user.
	case errors.Is(err, client.ErrValidation):
		fmt.Fprintf(s.out, "invalid input: %v\n", err)
	default:
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
}

func (s *Shell) open(args []string) error {
	if len(args) != 1 || !strings.HasPrefix(args[0], "/") {
		return errors.New("usage: open /<route>")
	}
	s.ctrl.SetRoute(args[0])
	return nil
}

func (s *Shell) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <username> <password>")
	}
	if err := s.ctrl.SignIn(ctx, client.Credentials{Username: args[0], Password: args[1]}); err != nil {
		return err
	}
	if u := s.ctrl.User(); u != nil {
		fmt.Fprintf(s.out, "signed in as %s (%s)\n", u.Name, u.Username)
	}
	return nil
}

func (s *Shell) whoami() {
	sess := s.ctrl.Session()
	if !sess.IsAuthenticated() {
		fmt.Fprintln(s.out, "not signed in")
		return
	}
	if sess.User != nil {
		fmt.Fprintf(s.out, "%s (%s) id=%s\n", sess.User.Name, sess.User.Username, sess.User.ID)
	}
	if exp, ok := security.AccessTokenExpiry(sess.AccessToken); ok {
		fmt.Fprintf(s.out, "access token expires %s\n", exp.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(s.out, "last activity %s\n", s.ctrl.LastActivity().Local().Format(time.RFC3339))
}

func (s *Shell) get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get <path>")
	}
	data, err := s.api.Raw(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, strings.TrimSpace(string(data)))
	return nil
}

func (s *Shell) list(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: list <%s> [page] [search]", strings.Join(api.ResourceNames(), "|"))
	}
	res, ok := s.api.Resource(args[0])
	if !ok {
		return fmt.Errorf("unknown resource %q", args[0])
	}
	params := api.ListParams{Page: 1, Limit: defaultPageSize}
	if len(args) > 1 {
		page, err := strconv.Atoi(args[1])
		if err != nil || page < 1 {
			return fmt.Errorf("page must be a positive number, got %q", args[1])
		}
		params.Page = page
	}
	if len(args) > 2 {
		params.Search = strings.Join(args[2:], " ")
	}
	items, meta, err := res.ListRaw(ctx, params)
	if err != nil {
		return err
	}
	for _, item := range items {
		var compact bytes.Buffer
		if err := json.Compact(&compact, item); err != nil {
			fmt.Fprintln(s.out, string(item))
			continue
		}
		fmt.Fprintln(s.out, compact.String())
	}
	fmt.Fprintf(s.out, "page %d, %d of %d\n", meta.Page, len(items), meta.Total)
	return nil
}
