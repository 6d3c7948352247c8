package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/atinyakov/kongtze/internal/client/api"
	"github.com/atinyakov/kongtze/internal/client/auth"
	"github.com/atinyakov/kongtze/internal/client/schedule"
	"github.com/atinyakov/kongtze/internal/models"
)

const helpText = `Available commands:
  help
  login [-pin] | logout | me
  register-parent | register-student
  subjects
  sessions [add | edit <id> | delete <id>]
  schedule generate | schedule apply [-tests]
  tests [new | take <id> | results [<result-id>]]
  homework [list | upload <subject-id> <file> <title...> | review <id> | delete <id>]
  notes [list | upload <subject-id> <file> <title...> | delete <id>]
  rewards [balance | history [<limit>] | gifts [<tier>] | draw]
  templates [list [-all] | edit <id> | preview <id>]
  profile <student-id>
  exit`

// readPasswordFunc reads a line from a terminal without echo.
var readPasswordFunc = term.ReadPassword // mockable

// shell is the interactive front end. Every command reads the current token
// from the auth manager.
type shell struct {
	in      *bufio.Scanner
	out     io.Writer
	api     *api.API
	auth    *auth.Manager
	applier *schedule.Applier
	log     *zap.Logger

	// secretFd is the terminal used for hidden input, or -1 to read secrets
	// from in like any other line.
	secretFd int

	// the last generated schedule and the preferences it came from
	pending      *models.GeneratedSchedule
	pendingPrefs models.SchedulePreferences
}

func newShell(in io.Reader, out io.Writer, a *api.API, m *auth.Manager, log *zap.Logger) *shell {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &shell{
		in:       bufio.NewScanner(in),
		out:      out,
		api:      a,
		auth:     m,
		applier:  schedule.NewApplier(a.StudySessions, a.Tests, log),
		log:      log,
		secretFd: fd,
	}
}

// run reads commands until exit, EOF or ctx is done.
func (s *shell) run(ctx context.Context) {
	for ctx.Err() == nil {
		s.printf("kongtze> ")
		if !s.in.Scan() {
			break
		}
		args := strings.Fields(s.in.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			s.println("Bye")
			return
		}
		if err := s.dispatch(ctx, args); err != nil {
			s.printf("error: %v\n", err)
		}
	}
}

func (s *shell) dispatch(ctx context.Context, args []string) error {
	switch args[0] {
	case "help":
		s.println(helpText)
		return nil
	case "login":
		return s.login(ctx, args[1:])
	case "logout":
		return s.logout(ctx)
	case "me":
		return s.me(ctx)
	case "register-parent":
		return s.registerParent(ctx)
	case "register-student":
		return s.registerStudent(ctx)
	case "subjects":
		return s.subjects(ctx)
	case "sessions":
		return s.sessions(ctx, args[1:])
	case "schedule":
		return s.schedule(ctx, args[1:])
	case "tests":
		return s.tests(ctx, args[1:])
	case "homework":
		return s.homework(ctx, args[1:])
	case "notes":
		return s.notes(ctx, args[1:])
	case "rewards":
		return s.rewards(ctx, args[1:])
	case "templates":
		return s.templates(ctx, args[1:])
	case "profile":
		return s.profile(ctx, args[1:])
	default:
		s.println("Unknown command. Type 'help' for a list of commands.")
		return nil
	}
}

var errUsage = errors.New("usage")

func usage(text string) error {
	return fmt.Errorf("%w: %s", errUsage, text)
}

func (s *shell) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *shell) println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

// prompt prints label and returns the next trimmed input line.
func (s *shell) prompt(label string) string {
	s.printf("%s: ", label)
	if !s.in.Scan() {
		return ""
	}
	return strings.TrimSpace(s.in.Text())
}

// promptSecret reads without echo when attached to a terminal.
func (s *shell) promptSecret(label string) (string, error) {
	if s.secretFd < 0 {
		return s.prompt(label), nil
	}
	s.printf("%s: ", label)
	b, err := readPasswordFunc(s.secretFd)
	s.println()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return string(b), nil
}

// promptInt re-asks until the answer is an integer. Empty input returns def.
func (s *shell) promptInt(label string, def int) int {
	for {
		raw := s.prompt(fmt.Sprintf("%s [%d]", label, def))
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err == nil {
			return n
		}
		s.println("Please enter a number.")
	}
}

func (s *shell) token() string { return s.auth.Token() }

func parseID(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, usage(what)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

// parseIDs reads a comma or space separated list of integers.
func parseIDs(raw string) ([]int, error) {
	var out []int
	for _, f := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", f)
		}
		out = append(out, n)
	}
	return out, nil
}
