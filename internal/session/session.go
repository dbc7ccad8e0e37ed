// ABOUTME: Interactive ordering session: logs a family member in and dispatches typed commands to tools
// ABOUTME: The tool transport is abstracted behind ToolCaller so the loop runs over stdio, HTTP or fakes

package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
)

// ErrQuit is returned by Execute when the user asks to leave
var ErrQuit = errors.New("quit")

// ErrUnknownUser means verify_access did not recognize the username
var ErrUnknownUser = errors.New("unknown user")

// ToolInfo names a tool the server offers
type ToolInfo struct {
	Name        string
	Description string
}

// ToolCaller invokes tools on an MCP server.
// A tool-level failure is reported with isError set and a nil error; err is
// reserved for transport problems.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (text string, isError bool, err error)
	ListTools(ctx context.Context) ([]ToolInfo, error)
}

// Session is one logged-in user at the prompt
type Session struct {
	tools    ToolCaller
	out      io.Writer
	logger   *slog.Logger
	username string
	role     string
}

var (
	errorText   = color.New(color.FgRed)
	successText = color.New(color.FgGreen)
	headingText = color.New(color.FgCyan, color.Bold)
	dimText     = color.New(color.Faint)
)

// Login lower-cases username, confirms it with verify_access and returns a
// session carrying the resolved role.
func Login(ctx context.Context, tools ToolCaller, username string, out io.Writer) (*Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrUnknownUser)
	}

	text, isError, err := tools.CallTool(ctx, "verify_access", map[string]any{"username": username})
	if err != nil {
		return nil, fmt.Errorf("verify_access: %w", err)
	}
	if isError {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, text)
	}

	var who struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := json.Unmarshal([]byte(text), &who); err != nil {
		return nil, fmt.Errorf("decoding verify_access result: %w", err)
	}

	return &Session{
		tools:    tools,
		out:      out,
		logger:   slog.Default().With("component", "session", "user", who.Username),
		username: who.Username,
		role:     who.Role,
	}, nil
}

// Username returns the logged-in user
func (s *Session) Username() string { return s.username }

// Role returns "parent" or "child"
func (s *Session) Role() string { return s.role }

// Greeting introduces the session to the user
func (s *Session) Greeting() string {
	return fmt.Sprintf("Hi %s! You are signed in as a %s. Type 'help' for commands.", s.username, s.role)
}

// Run reads commands from in until EOF, quit, or ctx is done.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	_, _ = fmt.Fprintln(s.out, s.Greeting())

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprintf(s.out, "%s> ", s.username)
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.Execute(ctx, scanner.Text())
		if errors.Is(err, ErrQuit) {
			_, _ = fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}
		if err != nil {
			_, _ = errorText.Fprintln(s.out, err.Error())
		}
	}
}

// Execute runs one command line. Tool refusals are printed; the returned error
// covers usage mistakes and transport failures.
func (s *Session) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	cmd, ok := lookupCommand(strings.ToLower(name))
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help' for the list", name)
	}
	if cmd.run != nil {
		return cmd.run(ctx, s, rest)
	}

	args, err := cmd.args(s, rest)
	if err != nil {
		return fmt.Errorf("%w\nusage: %s", err, cmd.usage)
	}

	s.logger.Debug("calling tool", "command", cmd.name, "tool", cmd.tool)
	text, isError, err := s.tools.CallTool(ctx, cmd.tool, args)
	if err != nil {
		return fmt.Errorf("calling %s: %w", cmd.tool, err)
	}
	if isError {
		_, _ = errorText.Fprintln(s.out, text)
		return nil
	}

	render := cmd.render
	if render == nil {
		render = renderMessage
	}
	render(s.out, text)
	return nil
}

func (s *Session) printHelp() {
	_, _ = headingText.Fprintln(s.out, "Commands:")
	for _, c := range commands {
		_, _ = fmt.Fprintf(s.out, "  %-38s %s\n", c.usage, dimText.Sprint(c.help))
	}
}

func (s *Session) printTools(ctx context.Context) error {
	tools, err := s.tools.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}
	_, _ = headingText.Fprintln(s.out, "Tools:")
	for _, t := range tools {
		_, _ = fmt.Fprintf(s.out, "  %-26s %s\n", t.Name, dimText.Sprint(t.Description))
	}
	return nil
}
