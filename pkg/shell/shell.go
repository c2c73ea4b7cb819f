// Package shell is the interactive read-eval-print loop in front of the
// orchestrator.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/fatih/color"
	"github.com/harunnryd/weathermcp/pkg/errorsx"
	"github.com/harunnryd/weathermcp/pkg/logging"
	"github.com/harunnryd/weathermcp/pkg/orchestrator"
)

const (
	RenderPlain    = "plain"
	RenderMarkdown = "markdown"

	DefaultPrompt = "Query: "
	quitCommand   = "quit"
)

// Processor answers one query.
type Processor interface {
	Process(ctx context.Context, query string) (orchestrator.Result, error)
}

type Config struct {
	Prompt string
	Render string
	Color  bool
	// Quiet suppresses the greeting.
	Quiet bool
	Width int
}

type Shell struct {
	proc   Processor
	in     io.Reader
	out    io.Writer
	cfg    Config
	md     *glamour.TermRenderer
	errC   *color.Color
	faintC *color.Color
	log    *slog.Logger
}

func New(proc Processor, in io.Reader, out io.Writer, cfg Config) (*Shell, error) {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.Width <= 0 {
		cfg.Width = 100
	}
	s := &Shell{
		proc:   proc,
		in:     in,
		out:    out,
		cfg:    cfg,
		errC:   color.New(color.FgRed),
		faintC: color.New(color.Faint),
		log:    logging.NewComponentLogger(nil, "shell"),
	}
	if !cfg.Color {
		s.errC.DisableColor()
		s.faintC.DisableColor()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Render)) {
	case "", RenderPlain:
	case RenderMarkdown:
		var margin uint
		style := styles.DarkStyleConfig
		style.Document.Margin = &margin
		md, err := glamour.NewTermRenderer(
			glamour.WithStyles(style),
			glamour.WithWordWrap(cfg.Width),
		)
		if err != nil {
			return nil, fmt.Errorf("shell: markdown renderer: %w", err)
		}
		s.md = md
	default:
		return nil, fmt.Errorf("shell: unknown render mode %q", cfg.Render)
	}
	return s, nil
}

func (s *Shell) SetLogger(log *slog.Logger) {
	s.log = logging.NewComponentLogger(log, "shell")
}

// Run reads queries until quit, EOF or ctx is done. Per-query failures are
// printed and the loop continues. It only returns an error when input itself
// cannot be read.
func (s *Shell) Run(ctx context.Context) error {
	if !s.cfg.Quiet {
		fmt.Fprintln(s.out, "\nMCP Client Started!")
		fmt.Fprintln(s.out, "Type your queries or 'quit' to exit.")
	}
	done := make(chan struct{})
	defer close(done)
	lines, errs := readLines(s.in, done)
	for {
		fmt.Fprint(s.out, "\n"+s.cfg.Prompt)
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(s.out)
			if err := <-errs; err != nil {
				return fmt.Errorf("shell: read input: %w", err)
			}
			return nil
		}
		query := strings.TrimSpace(line)
		if strings.EqualFold(query, quitCommand) {
			return nil
		}
		if query == "" {
			continue
		}
		res, err := s.proc.Process(ctx, query)
		if err != nil {
			s.log.Debug("query failed", slog.String("reason_code", string(errorsx.Reason(err))))
			fmt.Fprintln(s.out, "\n"+s.errC.Sprintf("Error: %s", err.Error()))
			continue
		}
		fmt.Fprintln(s.out, "\n"+s.render(res.Answer))
	}
}

func (s *Shell) render(answer string) string {
	if s.md == nil {
		return answer
	}
	lines := strings.Split(answer, "\n")
	var b strings.Builder
	var text []string
	flush := func() {
		if len(text) == 0 {
			return
		}
		out, err := s.md.Render(strings.Join(text, "\n"))
		if err != nil {
			out = strings.Join(text, "\n")
		}
		b.WriteString(strings.TrimSpace(out))
		b.WriteString("\n")
		text = nil
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "[Calling tool ") {
			flush()
			b.WriteString(s.faintC.Sprint(line))
			b.WriteString("\n")
			continue
		}
		text = append(text, line)
	}
	flush()
	return strings.TrimRight(b.String(), "\n")
}

func readLines(r io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errs <- scanner.Err()
	}()
	return lines, errs
}
