package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/dispute-assistant/internal/engine"
	"github.com/Veraticus/dispute-assistant/internal/model"
	"github.com/Veraticus/dispute-assistant/internal/query"
)

// Answerer answers a question over records.
type Answerer interface {
	Answer(ctx context.Context, question string, records []model.Record) query.Answer
}

const sessionHelp = `Ask a question in plain English, for example:
  How many duplicate charges today?
  Show all fraud disputes
  Break down disputes by channel
  List high value disputes above 10000
  Which disputes are unresolved?

Commands:
  stats            summary statistics for the loaded run
  help             show this help
  quit, exit, q    leave the session`

// Session is an interactive question loop over one set of records.
type Session struct {
	answerer Answerer
	reader   *LineReader
	writer   io.Writer
	records  []model.Record
	format   Format
}

// NewSession creates a session reading questions from r and printing answers to w.
func NewSession(answerer Answerer, records []model.Record, r io.Reader, w io.Writer, format Format) *Session {
	return &Session{
		answerer: answerer,
		reader:   NewLineReader(r),
		writer:   w,
		records:  records,
		format:   format,
	}
}

// Run reads questions until the user quits, input ends, or ctx is canceled.
func (s *Session) Run(ctx context.Context) error {
	if _, err := fmt.Fprintf(s.writer, "%s\n%s\n",
		FormatTitle(fmt.Sprintf("Dispute assistant: %d disputes loaded", len(s.records))),
		SubtleStyle.Render("Type 'help' for examples, 'quit' to exit")); err != nil {
		return err
	}

	for {
		if _, err := fmt.Fprint(s.writer, "\n"+FormatPrompt("query")); err != nil {
			return err
		}

		line, err := s.reader.ReadLine(ctx)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, ErrInputCancelled):
			_, _ = fmt.Fprintln(s.writer)
			return nil
		case err != nil:
			return fmt.Errorf("failed to read question: %w", err)
		}

		done, err := s.handle(ctx, line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (s *Session) handle(ctx context.Context, line string) (bool, error) {
	switch strings.ToLower(line) {
	case "":
		return false, nil
	case "quit", "exit", "q":
		_, err := fmt.Fprintln(s.writer, FormatSuccess("Goodbye!"))
		return true, err
	case "help":
		_, err := fmt.Fprintln(s.writer, sessionHelp)
		return false, err
	case "stats":
		return false, RenderSummary(s.writer, "Summary", engine.Summarize(s.records), s.format)
	}

	answer := s.answerer.Answer(ctx, line, s.records)
	return false, RenderAnswer(s.writer, line, answer, s.format)
}
