package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchboard/internal/app"
	"github.com/ShayCichocki/switchboard/internal/orchestrator"
)

var (
	askConversation string
	askPlanner      string
	askFormat       string
	askQuiet        bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the configured specialists a question",
	Long: `Run one request through the orchestrator in-process and print the result.

With no question, reads one request per line from stdin and keeps them in
a single conversation until EOF.

Output formats:
  panel  synthesis panel plus the drafted customer message (default)
  text   the full answer text as returned by the API
  json   the complete answer record`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if askPlanner != "" {
			cfg.Orchestrator.Planner = askPlanner
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		switch askFormat {
		case "panel", "text", "json":
		default:
			return fmt.Errorf("unknown format %q (want panel, text or json)", askFormat)
		}

		logger, err := newLogger(cfg, "ask")
		if err != nil {
			return err
		}
		defer logger.Close()

		opts := []app.Option{app.WithLogger(quietLogger(logger.Logger, askQuiet))}
		if !askQuiet && askFormat != "json" {
			opts = append(opts, app.WithEventHandler(eventPrinter(cmd.ErrOrStderr())))
		}
		a, err := app.New(cfg, opts...)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Registry.Len() == 0 {
			printStatus(cmd.ErrOrStderr(), "⚠", "No specialists registered; configure endpoints or endpoints_file", color.FgYellow)
		}

		conversationID := askConversation
		if conversationID == "" {
			conversationID = uuid.New().String()
		}

		if len(args) > 0 {
			return ask(cmd.Context(), a.Orchestrator, cmd.OutOrStdout(), conversationID, strings.Join(args, " "))
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := ask(cmd.Context(), a.Orchestrator, cmd.OutOrStdout(), conversationID, line); err != nil {
				return err
			}
		}
		return scanner.Err()
	},
}

func init() {
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "Conversation id (default: a new one)")
	askCmd.Flags().StringVar(&askPlanner, "planner", "", "Override orchestrator.planner (anthropic, openai, broadcast)")
	askCmd.Flags().StringVar(&askFormat, "format", "panel", "Output format: panel, text or json")
	askCmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "Suppress progress output")
}

// answerer is the part of the orchestrator ask needs.
type answerer interface {
	Handle(ctx context.Context, conversationID, text string) (*orchestrator.Answer, error)
}

func ask(ctx context.Context, o answerer, w io.Writer, conversationID, question string) error {
	answer, err := o.Handle(ctx, conversationID, question)
	if err != nil {
		return err
	}
	return printAnswer(w, answer, askFormat)
}

func printAnswer(w io.Writer, answer *orchestrator.Answer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	case "text":
		_, err := fmt.Fprintln(w, answer.Text)
		return err
	}

	if len(answer.Results) == 0 {
		fmt.Fprintln(w, answer.Text)
		return nil
	}
	fmt.Fprintln(w, renderSynthesis(answer.Record, 80))
	if answer.Record.CustomerMessage != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", color.New(color.Bold).Sprint("Customer message"), answer.Record.CustomerMessage)
	}
	return nil
}

// eventPrinter serializes events from concurrent calls onto w.
func eventPrinter(w io.Writer) orchestrator.EventHandler {
	var mu sync.Mutex
	return func(e orchestrator.Event) {
		mu.Lock()
		defer mu.Unlock()
		printEvent(w, e)
	}
}

func quietLogger(l zerolog.Logger, quiet bool) zerolog.Logger {
	if quiet {
		return l.Level(zerolog.WarnLevel)
	}
	return l
}

var _ answerer = (*orchestrator.Orchestrator)(nil)
