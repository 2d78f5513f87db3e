package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchboard/internal/config"
	"github.com/ShayCichocki/switchboard/internal/protocol"
	"github.com/ShayCichocki/switchboard/internal/registry"
	"github.com/ShayCichocki/switchboard/internal/remote"
	"github.com/ShayCichocki/switchboard/internal/state"
	"github.com/ShayCichocki/switchboard/internal/watch"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Inspect configured specialist endpoints",
}

var endpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List endpoints from config, the endpoints file and saved state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		entries, err := collectEndpoints(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		printEndpoints(cmd.OutOrStdout(), entries)
		return nil
	},
}

var probeTimeout time.Duration

var endpointsProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Fetch the agent card of every endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		entries, err := collectEndpoints(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		timeout := probeTimeout
		if timeout <= 0 {
			timeout = cfg.Remote.Timeout
		}
		client := remote.New(remote.Options{Timeout: timeout})

		failed := 0
		for _, p := range probe(cmd.Context(), client, entries) {
			if p.err != nil {
				failed++
				printStatus(cmd.OutOrStdout(), "✗", fmt.Sprintf("%s (%s): %v", p.entry.CapabilityID, p.entry.URL, p.err), color.FgRed)
				continue
			}
			printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("%s (%s): %s %s, streaming=%t",
				p.entry.CapabilityID, p.entry.URL, p.card.Name, p.card.Version, p.card.Capabilities.Streaming), color.FgGreen)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d endpoints unreachable", failed, len(entries))
		}
		return nil
	},
}

var endpointsCallCmd = &cobra.Command{
	Use:   "call <capability> <question>...",
	Short: "Send one question straight to a specialist and stream its answer",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		entries, err := collectEndpoints(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		target, ok := findEndpoint(entries, args[0])
		if !ok {
			return fmt.Errorf("%w: %s", registry.ErrNotFound, args[0])
		}
		client := remote.New(remote.Options{Timeout: cfg.Remote.Timeout, Stream: true})
		return call(cmd.Context(), client, cmd.OutOrStdout(), target.URL, strings.Join(args[1:], " "))
	},
}

func init() {
	endpointsCmd.AddCommand(endpointsCallCmd)
	endpointsProbeCmd.Flags().DurationVar(&probeTimeout, "timeout", 0, "Per-endpoint timeout (default: remote.timeout)")
	endpointsCmd.AddCommand(endpointsListCmd)
	endpointsCmd.AddCommand(endpointsProbeCmd)
}

// endpointEntry is an endpoint and where it was declared.
type endpointEntry struct {
	models.Endpoint
	Source string
}

// collectEndpoints resolves endpoints the way serve registers them: config
// first, then saved state, then the endpoints file. Later sources never
// override earlier ones.
func collectEndpoints(ctx context.Context, cfg *config.Config) ([]endpointEntry, error) {
	reg := registry.New()
	var entries []endpointEntry

	add := func(ep models.Endpoint, source string) error {
		if _, err := reg.Register(ep); err != nil {
			if errors.Is(err, registry.ErrDuplicateCapability) && source != "config" {
				return nil
			}
			return err
		}
		entries = append(entries, endpointEntry{Endpoint: ep.Normalize(), Source: source})
		return nil
	}

	for _, ep := range cfg.Endpoints {
		if err := add(ep, "config"); err != nil {
			return nil, err
		}
	}

	if path := cfg.Context.PersistPath; path != "" {
		if _, err := os.Stat(path); err == nil {
			db, err := state.OpenAndMigrate(path)
			if err != nil {
				return nil, err
			}
			saved, err := db.ListEndpoints(ctx)
			db.Close()
			if err != nil {
				return nil, err
			}
			for _, ep := range saved {
				if err := add(ep, "state"); err != nil {
					return nil, err
				}
			}
		}
	}

	if cfg.EndpointsFile != "" {
		fromFile, err := watch.LoadFile(cfg.EndpointsFile)
		if err != nil {
			return nil, err
		}
		for _, ep := range fromFile {
			if err := add(ep, "file"); err != nil {
				return nil, err
			}
		}
	}
	return entries, nil
}

func printEndpoints(w io.Writer, entries []endpointEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No endpoints configured.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CAPABILITY\tNAME\tURL\tSOURCE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CapabilityID, e.Name, e.URL, e.Source)
	}
	tw.Flush()
}

type probeResult struct {
	entry endpointEntry
	card  protocol.AgentCard
	err   error
}

func findEndpoint(entries []endpointEntry, capabilityID string) (endpointEntry, bool) {
	id := strings.TrimSpace(capabilityID)
	for _, e := range entries {
		if e.CapabilityID == id {
			return e, true
		}
	}
	return endpointEntry{}, false
}

// streamer delivers a specialist answer in chunks.
type streamer interface {
	Stream(ctx context.Context, targetURL, conversationID, question string, recent []models.Turn) (<-chan string, <-chan error)
}

// call streams one answer to w under a fresh conversation id.
func call(ctx context.Context, s streamer, w io.Writer, url, question string) error {
	chunks, errs := s.Stream(ctx, url, uuid.New().String(), question, nil)
	for chunk := range chunks {
		fmt.Fprint(w, chunk)
	}
	fmt.Fprintln(w)
	return <-errs
}

// discoverer fetches agent cards.
type discoverer interface {
	Discover(ctx context.Context, baseURL string) (protocol.AgentCard, error)
}

// probe discovers every endpoint concurrently, keeping input order.
func probe(ctx context.Context, d discoverer, entries []endpointEntry) []probeResult {
	return iter.Map(entries, func(e *endpointEntry) probeResult {
		card, err := d.Discover(ctx, e.URL)
		return probeResult{entry: *e, card: card, err: err}
	})
}
