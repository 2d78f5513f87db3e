// Package synthesis merges the specialist answers gathered during one request
// into a single consensus record.
package synthesis

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// DefaultReferencePattern matches order-style identifiers such as ORD12345.
const DefaultReferencePattern = `\b[A-Z]{2,}-?[0-9]{3,}\b`

const maxSummaryRunes = 400

// Input is everything one synthesis sees.
type Input struct {
	// Request is the user text the results answer.
	Request string
	// Results are in call order.
	Results []models.InvocationResult
}

// Drafter writes the optional end-user message.
type Drafter interface {
	Draft(ctx context.Context, request string, record models.SynthesisRecord) (string, error)
}

// Options configures a Synthesizer.
type Options struct {
	Judge Judge
	// Drafter, when set, produces SynthesisRecord.CustomerMessage.
	Drafter Drafter
	// ReferencePattern overrides DefaultReferencePattern.
	ReferencePattern string
	Logger           zerolog.Logger
}

// Synthesizer produces synthesis records.
type Synthesizer struct {
	judge   Judge
	drafter Drafter
	refs    *regexp.Regexp
	logger  zerolog.Logger
}

// New creates a Synthesizer. An invalid ReferencePattern is an error.
func New(opts Options) (*Synthesizer, error) {
	pattern := opts.ReferencePattern
	if pattern == "" {
		pattern = DefaultReferencePattern
	}
	refs, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	judge := opts.Judge
	if judge == nil {
		judge = KeywordJudge{}
	}
	return &Synthesizer{judge: judge, drafter: opts.Drafter, refs: refs, logger: opts.Logger}, nil
}

var defaultSynthesizer, _ = New(Options{Logger: zerolog.Nop()})

// Synthesize builds a record from results alone with the default judge.
func Synthesize(results []models.InvocationResult) models.SynthesisRecord {
	return defaultSynthesizer.Synthesize(context.Background(), Input{Results: results})
}

// Synthesize builds a record. Drafting failures are logged and leave
// CustomerMessage empty.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) models.SynthesisRecord {
	findings := Findings(in.Results)
	verdict := s.judge.Judge(findings)

	rec := models.SynthesisRecord{
		Findings:        findings,
		RootCause:       verdict.Statement,
		RootCauseSource: verdict.Source,
		References:      s.References(in.Request),
	}
	rec.RecommendedAction = recommend(verdict.Category, rec.Unavailable())
	rec.Partial = len(rec.Unavailable()) > 0

	if s.drafter != nil && len(findings) > 0 {
		msg, err := s.drafter.Draft(ctx, in.Request, rec)
		if err != nil {
			s.logger.Warn().Err(err).Msg("customer message draft failed")
		} else {
			rec.CustomerMessage = strings.TrimSpace(msg)
		}
	}
	return rec
}

// References returns identifiers found in text, deduplicated, in order of
// first appearance.
func (s *Synthesizer) References(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range s.refs.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Findings reduces results to one finding per consulted capability, in order
// of first consultation. The latest successful answer wins; a capability that
// never succeeded is reported unavailable with its last failure.
func Findings(results []models.InvocationResult) []models.Finding {
	var order []string
	latest := make(map[string]models.InvocationResult)
	succeeded := make(map[string]bool)

	for _, r := range results {
		if r.CapabilityID == "" {
			continue
		}
		if _, seen := latest[r.CapabilityID]; !seen {
			order = append(order, r.CapabilityID)
		}
		if r.Success {
			latest[r.CapabilityID] = r
			succeeded[r.CapabilityID] = true
		} else if !succeeded[r.CapabilityID] {
			latest[r.CapabilityID] = r
		}
	}

	findings := make([]models.Finding, 0, len(order))
	for _, id := range order {
		r := latest[id]
		f := models.Finding{CapabilityID: id, DisplayName: r.Label(), Available: r.Success}
		if r.Success {
			f.Summary = summarize(r.Text)
		} else {
			f.Summary = "specialist unavailable: " + r.Outcome()
		}
		findings = append(findings, f)
	}
	return findings
}

func summarize(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if s == "" {
		return "(empty answer)"
	}
	if utf8.RuneCountInString(s) <= maxSummaryRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxSummaryRunes])) + "…"
}

func recommend(c Category, unavailable []models.Finding) string {
	var action string
	switch c {
	case CategoryInventory:
		action = "Apologize for the delay, explain the backorder, share the expected restock date and offer alternatives."
	case CategoryPayment:
		action = "Explain the payment problem, send a secure payment link and confirm the order is held until payment clears."
	case CategoryFraud:
		action = "Explain the security review and list the verification steps needed to release the order."
	case CategoryShipping:
		action = "Share tracking details, explain the cause of the delay and give a new delivery estimate."
	case CategorySystem:
		action = "Take responsibility for the error, explain the fix and offer a goodwill gesture."
	default:
		action = "Confirm the current status with the customer; no specialist reported a blocking problem."
	}
	if len(unavailable) > 0 {
		names := make([]string, len(unavailable))
		for i, f := range unavailable {
			names[i] = f.DisplayName
		}
		action += " Re-consult " + strings.Join(names, ", ") + " once reachable."
	}
	return action
}
