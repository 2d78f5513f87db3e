package models

// Finding summarizes what one consulted specialist reported.
type Finding struct {
	CapabilityID string `json:"capability_id"`
	DisplayName  string `json:"display_name"`
	Summary      string `json:"summary"`
	// Available is false when the specialist never produced an answer.
	Available bool `json:"available"`
}

// SynthesisRecord is the consensus account derived from one request's findings.
// It is recomputed on every synthesis and never mutated in place.
type SynthesisRecord struct {
	Findings  []Finding `json:"findings"`
	RootCause string    `json:"root_cause"`
	// RootCauseSource is the capability whose finding supports RootCause.
	RootCauseSource   string `json:"root_cause_source,omitempty"`
	RecommendedAction string `json:"recommended_action"`
	CustomerMessage   string `json:"customer_message,omitempty"`
	// References are identifiers quoted verbatim from the user request.
	References []string `json:"references,omitempty"`
	// Partial is set when the loop stopped before deciding it was done
	// or when a consulted specialist never answered.
	Partial bool `json:"partial"`
}

// Unavailable returns the findings of specialists that never answered.
func (r SynthesisRecord) Unavailable() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if !f.Available {
			out = append(out, f)
		}
	}
	return out
}
