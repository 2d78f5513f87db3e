package synthesis

import (
	"regexp"
	"strings"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Category is the kind of problem a finding points at.
type Category string

const (
	CategoryNone      Category = ""
	CategoryInventory Category = "inventory"
	CategoryPayment   Category = "payment"
	CategoryFraud     Category = "fraud"
	CategoryShipping  Category = "shipping"
	CategorySystem    Category = "system"
)

// Label is the human-readable name of a category.
func (c Category) Label() string {
	switch c {
	case CategoryInventory:
		return "Inventory shortage"
	case CategoryPayment:
		return "Payment issue"
	case CategoryFraud:
		return "Fraud verification hold"
	case CategoryShipping:
		return "Shipping delay"
	case CategorySystem:
		return "System error"
	default:
		return "No problem identified"
	}
}

// Indicator is a phrase that marks a finding as evidence of a problem.
// Stronger indicators win over weaker ones regardless of precedence.
type Indicator struct {
	Phrase   string
	Category Category
	Strength int
}

// DefaultIndicators cover the usual order-fulfillment failure modes.
var DefaultIndicators = []Indicator{
	{"out of stock", CategoryInventory, 3},
	{"backorder", CategoryInventory, 3},
	{"insufficient stock", CategoryInventory, 3},
	{"stock shortage", CategoryInventory, 3},
	{"inventory shortage", CategoryInventory, 3},
	{"declined", CategoryPayment, 3},
	{"insufficient funds", CategoryPayment, 3},
	{"chargeback", CategoryPayment, 3},
	{"payment failed", CategoryPayment, 3},
	{"card expired", CategoryPayment, 3},
	{"flagged", CategoryFraud, 3},
	{"fraud hold", CategoryFraud, 3},
	{"verification required", CategoryFraud, 3},
	{"high risk", CategoryFraud, 3},
	{"lost in transit", CategoryShipping, 3},
	{"undeliverable", CategoryShipping, 3},
	{"restock", CategoryInventory, 2},
	{"low stock", CategoryInventory, 2},
	{"payment pending", CategoryPayment, 2},
	{"suspicious", CategoryFraud, 2},
	{"delayed", CategoryShipping, 2},
	{"delivery exception", CategoryShipping, 2},
	{"no movement", CategoryShipping, 2},
	{"system error", CategorySystem, 2},
	{"stuck", CategoryShipping, 1},
	{"failed", CategorySystem, 1},
	{"error", CategorySystem, 1},
}

// Verdict is a judge's root-cause decision.
type Verdict struct {
	Category Category
	// Source is the capability whose finding supports the verdict.
	Source    string
	Statement string
}

// Judge picks a root cause from the available findings.
type Judge interface {
	Judge(findings []models.Finding) Verdict
}

// KeywordJudge scores findings against indicator phrases. Ties in strength
// are broken by Precedence, then by consultation order.
type KeywordJudge struct {
	Indicators []Indicator
	// Precedence lists capability IDs in tie-break order. Capabilities not
	// listed rank after listed ones in consultation order.
	Precedence []string
}

var negation = regexp.MustCompile(`\b(no|not|without|never|zero|none)\b`)

// Judge implements Judge.
func (j KeywordJudge) Judge(findings []models.Finding) Verdict {
	indicators := j.Indicators
	if len(indicators) == 0 {
		indicators = DefaultIndicators
	}

	var (
		best      Verdict
		bestScore int
		bestRank  int
	)
	for i, f := range findings {
		if !f.Available {
			continue
		}
		ind, ok := match(f.Summary, indicators)
		if !ok {
			continue
		}
		rank := j.rank(f.CapabilityID, i)
		if ind.Strength > bestScore || (ind.Strength == bestScore && rank < bestRank) {
			bestScore = ind.Strength
			bestRank = rank
			best = Verdict{
				Category:  ind.Category,
				Source:    f.CapabilityID,
				Statement: statement(ind.Category, f),
			}
		}
	}
	if bestScore == 0 {
		return Verdict{Category: CategoryNone, Statement: "No specialist reported a problem."}
	}
	return best
}

func (j KeywordJudge) rank(capabilityID string, order int) int {
	for i, id := range j.Precedence {
		if id == capabilityID {
			return i
		}
	}
	return len(j.Precedence) + order
}

// match returns the strongest non-negated indicator in text.
func match(text string, indicators []Indicator) (Indicator, bool) {
	lower := strings.ToLower(text)
	var best Indicator
	found := false
	for _, ind := range indicators {
		if found && ind.Strength <= best.Strength {
			continue
		}
		if containsAffirmed(lower, strings.ToLower(ind.Phrase)) {
			best = ind
			found = true
		}
	}
	return best, found
}

// containsAffirmed reports whether phrase occurs in text without a negation
// word among the three words before it.
func containsAffirmed(text, phrase string) bool {
	offset := 0
	for {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return false
		}
		start := offset + i
		words := strings.Fields(text[:start])
		if len(words) > 3 {
			words = words[len(words)-3:]
		}
		if !negation.MatchString(strings.Join(words, " ")) {
			return true
		}
		offset = start + len(phrase)
	}
}

func statement(c Category, f models.Finding) string {
	name := f.DisplayName
	if name == "" {
		name = f.CapabilityID
	}
	return c.Label() + ": " + name + " reports " + quote(f.Summary)
}

func quote(s string) string {
	return "\"" + strings.TrimRight(s, ".") + "\""
}
