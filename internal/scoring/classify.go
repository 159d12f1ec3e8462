package scoring

import (
	"regexp"
	"strings"
)

// Complaint categories. OTHER carries no keywords and only wins when
// nothing else scores.
const (
	TypeQualityIssue   = "QUALITY_ISSUE"
	TypeSafetyConcern  = "SAFETY_CONCERN"
	TypeDelay          = "DELAY"
	TypeCommunication  = "COMMUNICATION"
	TypeCostOverrun    = "COST_OVERRUN"
	TypeMaterialDefect = "MATERIAL_DEFECT"
	TypeWorkmanship    = "WORKMANSHIP"
	TypeOther          = "OTHER"
)

type complaintCategory struct {
	name     string
	keywords []string
	patterns []*regexp.Regexp
}

// Category order is significant: ties on weight resolve to the earliest
// declared category because the comparison below uses strict >.
var complaintCategories = buildCategories([]struct {
	name     string
	keywords []string
}{
	{TypeQualityIssue, []string{"quality", "poor quality", "substandard", "inferior", "defect", "defective", "cheap", "shoddy"}},
	{TypeSafetyConcern, []string{"safety", "unsafe", "dangerous", "hazard", "risk", "injury", "accident", "code violation"}},
	{TypeDelay, []string{"delay", "late", "behind schedule", "slow", "waiting", "overdue", "deadline", "timeline"}},
	{TypeCommunication, []string{"communication", "unresponsive", "no response", "ignoring", "doesn't answer", "no call back", "unprofessional"}},
	{TypeCostOverrun, []string{"cost", "expensive", "overpriced", "budget", "overcharge", "money", "price", "fee"}},
	{TypeMaterialDefect, []string{"material", "materials", "supplies", "product", "equipment", "broken", "faulty"}},
	{TypeWorkmanship, []string{"workmanship", "work quality", "craftsmanship", "installation", "construction", "built", "finish"}},
	{TypeOther, nil},
})

func buildCategories(defs []struct {
	name     string
	keywords []string
}) []complaintCategory {
	cats := make([]complaintCategory, len(defs))
	for i, def := range defs {
		patterns := make([]*regexp.Regexp, len(def.keywords))
		for j, kw := range def.keywords {
			patterns[j] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
		}
		cats[i] = complaintCategory{name: def.name, keywords: def.keywords, patterns: patterns}
	}
	return cats
}

// ClassifyComplaint labels complaint text with the best-matching category.
// Each keyword contributes 1 for a substring hit plus 0.5 per whole-word
// occurrence. Confidence is the winner's share of the total weight.
func ClassifyComplaint(text string) Classification {
	lower := strings.ToLower(text)

	weights := make([]float64, len(complaintCategories))
	total := 0.0

	for i, cat := range complaintCategories {
		for j, kw := range cat.keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			weights[i] += 1
			weights[i] += 0.5 * float64(len(cat.patterns[j].FindAllStringIndex(lower, -1)))
		}
		total += weights[i]
	}

	selected := TypeOther
	maxWeight := 0.0
	for i, cat := range complaintCategories {
		if weights[i] > maxWeight {
			maxWeight = weights[i]
			selected = cat.name
		}
	}

	confidence := 0.0
	if total > 0 {
		confidence = maxWeight / total
	}
	if confidence > 1 {
		confidence = 1
	}

	return Classification{Type: selected, Confidence: confidence}
}
