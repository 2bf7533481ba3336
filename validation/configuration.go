// Package validation checks deck legality. The same functions run on entrant devices and on
// the server before a registrant is persisted.
package validation

import (
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-officiating/models"
	"github.com/Dosada05/tournament-officiating/rules"
)

// Result is the outcome of validating one configuration.
type Result struct {
	Valid  bool         `json:"valid"`
	Reason rules.Reason `json:"reason,omitempty"`
	// EffectivePoints is set in point_budget mode, including when over budget.
	EffectivePoints *int     `json:"effective_points,omitempty"`
	Budget          int      `json:"budget,omitempty"`
	Offending       []string `json:"offending,omitempty"`
}

// ValidateConfiguration is pure: completeness, then uniqueness, then the mode rule.
// An incomplete configuration only ever reports Incomplete.
func ValidateConfiguration(cfg models.Configuration, rs rules.RuleSet) Result {
	if !cfg.IsComplete() {
		return Result{Reason: rules.ReasonIncomplete}
	}

	seen := make(map[string]struct{}, models.SlotsPerConfiguration)
	var dups []string
	for _, slot := range cfg {
		key := models.NormalizeName(slot.Item)
		if _, ok := seen[key]; ok {
			dups = append(dups, slot.Item)
			continue
		}
		seen[key] = struct{}{}
	}
	if len(dups) > 0 {
		return Result{Reason: rules.ReasonDuplicate, Offending: dups}
	}

	v := rs.Evaluate(cfg)
	res := Result{
		Valid:           v.Reason == rules.ReasonNone,
		Reason:          v.Reason,
		EffectivePoints: v.Points,
		Offending:       v.Offending,
	}
	if pb, ok := rs.(*rules.PointBudgetRules); ok {
		res.Budget = pb.Budget()
	}
	return res
}

// Message renders the result for the section label, e.g. "Main Deck: exceeds point limit, 12/10".
func (r Result) Message(section string) string {
	if r.Valid {
		return ""
	}
	var detail string
	switch r.Reason {
	case rules.ReasonIncomplete:
		detail = "all 3 slots must be filled"
	case rules.ReasonDuplicate:
		detail = "each item may appear only once (" + strings.Join(r.Offending, ", ") + ")"
	case rules.ReasonOverBudget:
		points := 0
		if r.EffectivePoints != nil {
			points = *r.EffectivePoints
		}
		detail = fmt.Sprintf("exceeds point limit, %d/%d", points, r.Budget)
	case rules.ReasonBannedItem:
		detail = "contains banned item (" + strings.Join(r.Offending, ", ") + ")"
	default:
		detail = string(r.Reason)
	}
	return sectionLabel(section) + ": " + detail
}

func sectionLabel(section string) string {
	if section == models.SectionName(models.MainSection) {
		return "Main Deck"
	}
	return "Reserve Deck " + strings.TrimPrefix(section, "reserve ")
}
