package rules

import (
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-officiating/models"
)

var ErrUnknownMode = errors.New("unknown competitive mode")

// Reason classifies why a configuration failed validation.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonIncomplete Reason = "incomplete"
	ReasonDuplicate  Reason = "duplicate"
	ReasonOverBudget Reason = "over_budget"
	ReasonBannedItem Reason = "banned_item"
)

// Verdict is the mode-specific outcome for a complete configuration with distinct items.
type Verdict struct {
	Reason    Reason
	Points    *int
	Offending []string
}

// RuleSet evaluates the mode-specific rules. Completeness and uniqueness are checked by
// the caller before Evaluate.
type RuleSet interface {
	Mode() models.Mode
	Evaluate(cfg models.Configuration) Verdict
}

// NewRuleSet selects the rule set for mode. banOverride replaces the catalog's global ban
// list when non-empty.
func NewRuleSet(mode models.Mode, catalog *Catalog, banOverride []string) (RuleSet, error) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	switch mode {
	case models.ModePointBudget:
		return &PointBudgetRules{catalog: catalog}, nil
	case models.ModeBanList:
		list := catalog.BanList
		if len(banOverride) > 0 {
			list = banOverride
		}
		return newBanListRules(list), nil
	case models.ModeUnrestricted:
		return UnrestrictedRules{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

type PointBudgetRules struct {
	catalog *Catalog
}

func (r *PointBudgetRules) Mode() models.Mode { return models.ModePointBudget }

func (r *PointBudgetRules) Budget() int { return r.catalog.Budget }

// Points sums base values and flat attachment bonuses. Unknown items count as zero.
func (r *PointBudgetRules) Points(cfg models.Configuration) int {
	total := 0
	for _, slot := range cfg {
		if _, spec, ok := r.catalog.Lookup(slot.Item); ok {
			total += spec.Points
		}
		total += r.catalog.AttachmentBonus(slot.Item, slot.Attachment)
	}
	return total
}

func (r *PointBudgetRules) Evaluate(cfg models.Configuration) Verdict {
	points := r.Points(cfg)
	v := Verdict{Points: &points}
	if points > r.catalog.Budget {
		v.Reason = ReasonOverBudget
	}
	return v
}

type BanListRules struct {
	banned map[string]string
}

func newBanListRules(list []string) *BanListRules {
	banned := make(map[string]string, len(list))
	for _, name := range list {
		banned[models.NormalizeName(name)] = name
	}
	return &BanListRules{banned: banned}
}

func (r *BanListRules) Mode() models.Mode { return models.ModeBanList }

func (r *BanListRules) IsBanned(item string) bool {
	_, ok := r.banned[models.NormalizeName(item)]
	return ok
}

func (r *BanListRules) Evaluate(cfg models.Configuration) Verdict {
	var v Verdict
	for _, slot := range cfg {
		if r.IsBanned(slot.Item) {
			v.Offending = append(v.Offending, slot.Item)
		}
	}
	if len(v.Offending) > 0 {
		v.Reason = ReasonBannedItem
	}
	return v
}

type UnrestrictedRules struct{}

func (UnrestrictedRules) Mode() models.Mode { return models.ModeUnrestricted }

func (UnrestrictedRules) Evaluate(models.Configuration) Verdict { return Verdict{} }
