package validation

import (
	"github.com/Dosada05/tournament-officiating/models"
	"github.com/Dosada05/tournament-officiating/rules"
)

// SectionResult is the outcome for one configuration of a registrant.
type SectionResult struct {
	Section string `json:"section"`
	Result
}

type RegistrantResult struct {
	Valid           bool            `json:"valid"`
	FailingSection  string          `json:"failing_section,omitempty"`
	Reason          rules.Reason    `json:"reason,omitempty"`
	EffectivePoints *int            `json:"effective_points,omitempty"`
	Message         string          `json:"message,omitempty"`
	Sections        []SectionResult `json:"sections"`
}

// Validator binds a catalog and a tournament's ban list override.
type Validator struct {
	catalog     *rules.Catalog
	banOverride []string
}

func NewValidator(catalog *rules.Catalog, banOverride []string) *Validator {
	if catalog == nil {
		catalog = rules.DefaultCatalog()
	}
	return &Validator{catalog: catalog, banOverride: banOverride}
}

func (v *Validator) RuleSet(mode models.Mode) (rules.RuleSet, error) {
	return rules.NewRuleSet(mode, v.catalog, v.banOverride)
}

func (v *Validator) ValidateConfiguration(cfg models.Configuration, mode models.Mode) (Result, error) {
	rs, err := v.RuleSet(mode)
	if err != nil {
		return Result{}, err
	}
	return ValidateConfiguration(cfg, rs), nil
}

// ValidateRegistrant checks main first, then each reserve in order, stopping at the first
// failure. Sections holds every configuration checked up to and including the failing one.
// The display name is not checked here.
func (v *Validator) ValidateRegistrant(r *models.Registrant) (RegistrantResult, error) {
	rs, err := v.RuleSet(r.Mode)
	if err != nil {
		return RegistrantResult{}, err
	}

	out := RegistrantResult{Sections: make([]SectionResult, 0, r.SectionCount())}
	for section := 0; section < r.SectionCount(); section++ {
		cfg, _ := r.Section(section)
		name := models.SectionName(section)
		res := ValidateConfiguration(*cfg, rs)
		out.Sections = append(out.Sections, SectionResult{Section: name, Result: res})
		if !res.Valid {
			out.FailingSection = name
			out.Reason = res.Reason
			out.EffectivePoints = res.EffectivePoints
			out.Message = res.Message(name)
			return out, nil
		}
	}

	out.Valid = true
	out.EffectivePoints = out.Sections[0].EffectivePoints
	return out, nil
}

// RejectedError carries a failed RegistrantResult across service boundaries.
type RejectedError struct {
	Result RegistrantResult
}

func (e *RejectedError) Error() string {
	return "registrant rejected: " + e.Result.Message
}

// Err returns a *RejectedError for an invalid result.
func (r RegistrantResult) Err() error {
	if r.Valid {
		return nil
	}
	return &RejectedError{Result: r}
}
