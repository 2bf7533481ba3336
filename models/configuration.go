package models

import "strings"

// SlotsPerConfiguration - фиксированное число слотов в одной конфигурации (колоде).
const SlotsPerConfiguration = 3

// Mode выбирает набор правил, действующий для всего турнира.
type Mode string

const (
	ModePointBudget  Mode = "point_budget"
	ModeBanList      Mode = "ban_list"
	ModeUnrestricted Mode = "unrestricted"
)

func (m Mode) Valid() bool {
	switch m {
	case ModePointBudget, ModeBanList, ModeUnrestricted:
		return true
	}
	return false
}

// Attachment is an optional modifier tag paired with a slot. Empty means none.
type Attachment string

type Slot struct {
	Item       string     `json:"item"`
	Attachment Attachment `json:"attachment,omitempty"`
}

// Configuration is an ordered 3-slot item selection.
type Configuration [SlotsPerConfiguration]Slot

// NewConfiguration builds a configuration from item names; extra names are ignored.
func NewConfiguration(items ...string) Configuration {
	var c Configuration
	for i := 0; i < len(items) && i < SlotsPerConfiguration; i++ {
		c[i].Item = items[i]
	}
	return c
}

func (c Configuration) Items() []string {
	items := make([]string, 0, SlotsPerConfiguration)
	for _, s := range c {
		items = append(items, s.Item)
	}
	return items
}

func (c Configuration) IsComplete() bool {
	for _, s := range c {
		if strings.TrimSpace(s.Item) == "" {
			return false
		}
	}
	return true
}

// HasAttachment reports whether tag is set on any slot, skipping the slot at skip (-1 for none).
func (c Configuration) HasAttachment(tag Attachment, skip int) bool {
	for i, s := range c {
		if i == skip {
			continue
		}
		if s.Attachment != "" && s.Attachment == tag {
			return true
		}
	}
	return false
}

// NormalizeName is the comparison form used for item and registrant names.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
