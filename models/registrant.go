package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const MaxReserveConfigurations = 3

// MainSection addresses the main configuration; reserves are 1..MaxReserveConfigurations.
const MainSection = 0

var (
	ErrRegistrantFrozen = errors.New("registrant is already submitted and cannot be changed")
	ErrAttachmentInUse  = errors.New("attachment is already used in another slot of this registrant")
	ErrSectionNotFound  = errors.New("configuration section does not exist")
	ErrSlotOutOfRange   = errors.New("slot index out of range")
	ErrTooManyReserves  = errors.New("registrant already has the maximum number of reserve configurations")
)

type RegistrantStatus string

const (
	RegistrantDraft     RegistrantStatus = "draft"
	RegistrantSubmitted RegistrantStatus = "submitted"
)

// Registrant - заявка одного участника: имя, режим, основная и запасные конфигурации.
type Registrant struct {
	LocalID         string           `json:"local_id"`
	PersistentID    *int             `json:"id,omitempty"`
	TournamentID    int              `json:"tournament_id"`
	SessionID       string           `json:"session_id"`
	DisplayName     string           `json:"display_name"`
	Mode            Mode             `json:"mode"`
	Main            Configuration    `json:"main"`
	Reserves        []Configuration  `json:"reserves"`
	Status          RegistrantStatus `json:"status"`
	LastErrorReason string           `json:"last_error_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewRegistrant creates an empty draft owned by the given entrant session.
func NewRegistrant(tournamentID int, sessionID string, mode Mode) *Registrant {
	return &Registrant{
		LocalID:      uuid.NewString(),
		TournamentID: tournamentID,
		SessionID:    sessionID,
		Mode:         mode,
		Status:       RegistrantDraft,
	}
}

func (r *Registrant) IsSubmitted() bool {
	return r.Status == RegistrantSubmitted
}

// SectionName is the display label of a section: "main" or "reserve #N".
func SectionName(section int) string {
	if section == MainSection {
		return "main"
	}
	return fmt.Sprintf("reserve #%d", section)
}

// SectionCount returns the number of configurations including main.
func (r *Registrant) SectionCount() int {
	return 1 + len(r.Reserves)
}

func (r *Registrant) Section(section int) (*Configuration, error) {
	if section == MainSection {
		return &r.Main, nil
	}
	if section < 1 || section > len(r.Reserves) {
		return nil, fmt.Errorf("%w: %d", ErrSectionNotFound, section)
	}
	return &r.Reserves[section-1], nil
}

func (r *Registrant) SetItem(section, slot int, item string) error {
	if r.IsSubmitted() {
		return ErrRegistrantFrozen
	}
	cfg, err := r.Section(section)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= SlotsPerConfiguration {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	cfg[slot].Item = item
	return nil
}

// AssignAttachment sets tag on one slot. A tag may appear only once across all of the
// registrant's configurations; a second use is rejected here rather than at validation.
// An empty tag clears the slot's attachment.
func (r *Registrant) AssignAttachment(section, slot int, tag Attachment) error {
	if r.IsSubmitted() {
		return ErrRegistrantFrozen
	}
	cfg, err := r.Section(section)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= SlotsPerConfiguration {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	if tag != "" {
		for s := 0; s < r.SectionCount(); s++ {
			other, _ := r.Section(s)
			skip := -1
			if s == section {
				skip = slot
			}
			if other.HasAttachment(tag, skip) {
				return fmt.Errorf("%w: %q (%s)", ErrAttachmentInUse, tag, SectionName(s))
			}
		}
	}
	cfg[slot].Attachment = tag
	return nil
}

func (r *Registrant) AddReserve() (int, error) {
	if r.IsSubmitted() {
		return 0, ErrRegistrantFrozen
	}
	if len(r.Reserves) >= MaxReserveConfigurations {
		return 0, ErrTooManyReserves
	}
	r.Reserves = append(r.Reserves, Configuration{})
	return len(r.Reserves), nil
}

func (r *Registrant) RemoveReserve(section int) error {
	if r.IsSubmitted() {
		return ErrRegistrantFrozen
	}
	if section < 1 || section > len(r.Reserves) {
		return fmt.Errorf("%w: %d", ErrSectionNotFound, section)
	}
	r.Reserves = append(r.Reserves[:section-1], r.Reserves[section:]...)
	return nil
}

// Submit is a one-way transition; calling it twice is an error.
func (r *Registrant) Submit() error {
	if r.IsSubmitted() {
		return ErrRegistrantFrozen
	}
	r.Status = RegistrantSubmitted
	r.LastErrorReason = ""
	return nil
}
