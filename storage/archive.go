package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-officiating/models"
	"github.com/gosimple/slug"
)

// StandingsArchive keeps the final standings of a finished tournament.
type StandingsArchive interface {
	Archive(ctx context.Context, t *models.Tournament, standings []models.RankedParticipant) (string, error)
}

type ArchivedStandings struct {
	TournamentID int                        `json:"tournament_id"`
	Name         string                     `json:"name"`
	Status       models.TournamentStatus    `json:"status"`
	BracketRef   string                     `json:"bracket_ref,omitempty"`
	ArchivedAt   time.Time                  `json:"archived_at"`
	Standings    []models.RankedParticipant `json:"standings"`
}

type uploaderArchive struct {
	uploader FileUploader
	now      func() time.Time
}

func NewStandingsArchive(uploader FileUploader) StandingsArchive {
	return &uploaderArchive{uploader: uploader, now: time.Now}
}

// ArchiveKey is standings/<id>-<slug>.json; a re-archive overwrites the previous copy.
func ArchiveKey(t *models.Tournament) string {
	name := slug.Make(t.Name)
	if name == "" {
		return fmt.Sprintf("standings/%d.json", t.ID)
	}
	return fmt.Sprintf("standings/%d-%s.json", t.ID, name)
}

func (a *uploaderArchive) Archive(ctx context.Context, t *models.Tournament, standings []models.RankedParticipant) (string, error) {
	doc := ArchivedStandings{
		TournamentID: t.ID,
		Name:         t.Name,
		Status:       t.Status,
		ArchivedAt:   a.now().UTC(),
		Standings:    standings,
	}
	if t.BracketRef != nil {
		doc.BracketRef = *t.BracketRef
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	res, err := a.uploader.Upload(ctx, ArchiveKey(t), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if res.Location != "" {
		return res.Location, nil
	}
	return res.Key, nil
}
