package services

import (
	"context"
	"testing"

	"github.com/Dosada05/tournament-officiating/metrics"
	"github.com/Dosada05/tournament-officiating/models"
	"github.com/Dosada05/tournament-officiating/repositories"
	"github.com/Dosada05/tournament-officiating/rules"
	"github.com/Dosada05/tournament-officiating/validation"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registrationFixture struct {
	svc         RegistrationService
	tx          *fakeTx
	tournaments *fakeTournamentRepo
	registrants *fakeRegistrantRepo
	registry    *prometheus.Registry
}

const (
	registrationsMetric = "officiating_registrations_total"
	bulkBatchesMetric   = "officiating_bulk_batches_total"
)

func newRegistrationFixture(t *testing.T, ts ...*models.Tournament) *registrationFixture {
	t.Helper()
	f := &registrationFixture{
		tx:          &fakeTx{},
		tournaments: newFakeTournamentRepo(ts...),
		registrants: &fakeRegistrantRepo{},
		registry:    prometheus.NewRegistry(),
	}
	f.svc = NewRegistrationService(f.tx, f.tournaments, f.registrants, rules.DefaultCatalog(), metrics.New(f.registry), discardLogger())
	return f
}

// counter reads one labelled counter from the fixture registry.
func counter(t *testing.T, reg *prometheus.Registry, name, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func openTournament(id int, mode models.Mode) *models.Tournament {
	return &models.Tournament{ID: id, Name: "Cup", Mode: mode, Status: models.StatusOpen}
}

func legalInput(name string) SubmitRegistrantInput {
	return SubmitRegistrantInput{
		LocalID:     uuid.NewString(),
		SessionID:   "device-1",
		DisplayName: name,
		Main:        models.NewConfiguration("Dran Sword", "Hells Scythe", "Knight Shield"),
	}
}

func TestRegistrationService_SubmitAccepted(t *testing.T) {
	f := newRegistrationFixture(t, openTournament(1, models.ModePointBudget))

	in := legalInput("  Alice ")
	in.Main[0].Attachment = "turbo"
	in.Reserves = []models.Configuration{models.NewConfiguration("Leon Claw", "Viper Tail", "Rhino Horn")}

	reg, err := f.svc.Submit(context.Background(), 1, in)
	require.NoError(t, err)
	assert.Equal(t, "Alice", reg.DisplayName)
	assert.Equal(t, in.LocalID, reg.LocalID)
	assert.True(t, reg.IsSubmitted())
	require.NotNil(t, reg.PersistentID)
	require.Len(t, reg.Reserves, 1)
	assert.Equal(t, 1.0, counter(t, f.registry, registrationsMetric, "accepted"))
}

func TestRegistrationService_SubmitRejectedByServerValidation(t *testing.T) {
	f := newRegistrationFixture(t, openTournament(1, models.ModePointBudget))

	in := legalInput("Bob")
	in.Main = models.NewConfiguration("Dran Sword", "Shark Edge", "Dran Buster") // 12 points

	_, err := f.svc.Submit(context.Background(), 1, in)
	var rejected *validation.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, rules.ReasonOverBudget, rejected.Result.Reason)
	assert.Equal(t, "main", rejected.Result.FailingSection)
	assert.Equal(t, 12, *rejected.Result.EffectivePoints)
	assert.Empty(t, f.registrants.registrants, "rejected registrants are never persisted")
}

func TestRegistrationService_SubmitRejectsReserveFailure(t *testing.T) {
	f := newRegistrationFixture(t, openTournament(1, models.ModeBanList))

	in := legalInput("Carol")
	in.Reserves = []models.Configuration{models.NewConfiguration("Phoenix Wing", "Viper Tail", "Rhino Horn")}

	_, err := f.svc.Submit(context.Background(), 1, in)
	var rejected *validation.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, rules.ReasonBannedItem, rejected.Result.Reason)
	assert.NotEqual(t, "main", rejected.Result.FailingSection)
}

func TestRegistrationService_SubmitPreconditions(t *testing.T) {
	closed := openTournament(2, models.ModeUnrestricted)
	closed.Status = models.StatusStarted
	f := newRegistrationFixture(t, openTournament(1, models.ModeUnrestricted), closed)
	ctx := context.Background()

	tests := []struct {
		name         string
		tournamentID int
		edit         func(*SubmitRegistrantInput)
		want         error
	}{
		{"unknown tournament", 99, func(*SubmitRegistrantInput) {}, ErrTournamentNotFound},
		{"registration closed", 2, func(*SubmitRegistrantInput) {}, ErrRegistrationNotOpen},
		{"blank name", 1, func(in *SubmitRegistrantInput) { in.DisplayName = "   " }, ErrDisplayNameRequired},
		{"missing session", 1, func(in *SubmitRegistrantInput) { in.SessionID = "" }, ErrValidationFailed},
		{"bad local id", 1, func(in *SubmitRegistrantInput) { in.LocalID = "not-a-uuid" }, ErrValidationFailed},
		{"too many reserves", 1, func(in *SubmitRegistrantInput) {
			in.Reserves = make([]models.Configuration, models.MaxReserveConfigurations+1)
		}, ErrValidationFailed},
		{"attachment reused", 1, func(in *SubmitRegistrantInput) {
			in.Main[0].Attachment = "turbo"
			in.Main[1].Attachment = "turbo"
		}, ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := legalInput(gofakeit.Name())
			tt.edit(&in)
			_, err := f.svc.Submit(ctx, tt.tournamentID, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegistrationService_SubmitNameConflict(t *testing.T) {
	f := newRegistrationFixture(t, openTournament(1, models.ModeUnrestricted))
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, 1, legalInput("Dana"))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, 1, legalInput(" dana "))
	assert.ErrorIs(t, err, ErrRegistrantNameConflict)
	assert.Equal(t, 1.0, counter(t, f.registry, registrationsMetric, "conflict"))
}

func TestRegistrationService_ValidateDoesNotPersist(t *testing.T) {
	f := newRegistrationFixture(t, openTournament(1, models.ModePointBudget))

	in := legalInput("Eve")
	in.Main = models.NewConfiguration("Dran Sword", "", "Knight Shield")
	res, err := f.svc.Validate(context.Background(), 1, in)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, rules.ReasonIncomplete, res.Reason)
	assert.Nil(t, res.EffectivePoints)
	assert.Empty(t, f.registrants.registrants)
}

func TestRegistrationService_BulkRegister(t *testing.T) {
	f := newRegistrationFixture(t, openTournament(1, models.ModePointBudget))
	ctx := context.Background()

	created, err := f.svc.BulkRegister(ctx, 1, []string{"Frank", "", "  Grace  "})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "Grace", created[1].DisplayName)
	assert.Equal(t, BulkSessionID, created[0].SessionID)
	assert.True(t, created[0].IsSubmitted())
	assert.Equal(t, 1, f.tx.calls)
}

func TestRegistrationService_BulkRegisterAllOrNothing(t *testing.T) {
	f := newRegistrationFixture(t, openTournament(1, models.ModeUnrestricted))
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, 1, legalInput("Heidi"))
	require.NoError(t, err)

	_, err = f.svc.BulkRegister(ctx, 1, []string{"Ivan", "ivan", "HEIDI", "Judy"})
	var rejected *validation.BatchRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, []int{0, 1}, rejected.Report.IntraBatch)
	assert.Equal(t, []int{2}, rejected.Report.Colliding)
	assert.Len(t, f.registrants.registrants, 1, "no subset of a rejected batch is registered")
	assert.Equal(t, 1.0, counter(t, f.registry, bulkBatchesMetric, "rejected"))
}

func TestRegistrationService_BulkRegisterEmptyAndStorageRace(t *testing.T) {
	f := newRegistrationFixture(t, openTournament(1, models.ModeUnrestricted))
	ctx := context.Background()

	_, err := f.svc.BulkRegister(ctx, 1, []string{"", "  "})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	// A concurrent registration can still win the race at the unique index.
	calls := 0
	f.registrants.CreateFn = func(*models.Registrant) error {
		calls++
		if calls == 2 {
			return repositories.ErrRegistrantNameConflict
		}
		return nil
	}
	_, err = f.svc.BulkRegister(ctx, 1, []string{"Ken", "Liam"})
	assert.ErrorIs(t, err, ErrRegistrantNameConflict)
}

func TestRegistrationService_ReviewBatch(t *testing.T) {
	f := newRegistrationFixture(t, openTournament(1, models.ModeUnrestricted))
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, 1, legalInput("Mallory"))
	require.NoError(t, err)

	report, err := f.svc.ReviewBatch(ctx, 1, []string{"mallory", "Niaj"})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, report.Colliding)
	assert.Empty(t, report.IntraBatch)
}

func TestRegistrationService_ListAndDelete(t *testing.T) {
	f := newRegistrationFixture(t, openTournament(1, models.ModeUnrestricted))
	ctx := context.Background()

	a := legalInput("Olivia")
	b := legalInput("Peggy")
	b.SessionID = "device-2"
	created, err := f.svc.Submit(ctx, 1, a)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, 1, b)
	require.NoError(t, err)

	mine, err := f.svc.List(ctx, 1, "device-2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Peggy", mine[0].DisplayName)

	require.NoError(t, f.svc.Delete(ctx, 1, *created.PersistentID))
	assert.ErrorIs(t, f.svc.Delete(ctx, 1, *created.PersistentID), ErrRegistrantNotFound)

	all, err := f.svc.List(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
