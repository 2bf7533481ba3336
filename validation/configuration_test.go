package validation

import (
	"testing"

	"github.com/Dosada05/tournament-officiating/models"
	"github.com/Dosada05/tournament-officiating/rules"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalogYAML = `
budget: 10
attachment_families: [blade]
attachments:
  turbo: 1
items:
  A: {points: 4, family: blade}
  B: {points: 3, family: blade}
  C: {points: 3, family: blade}
  D: {points: 5, family: blade}
  F: {points: 1, family: blade}
ban_list: [D]
`

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	c, err := rules.ParseCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)
	return NewValidator(c, nil)
}

func TestValidateConfiguration(t *testing.T) {
	v := newTestValidator(t)
	ten, eleven, twelve := 10, 11, 12

	withTurbo := models.NewConfiguration("A", "B", "C")
	withTurbo[0].Attachment = "turbo"

	tests := []struct {
		name string
		mode models.Mode
		cfg  models.Configuration
		want Result
	}{
		{
			name: "exactly on budget",
			mode: models.ModePointBudget,
			cfg:  models.NewConfiguration("A", "B", "C"),
			want: Result{Valid: true, EffectivePoints: &ten, Budget: 10},
		},
		{
			name: "one over budget via attachment",
			mode: models.ModePointBudget,
			cfg:  withTurbo,
			want: Result{Reason: rules.ReasonOverBudget, EffectivePoints: &eleven, Budget: 10},
		},
		{
			name: "over budget",
			mode: models.ModePointBudget,
			cfg:  models.NewConfiguration("A", "D", "C"),
			want: Result{Reason: rules.ReasonOverBudget, EffectivePoints: &twelve, Budget: 10},
		},
		{
			name: "incomplete never reports budget",
			mode: models.ModePointBudget,
			cfg:  models.NewConfiguration("D", "D", ""),
			want: Result{Reason: rules.ReasonIncomplete},
		},
		{
			name: "whitespace slot is incomplete",
			mode: models.ModeBanList,
			cfg:  models.NewConfiguration("A", "  ", "C"),
			want: Result{Reason: rules.ReasonIncomplete},
		},
		{
			name: "duplicate hides over budget",
			mode: models.ModePointBudget,
			cfg:  models.NewConfiguration("D", "d", "D"),
			want: Result{Reason: rules.ReasonDuplicate, Offending: []string{"d", "D"}},
		},
		{
			name: "duplicate hides banned item",
			mode: models.ModeBanList,
			cfg:  models.NewConfiguration("D", "A", "D"),
			want: Result{Reason: rules.ReasonDuplicate, Offending: []string{"D"}},
		},
		{
			name: "banned even though under budget",
			mode: models.ModeBanList,
			cfg:  models.NewConfiguration("D", "F", "B"),
			want: Result{Reason: rules.ReasonBannedItem, Offending: []string{"D"}},
		},
		{
			name: "ban list skips points",
			mode: models.ModeBanList,
			cfg:  models.NewConfiguration("A", "B", "C"),
			want: Result{Valid: true},
		},
		{
			name: "unrestricted",
			mode: models.ModeUnrestricted,
			cfg:  models.NewConfiguration("D", "X", "Y"),
			want: Result{Valid: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateConfiguration(tt.cfg, tt.mode)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ValidateConfiguration() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateConfiguration_IsPure(t *testing.T) {
	v := newTestValidator(t)
	cfg := models.NewConfiguration("A", "D", "C")

	first, err := v.ValidateConfiguration(cfg, models.ModePointBudget)
	require.NoError(t, err)
	_, _ = v.ValidateConfiguration(models.NewConfiguration("A", "B", "C"), models.ModePointBudget)
	_, _ = v.ValidateConfiguration(cfg, models.ModeBanList)
	second, err := v.ValidateConfiguration(cfg, models.ModePointBudget)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, models.NewConfiguration("A", "D", "C"), cfg)
}

func TestResult_Message(t *testing.T) {
	v := newTestValidator(t)
	res, err := v.ValidateConfiguration(models.NewConfiguration("A", "D", "C"), models.ModePointBudget)
	require.NoError(t, err)

	assert.Equal(t, "Main Deck: exceeds point limit, 12/10", res.Message("main"))
	assert.Equal(t, "Reserve Deck #2: exceeds point limit, 12/10", res.Message("reserve #2"))
	assert.Empty(t, Result{Valid: true}.Message("main"))
}
