package reporting

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyforge/storyforge/pkg/entitlements"
)

func TestComparisonSheetGenerate(t *testing.T) {
	sheet := NewComparisonSheet(nil)

	tests := []struct {
		name string
		opts ComparisonOptions
	}{
		{name: "defaults", opts: ComparisonOptions{}},
		{name: "highlighted_tier", opts: ComparisonOptions{
			Highlight:   entitlements.TierWordsmith,
			GeneratedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Title:       "Your Storyforge Plan",
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			out, err := sheet.Generate(tt.opts)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")), "output should be a PDF document")
			assert.Greater(t, len(out), 500)
		})
	}
}

func TestComparisonSheetRejectsUnknownHighlight(t *testing.T) {
	_, err := NewComparisonSheet(nil).Generate(ComparisonOptions{Highlight: "mythic"})
	require.ErrorIs(t, err, entitlements.ErrUnknownTier)
}

func TestCellText(t *testing.T) {
	tests := []struct {
		name  string
		value entitlements.Value
		want  string
	}{
		{name: "flag_on", value: entitlements.Flag(true), want: "Yes"},
		{name: "flag_off", value: entitlements.Flag(false), want: "-"},
		{name: "unlimited", value: entitlements.Limit(entitlements.Unlimited), want: "Unlimited"},
		{name: "disabled", value: entitlements.Limit(0), want: "-"},
		{name: "numeric", value: entitlements.Limit(250), want: "250"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cellText(tt.value))
		})
	}
}
