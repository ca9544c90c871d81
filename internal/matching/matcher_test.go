package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bondcrm/notionsync/internal/model"
)

func page(id, title string) model.RemotePage {
	return model.RemotePage{
		ID: id,
		Properties: map[string]model.PropertyValue{
			"Title": {Title: []model.RichText{{PlainText: title}}},
		},
	}
}

func record(id, title string, externalID *string) *model.Record {
	return &model.Record{ID: id, UserID: "u1", Fields: map[string]any{"title": title}, ExternalPageID: externalID}
}

func strPtr(s string) *string { return &s }

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Weekly Chores", "Weekly Chores", 1.0},
		{"Weekly Chores", "weekly chores", 0.95},
		{"Weekly Chores!", "weekly   chores", 0.95},
		{"Clean Kitchen", "Kitchen", 0.85},
		{"", "Kitchen", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9, "%q vs %q", tt.a, tt.b)
	}
	assert.Less(t, Similarity("Clean Kitchen", "Buy Groceries"), MinTitleSimilarity)
	// one substitution over 8 characters
	assert.InDelta(t, 0.875, Similarity("laundry1", "laundry2"), 1e-9)
}

func TestConfidenceFor(t *testing.T) {
	assert.Equal(t, model.ConfidenceHigh, ConfidenceFor(0.95))
	assert.Equal(t, model.ConfidenceMedium, ConfidenceFor(0.85))
	assert.Equal(t, model.ConfidenceLow, ConfidenceFor(0.75))
}

func TestMatchAll_TitleBands(t *testing.T) {
	pages := []model.RemotePage{
		page("p1", "Weekly Chores"),
		page("p2", "Clean Kitchen"),
		page("p3", "Buy Groceries"),
	}
	records := []*model.Record{
		record("r1", "weekly chores", nil),
		record("r2", "Kitchen", nil),
	}
	got, err := MatchAll(pages, records, model.EntityTasks)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, model.MatchTitle, got[0].MatchType)
	assert.Equal(t, model.ConfidenceHigh, got[0].Confidence)
	assert.InDelta(t, 0.95, *got[0].TitleSimilarity, 1e-9)
	assert.Equal(t, "r1", got[0].LocalRecord.ID)

	assert.Equal(t, model.MatchTitle, got[1].MatchType)
	assert.Equal(t, model.ConfidenceMedium, got[1].Confidence)
	assert.Equal(t, "r2", got[1].LocalRecord.ID)

	assert.Equal(t, model.MatchNone, got[2].MatchType)
	assert.Nil(t, got[2].LocalRecord)
}

func TestMatchAll_ExternalIDWins(t *testing.T) {
	pages := []model.RemotePage{page("abc", "Weekly Chores")}
	records := []*model.Record{
		record("titled", "Weekly Chores", nil),
		record("linked", "Something else entirely", strPtr("abc")),
	}
	got, err := MatchAll(pages, records, model.EntityTasks)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.MatchExternalID, got[0].MatchType)
	assert.Equal(t, model.ConfidenceHigh, got[0].Confidence)
	assert.Equal(t, "linked", got[0].LocalRecord.ID)
}

func TestMatchAll_LinkedRecordsAreNotTitleCandidates(t *testing.T) {
	pages := []model.RemotePage{page("new", "Weekly Chores")}
	records := []*model.Record{record("linked", "Weekly Chores", strPtr("other"))}
	got, err := MatchAll(pages, records, model.EntityTasks)
	require.NoError(t, err)
	assert.Equal(t, model.MatchNone, got[0].MatchType)
}

func TestMatchAll_DuplicateDemotion(t *testing.T) {
	pages := []model.RemotePage{
		page("p1", "Clean the Kitchen"),
		page("p2", "Kitchen"),
	}
	records := []*model.Record{record("r1", "Clean Kitchen", nil)}
	got, err := MatchAll(pages, records, model.EntityTasks)
	require.NoError(t, err)

	var kept, demoted int
	for _, m := range got {
		require.NotNil(t, m.LocalRecord)
		if m.Demoted {
			demoted++
			assert.Equal(t, model.ConfidenceLow, m.Confidence)
		} else {
			kept++
		}
	}
	assert.Equal(t, 1, kept)
	assert.Equal(t, 1, demoted)
}

func TestMatchAll_DuplicatePrefersExternalID(t *testing.T) {
	r := record("r1", "Kitchen", strPtr("p2"))
	got := []model.MatchResult{
		{RemotePage: page("p1", "Kitchen"), LocalRecord: r, MatchType: model.MatchTitle, Confidence: model.ConfidenceHigh, TitleSimilarity: ptrF(1)},
		{RemotePage: page("p2", "Kitchen"), LocalRecord: r, MatchType: model.MatchExternalID, Confidence: model.ConfidenceHigh},
	}
	demoteDuplicates(got)
	assert.True(t, got[0].Demoted)
	assert.False(t, got[1].Demoted)
	assert.Equal(t, model.ConfidenceHigh, got[1].Confidence)
}

func TestMatchAll_UnknownEntity(t *testing.T) {
	_, err := MatchAll(nil, nil, model.EntityType("nope"))
	require.ErrorIs(t, err, model.ErrUnknownEntity)
}

func ptrF(f float64) *float64 { return &f }
