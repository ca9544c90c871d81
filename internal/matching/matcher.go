// Package matching pairs remote pages with local records: exact external id
// first, then fuzzy title, then no match.
package matching

import (
	"sort"

	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/schema"
	"github.com/bondcrm/notionsync/internal/transform"
)

// MatchAll returns one MatchResult per remote page, in input order. When two
// or more pages resolve to the same local record only the best-ranked one
// keeps its confidence; the rest are demoted to low and flagged.
func MatchAll(pages []model.RemotePage, records []*model.Record, entity model.EntityType) ([]model.MatchResult, error) {
	e, err := schema.Lookup(entity)
	if err != nil {
		return nil, err
	}

	byExternalID := make(map[string]*model.Record, len(records))
	var unlinked []*model.Record
	for _, r := range records {
		if r == nil {
			continue
		}
		if r.HasExternalID() {
			byExternalID[*r.ExternalPageID] = r
			continue
		}
		unlinked = append(unlinked, r)
	}

	out := make([]model.MatchResult, len(pages))
	for i, p := range pages {
		out[i] = matchOne(p, byExternalID, unlinked, e)
	}
	demoteDuplicates(out)
	return out, nil
}

func matchOne(p model.RemotePage, byExternalID map[string]*model.Record, unlinked []*model.Record, e *schema.Entity) model.MatchResult {
	if r, ok := byExternalID[p.ID]; ok {
		return model.MatchResult{
			RemotePage:  p,
			LocalRecord: r,
			MatchType:   model.MatchExternalID,
			Confidence:  model.ConfidenceHigh,
		}
	}

	remoteTitle := transform.RemoteTitle(p, e.Type)
	var (
		best      *model.Record
		bestScore float64
	)
	for _, r := range unlinked {
		localTitle, _ := r.Field(e.TitleColumn).(string)
		score := Similarity(remoteTitle, localTitle)
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	if best == nil || bestScore < MinTitleSimilarity {
		return model.MatchResult{RemotePage: p, MatchType: model.MatchNone, Confidence: model.ConfidenceLow}
	}
	score := bestScore
	return model.MatchResult{
		RemotePage:      p,
		LocalRecord:     best,
		MatchType:       model.MatchTitle,
		Confidence:      ConfidenceFor(score),
		TitleSimilarity: &score,
	}
}

// demoteDuplicates keeps a single owner per local record.
func demoteDuplicates(results []model.MatchResult) {
	groups := make(map[string][]int)
	var order []string
	for i, m := range results {
		if m.LocalRecord == nil {
			continue
		}
		id := m.LocalRecord.ID
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}

	for _, id := range order {
		idx := groups[id]
		if len(idx) < 2 {
			continue
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return outranks(results[idx[a]], results[idx[b]])
		})
		for _, i := range idx[1:] {
			results[i].Confidence = model.ConfidenceLow
			results[i].Demoted = true
		}
	}
}

func outranks(a, b model.MatchResult) bool {
	aExact, bExact := a.MatchType == model.MatchExternalID, b.MatchType == model.MatchExternalID
	if aExact != bExact {
		return aExact
	}
	if ra, rb := a.Confidence.Rank(), b.Confidence.Rank(); ra != rb {
		return ra > rb
	}
	sa, sb := similarityOf(a), similarityOf(b)
	if sa != sb {
		return sa > sb
	}
	return a.RemotePage.ID < b.RemotePage.ID
}

func similarityOf(m model.MatchResult) float64 {
	if m.MatchType == model.MatchExternalID {
		return 1
	}
	if m.TitleSimilarity == nil {
		return 0
	}
	return *m.TitleSimilarity
}
