package dashboard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/secdash/internal/findings"
	"github.com/bl4ck0w1/secdash/pkg/models"
)

func makeFindings(n int) []models.Finding {
	sev := models.AllSeverities()
	out := make([]models.Finding, n)
	for i := range out {
		out[i] = models.Finding{
			ID:       fmt.Sprintf("f-%02d", i),
			Severity: sev[i%len(sev)],
			Type:     "vulnerability",
			Title:    fmt.Sprintf("Finding %d", i),
		}
	}
	return out
}

func TestFindingListView_Defaults(t *testing.T) {
	v := NewFindingListView(makeFindings(25))
	assert.Equal(t, findings.DefaultCriteria(), v.Criteria())
	assert.Equal(t, 1, v.CurrentPage())
	assert.Equal(t, 25, v.Total())
	assert.Equal(t, 3, v.Pages())
	assert.Len(t, v.Page(), findings.PageSize)
}

func TestFindingListView_CriteriaResetPage(t *testing.T) {
	v := NewFindingListView(makeFindings(25))
	v.SetPage(3)
	require.Len(t, v.Page(), 5)

	v.SetSeverity("critical")
	assert.Equal(t, 1, v.CurrentPage())
	assert.Equal(t, 5, v.Total())

	v.SetPage(2)
	v.SetQuery("finding 1")
	assert.Equal(t, 1, v.CurrentPage())

	v.SetPage(2)
	v.SetType("misconfiguration")
	assert.Equal(t, 1, v.CurrentPage())
	assert.Zero(t, v.Total())
}

func TestFindingListView_PageBeyondEndIsEmpty(t *testing.T) {
	v := NewFindingListView(makeFindings(5))
	v.SetPage(2)
	assert.Empty(t, v.Page())
}

func TestFindingListView_Memoises(t *testing.T) {
	v := NewFindingListView(makeFindings(12))
	first := v.Filtered()
	second := v.Filtered()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, v.memoHits)

	v.SetQuery("Finding 1")
	got := v.Filtered()
	assert.Equal(t, 1, v.memoHits)
	assert.Len(t, got, 3) // 1, 10, 11

	v.SetFindings(makeFindings(3))
	assert.Len(t, v.Filtered(), 1)
}

func TestFindingListView_BadgesCountWholeCollection(t *testing.T) {
	v := NewFindingListView(makeFindings(6))
	v.SetSeverity("high")
	badges := v.Badges()
	require.Len(t, badges, 6)
	assert.Equal(t, "all", badges[0].Value)
	assert.Equal(t, 6, badges[0].Count)
	assert.Equal(t, 2, badges[1].Count) // critical: indexes 0 and 5
}
