package findings

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/secdash/pkg/models"
)

func sampleFindings() []models.Finding {
	return []models.Finding{
		{ID: "1", Severity: models.SeverityHigh, Type: "vulnerability", Title: "Reflected XSS", Description: "Input echoed without encoding"},
		{ID: "2", Severity: models.SeverityMedium, Type: "misconfiguration", Title: "Missing HSTS header", Description: "Strict-Transport-Security not set"},
		{ID: "3", Severity: models.SeverityCritical, Type: "vulnerability", Title: "SQL injection", Description: "Login form concatenates xss-like payloads"},
		{ID: "4", Severity: models.SeverityInfo, Type: "information", Title: "Server banner", Description: "nginx/1.18"},
		{ID: "5", Severity: models.SeverityHigh, Type: "misconfiguration", Title: "Weak TLS", Description: "TLS 1.0 enabled"},
	}
}

func ids(fs []models.Finding) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.ID)
	}
	return out
}

func TestFilter_AllCriteriaReturnsInput(t *testing.T) {
	in := sampleFindings()
	got := Filter(in, Criteria{Severity: All, Type: All})
	assert.Equal(t, in, got)
}

func TestFilter_EmptyCriteriaBehaveAsAll(t *testing.T) {
	in := sampleFindings()
	assert.Equal(t, in, Filter(in, Criteria{}))
}

func TestFilter_SeverityAndQuery(t *testing.T) {
	got := Filter(sampleFindings(), Criteria{Severity: "high", Type: All, Query: "xss"})
	require.Len(t, got, 1)
	assert.Equal(t, "Reflected XSS", got[0].Title)
}

func TestFilter_QueryMatchesDescriptionCaseInsensitive(t *testing.T) {
	got := Filter(sampleFindings(), Criteria{Severity: All, Type: All, Query: "XSS"})
	assert.Equal(t, []string{"1", "3"}, ids(got))
}

func TestFilter_TypeCriterion(t *testing.T) {
	got := Filter(sampleFindings(), Criteria{Severity: All, Type: "misconfiguration"})
	assert.Equal(t, []string{"2", "5"}, ids(got))
}

func TestFilter_CriteriaAreANDed(t *testing.T) {
	got := Filter(sampleFindings(), Criteria{Severity: "high", Type: "misconfiguration", Query: "tls"})
	assert.Equal(t, []string{"5"}, ids(got))

	got = Filter(sampleFindings(), Criteria{Severity: "critical", Type: "misconfiguration"})
	assert.Empty(t, got)
}

func TestFilter_SubsetPreservesOrderAndDoesNotMutate(t *testing.T) {
	in := sampleFindings()
	before := sampleFindings()

	criteria := []Criteria{
		{Severity: "high"},
		{Type: "vulnerability"},
		{Query: "e"},
		{Severity: "low", Query: "nothing"},
	}
	for _, c := range criteria {
		got := Filter(in, c)
		assert.Equal(t, before, in, "input mutated for %+v", c)

		pos := -1
		for _, f := range got {
			idx := -1
			for i := range in {
				if in[i].ID == f.ID {
					idx = i
					break
				}
			}
			require.GreaterOrEqual(t, idx, 0, "result not in input")
			assert.Greater(t, idx, pos, "order not preserved for %+v", c)
			pos = idx
		}
	}
}

func TestFilter_UnknownSeverityOnlyMatchesAll(t *testing.T) {
	in := []models.Finding{{ID: "x", Severity: "bogus", Title: "odd"}}
	assert.Len(t, Filter(in, DefaultCriteria()), 1)
	assert.Empty(t, Filter(in, Criteria{Severity: "info"}))
}

func TestFilter_NilInput(t *testing.T) {
	got := Filter(nil, DefaultCriteria())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPaginate(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}

	assert.Equal(t, items[0:10], Paginate(items, 1))
	assert.Equal(t, items[10:20], Paginate(items, 2))
	assert.Equal(t, items[20:23], Paginate(items, 3))
	assert.Empty(t, Paginate(items, 4))
	assert.Empty(t, Paginate(items, 0))
	assert.Empty(t, Paginate(items, -2))
	assert.Empty(t, Paginate([]int(nil), 1))
}

func TestPaginate_HugePageNumbers(t *testing.T) {
	items := make([]models.Finding, 25)
	for _, page := range []int{922337203685477582, math.MaxInt, math.MaxInt / PageSize} {
		assert.NotPanics(t, func() {
			assert.Empty(t, Paginate(items, page))
		}, "page %d", page)
	}
}

func TestPaginate_BeyondLastPageOfFilteredResult(t *testing.T) {
	var fs []models.Finding
	for i := 0; i < 12; i++ {
		fs = append(fs, models.Finding{ID: fmt.Sprint(i), Severity: models.SeverityLow, Title: "t"})
	}
	res := Filter(fs, DefaultCriteria())
	last := PageCount(len(res))
	assert.Equal(t, 2, last)
	assert.Len(t, Paginate(res, last), 2)
	assert.Empty(t, Paginate(res, last+1))
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(0))
	assert.Equal(t, 1, PageCount(1))
	assert.Equal(t, 1, PageCount(10))
	assert.Equal(t, 2, PageCount(11))
}

func TestTypes(t *testing.T) {
	assert.Equal(t, []string{"vulnerability", "misconfiguration", "information"}, Types(sampleFindings()))
	assert.Empty(t, Types(nil))
}
