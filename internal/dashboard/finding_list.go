package dashboard

import (
	"strconv"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/bl4ck0w1/secdash/internal/findings"
	"github.com/bl4ck0w1/secdash/pkg/models"
)

// FindingListView is the state of one findings list: the criteria, the current
// page and a memoised filter result. Each view owns its state.
type FindingListView struct {
	mu       sync.Mutex
	items    []models.Finding
	criteria findings.Criteria
	page     int

	memoKey  uint64
	memo     []models.Finding
	memoHits int
}

func NewFindingListView(items []models.Finding) *FindingListView {
	return &FindingListView{
		items:    items,
		criteria: findings.DefaultCriteria(),
		page:     1,
	}
}

func (v *FindingListView) SetFindings(items []models.Finding) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = items
	v.page = 1
	v.memo = nil
	v.memoKey = 0
}

func (v *FindingListView) SetSeverity(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.criteria.Severity = s
	v.page = 1
}

func (v *FindingListView) SetType(t string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.criteria.Type = t
	v.page = 1
}

func (v *FindingListView) SetQuery(q string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.criteria.Query = q
	v.page = 1
}

func (v *FindingListView) SetCriteria(c findings.Criteria) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.criteria = c
	v.page = 1
}

// SetPage moves the cursor; out-of-range pages are kept and render empty.
func (v *FindingListView) SetPage(p int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.page = p
}

func (v *FindingListView) Criteria() findings.Criteria {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.criteria
}

func (v *FindingListView) CurrentPage() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

// Filtered returns the filtered findings, recomputing only when the criteria
// or the finding collection changed.
func (v *FindingListView) Filtered() []models.Finding {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filteredLocked()
}

func (v *FindingListView) filteredLocked() []models.Finding {
	key := v.fingerprintLocked()
	if v.memo != nil && key == v.memoKey {
		v.memoHits++
		return v.memo
	}
	v.memo = findings.Filter(v.items, v.criteria)
	v.memoKey = key
	return v.memo
}

func (v *FindingListView) Page() []models.Finding {
	v.mu.Lock()
	defer v.mu.Unlock()
	return findings.Paginate(v.filteredLocked(), v.page)
}

func (v *FindingListView) Total() int {
	return len(v.Filtered())
}

func (v *FindingListView) Pages() int {
	return findings.PageCount(v.Total())
}

// Badges counts the whole collection, not the filtered one, so the options
// do not shift as the user narrows the list.
func (v *FindingListView) Badges() []findings.Badge {
	v.mu.Lock()
	defer v.mu.Unlock()
	return findings.BadgeCounts(findings.Aggregate(v.items))
}

func (v *FindingListView) fingerprintLocked() uint64 {
	h := xxh3.New()
	_, _ = h.WriteString(v.criteria.Severity)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(v.criteria.Type)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(v.criteria.Query)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strconv.Itoa(len(v.items)))
	for i := range v.items {
		_, _ = h.WriteString(v.items[i].ID)
		_, _ = h.WriteString("\x00")
	}
	return h.Sum64()
}
