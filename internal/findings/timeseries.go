package findings

import (
	"time"

	"github.com/bl4ck0w1/secdash/pkg/models"
)

// HistoryDays is the length of the trailing history window.
const HistoryDays = 30

const dateLayout = "2006-01-02"

type DayBucket struct {
	Date     string `json:"date" yaml:"date"`
	Scans    int    `json:"scans" yaml:"scans"`
	Findings int    `json:"findings" yaml:"findings"`
}

// Bucketize counts scans and their findings per UTC calendar day over the
// HistoryDays days ending on now's day, oldest first. Scans created outside
// the window are ignored.
func Bucketize(now time.Time, scans []models.Scan) []DayBucket {
	today := startOfDay(now)
	first := today.AddDate(0, 0, -(HistoryDays - 1))

	buckets := make([]DayBucket, HistoryDays)
	for i := range buckets {
		buckets[i].Date = first.AddDate(0, 0, i).Format(dateLayout)
	}

	for _, s := range scans {
		if s.CreatedAt.IsZero() {
			continue
		}
		day := startOfDay(s.CreatedAt)
		if day.Before(first) || day.After(today) {
			continue
		}
		idx := daysBetween(first, day)
		if idx < 0 || idx >= HistoryDays {
			continue
		}
		buckets[idx].Scans++
		buckets[idx].Findings += len(s.Findings)
	}
	return buckets
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole calendar days; both inputs are UTC midnights.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
