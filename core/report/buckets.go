package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/enrollment"
)

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthKey numbers UTC calendar months: year*12 + month-1.
func monthKey(t time.Time) int {
	t = t.UTC()
	return t.Year()*12 + int(t.Month()) - 1
}

// monthKeys returns the keys of the n calendar months ending with the month of now, oldest first.
func monthKeys(now time.Time, n int) []int {
	last := monthKey(now)
	keys := make([]int, n)
	for i := range keys {
		keys[i] = last - n + 1 + i
	}
	return keys
}

// countByMonth counts records per calendar month over the n months ending with now.
// Months without records are reported with a zero count.
func countByMonth[T any](now time.Time, n int, records []T, dateOf func(T) time.Time) []MonthCount {
	counts := make(map[int]int, n)
	for _, r := range records {
		counts[monthKey(dateOf(r))]++
	}
	keys := monthKeys(now, n)
	buckets := make([]MonthCount, len(keys))
	for i, k := range keys {
		buckets[i] = MonthCount{Year: k / 12, Month: k%12 + 1, Count: counts[k]}
	}
	return buckets
}

// countBuckets counts occurrences of each value, ordered by value or, if byCount, by descending count.
func countBuckets(values []string, byCount bool) []CountBucket {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	buckets := make([]CountBucket, 0, len(counts))
	for v, n := range counts {
		buckets = append(buckets, CountBucket{ID: v, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if byCount && buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].ID < buckets[j].ID
	})
	return buckets
}

func amountBuckets(enrs []enrollment.Summary, keyOf func(enrollment.Summary) string) []AmountBucket {
	type sums struct {
		count       int
		total, paid decimal.Decimal
	}
	byKey := make(map[string]*sums)
	for _, e := range enrs {
		k := keyOf(e)
		s, ok := byKey[k]
		if !ok {
			s = &sums{}
			byKey[k] = s
		}
		s.count++
		s.total = s.total.Add(decimal.NewFromFloat(e.TotalAmount))
		s.paid = s.paid.Add(decimal.NewFromFloat(e.AmountPaid))
	}
	buckets := make([]AmountBucket, 0, len(byKey))
	for k, s := range byKey {
		buckets = append(buckets, AmountBucket{
			ID:          k,
			Count:       s.count,
			TotalAmount: s.total.InexactFloat64(),
			PaidAmount:  s.paid.InexactFloat64(),
		})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].ID < buckets[j].ID })
	return buckets
}

// popularCourses ranks active courses by their number of enrollments of any status.
func popularCourses(crss []course.Course, enrs []enrollment.Summary) []PopularCourse {
	counts := make(map[string]int)
	for _, e := range enrs {
		counts[e.CourseID]++
	}
	popular := make([]PopularCourse, 0, len(crss))
	for _, c := range crss {
		if !c.IsActive() {
			continue
		}
		popular = append(popular, PopularCourse{ID: c.ID, Title: c.Title, EnrollmentCount: counts[c.ID]})
	}
	sort.SliceStable(popular, func(i, j int) bool {
		if popular[i].EnrollmentCount != popular[j].EnrollmentCount {
			return popular[i].EnrollmentCount > popular[j].EnrollmentCount
		}
		return popular[i].Title < popular[j].Title
	})
	if len(popular) > PopularLimit {
		popular = popular[:PopularLimit]
	}
	return popular
}
