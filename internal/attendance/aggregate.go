package attendance

import (
	"math"
	"time"
)

// Stats summarizes a set of records.
type Stats struct {
	Total          int     `json:"total"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Late           int     `json:"late"`
	Excused        int     `json:"excused"`
	AttendanceRate float64 `json:"attendanceRate"`
}

// WeekdayCount is the number of absences and late arrivals on one weekday.
type WeekdayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Slice is one labelled value of a status breakdown.
type Slice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// TrendPoint is one record projected for a trend line.
type TrendPoint struct {
	Date   string `json:"date"`
	Score  int    `json:"score"`
	Status Status `json:"status"`
}

// Filter narrows records by subject and inclusive date bounds.
// Empty fields, and a Subject of "All", match everything.
type Filter struct {
	Subject string
	Start   string
	End     string
}

// AllSubjects is the subject filter value that matches any subject.
const AllSubjects = "All"

// Summarize counts records per status. AttendanceRate is the share of
// PRESENT records as a percentage with one decimal, 0 for no records.
func Summarize(records []Record) Stats {
	var st Stats
	st.Total = len(records)
	for _, r := range records {
		switch r.Status {
		case StatusPresent:
			st.Present++
		case StatusAbsent:
			st.Absent++
		case StatusLate:
			st.Late++
		case StatusExcused:
			st.Excused++
		}
	}
	if st.Total > 0 {
		st.AttendanceRate = math.Round(float64(st.Present)/float64(st.Total)*1000) / 10
	}
	return st
}

var workdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// ByWeekday counts ABSENT and LATE records per weekday, Monday to Friday.
// Weekend records and records with unparsable dates are skipped.
func ByWeekday(records []Record) []WeekdayCount {
	counts := make(map[time.Weekday]int, len(workdays))
	for _, r := range records {
		if r.Status != StatusAbsent && r.Status != StatusLate {
			continue
		}
		d, err := ParseDate(r.Date)
		if err != nil {
			continue
		}
		counts[d.Weekday()]++
	}

	out := make([]WeekdayCount, 0, len(workdays))
	for _, wd := range workdays {
		out = append(out, WeekdayCount{Day: wd.String(), Count: counts[wd]})
	}
	return out
}

// Apply returns the records matching f, preserving order.
func (f Filter) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Subject != "" && f.Subject != AllSubjects && r.Subject != f.Subject {
			continue
		}
		if f.Start != "" && r.Date < f.Start {
			continue
		}
		if f.End != "" && r.Date > f.End {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Breakdown lists the non-zero status counts in display order.
func Breakdown(st Stats) []Slice {
	all := []Slice{
		{Name: "Present", Value: st.Present},
		{Name: "Absent", Value: st.Absent},
		{Name: "Late", Value: st.Late},
		{Name: "Excused", Value: st.Excused},
	}
	out := all[:0]
	for _, s := range all {
		if s.Value > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Trend returns the n most recent records oldest first. PRESENT scores
// 100, LATE 50 and everything else 0.
func Trend(records []Record, n int) []TrendPoint {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sortByDateDesc(sorted)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]TrendPoint, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		r := sorted[i]
		score := 0
		switch r.Status {
		case StatusPresent:
			score = 100
		case StatusLate:
			score = 50
		}
		out = append(out, TrendPoint{Date: r.Date, Score: score, Status: r.Status})
	}
	return out
}

// Subjects returns "All" followed by each distinct non-empty subject in
// first-seen order.
func Subjects(records []Record) []string {
	out := []string{AllSubjects}
	seen := map[string]struct{}{}
	for _, r := range records {
		if r.Subject == "" {
			continue
		}
		if _, ok := seen[r.Subject]; ok {
			continue
		}
		seen[r.Subject] = struct{}{}
		out = append(out, r.Subject)
	}
	return out
}

// Recent returns up to n records, most recent date first. A negative n
// returns them all.
func Recent(records []Record, n int) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sortByDateDesc(sorted)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
