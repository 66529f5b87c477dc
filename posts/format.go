package posts

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// YearGroup is a run of notes sharing a publication year.
type YearGroup struct {
	Year  string
	Posts []Post
}

// GroupByYear splits an already sorted list into consecutive year groups,
// keyed by the first four characters of each date.
func GroupByYear(list []Post) []YearGroup {
	var groups []YearGroup
	for _, p := range list {
		year := p.Date
		if len(year) > 4 {
			year = year[:4]
		}
		if n := len(groups); n > 0 && groups[n-1].Year == year {
			groups[n-1].Posts = append(groups[n-1].Posts, p)
			continue
		}
		groups = append(groups, YearGroup{Year: year, Posts: []Post{p}})
	}
	return groups
}

// FormatDate renders an ISO date as "Jan 2, 2006". Anything else is
// returned unchanged.
func FormatDate(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2, 2006")
}

// FormatWordCount renders a count with digit grouping, e.g. "1,204 words".
func FormatWordCount(n int) string {
	if n == 1 {
		return "1 word"
	}
	return message.NewPrinter(language.English).Sprintf("%d words", n)
}
