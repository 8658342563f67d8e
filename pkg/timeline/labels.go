package timeline

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// labelSet holds the localized separator vocabulary for one language.
type labelSet struct {
	start      string
	today      string
	yesterday  string
	weekdays   [7]string // indexed by time.Weekday
	dateFormat func(time.Time) string
}

var english = labelSet{
	start:     "start of conversation",
	today:     "today",
	yesterday: "yesterday",
	weekdays: [7]string{
		"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
	},
	dateFormat: func(t time.Time) string { return t.Format("Jan 2, 2006") },
}

var spanish = labelSet{
	start:     "inicio de la conversación",
	today:     "hoy",
	yesterday: "ayer",
	weekdays: [7]string{
		"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
	},
	dateFormat: func(t time.Time) string {
		return fmt.Sprintf("%02d/%02d/%d", t.Day(), int(t.Month()), t.Year())
	},
}

var supported = language.NewMatcher([]language.Tag{
	language.English, // fallback
	language.Spanish,
})

// labelsFor picks the label set for a BCP 47 tag ("es-MX" matches Spanish).
func labelsFor(locale string) labelSet {
	tag, err := language.Parse(locale)
	if err != nil {
		return english
	}
	_, index, _ := supported.Match(tag)
	if index == 1 {
		return spanish
	}
	return english
}

// dayLabel renders a date-boundary label relative to the viewer's clock:
// today / yesterday / weekday name within seven days / short date beyond.
// The difference is counted in calendar days of the viewer's zone, on UTC
// midnights, so a DST transition between the two days cannot skew the count.
func (l labelSet) dayLabel(t, now time.Time) string {
	loc := now.Location()
	day := t.In(loc)
	dy, dm, dd := day.Date()
	ry, rm, rd := now.In(loc).Date()
	span := time.Date(ry, rm, rd, 0, 0, 0, 0, time.UTC).
		Sub(time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC))
	switch diff := int(span.Hours() / 24); {
	case diff <= 0:
		return l.today
	case diff == 1:
		return l.yesterday
	case diff < 7:
		return l.weekdays[day.Weekday()]
	default:
		return l.dateFormat(day)
	}
}
