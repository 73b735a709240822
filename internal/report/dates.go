package report

import (
	"fmt"
	"time"

	"github.com/BTreeMap/CalCounter/internal/diary"
)

var (
	weekdays = [...]string{"dom", "lun", "mar", "mié", "jue", "vie", "sáb"}
	months   = [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"}
)

// shortWeekday renders "lun".
func shortWeekday(t time.Time) string {
	return weekdays[t.In(diary.Location).Weekday()]
}

// dayMonth renders "10 mar".
func dayMonth(t time.Time) string {
	t = t.In(diary.Location)
	return fmt.Sprintf("%d %s", t.Day(), months[t.Month()-1])
}

// weekdayDayMonth renders "lun, 10 mar".
func weekdayDayMonth(t time.Time) string {
	return shortWeekday(t) + ", " + dayMonth(t)
}
