package statictt

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/gb"
)

// serviceCalendar holds the public holidays on which operators run their
// Sunday service.
type serviceCalendar struct {
	calendar *cal.BusinessCalendar
}

func makeServiceCalendar() *serviceCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		gb.NewYear,
		gb.GoodFriday,
		gb.EasterMonday,
		gb.EarlyMay,
		gb.SpringHoliday,
		gb.SummerHoliday,
		gb.ChristmasDay,
		gb.BoxingDay,
	)
	return &serviceCalendar{calendar: calendar}
}

var defaultServiceCalendar = makeServiceCalendar()

// ScheduleDay returns the schedule column name for at: the weekday name, or
// "Sunday" when at falls on an observed bank holiday.
func ScheduleDay(at time.Time) string {
	_, observed, _ := defaultServiceCalendar.calendar.IsHoliday(at)
	if observed {
		return time.Sunday.String()
	}
	return at.Weekday().String()
}
