package reminder

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Slot is one time of day at which a dose is taken.
type Slot struct {
	Name   string `json:"name"`
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
}

// Label renders the slot as "08:00 AM".
func (s Slot) Label() string {
	return time.Date(2000, 1, 1, s.Hour, s.Minute, 0, 0, time.UTC).Format("03:04 PM")
}

// Key identifies the slot within a day, e.g. "0800".
func (s Slot) Key() string {
	return fmt.Sprintf("%02d%02d", s.Hour, s.Minute)
}

var namedSlots = map[string]Slot{
	SlotMorning:   {Name: SlotMorning, Hour: 8},
	SlotAfternoon: {Name: SlotAfternoon, Hour: 13},
	SlotEvening:   {Name: SlotEvening, Hour: 19},
}

var bedtimeSlot = Slot{Name: "night", Hour: 22}

var explicitLayouts = []string{"15:04", "3:04 PM", "3:04PM", "03:04 PM", "03:04PM", "3 PM", "3PM"}

// ParseSlot resolves a time-of-day entry. It reports false for "as needed"
// and for anything it cannot parse.
func ParseSlot(raw string) (Slot, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, " ", "_")
	if s, ok := namedSlots[v]; ok {
		return s, true
	}
	if v == SlotAsNeeded || v == "" {
		return Slot{}, false
	}

	upper := strings.ToUpper(strings.TrimSpace(raw))
	for _, layout := range explicitLayouts {
		if t, err := time.Parse(layout, upper); err == nil {
			return Slot{Name: t.Format("15:04"), Hour: t.Hour(), Minute: t.Minute()}, true
		}
	}
	return Slot{}, false
}

// isAsNeeded reports an as-needed schedule. An as_needed entry mixed with
// real dose times does not suppress those times.
func isAsNeeded(s *Schedule) bool {
	if s.Frequency == FrequencyAsNeeded {
		return true
	}
	if len(Slots(s)) > 0 {
		return false
	}
	for _, raw := range s.TimeOfDay {
		v := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
		if v == SlotAsNeeded {
			return true
		}
	}
	return false
}

// Slots returns the schedule's dose times sorted by time of day. Entries that
// do not parse are skipped. When nothing is configured the slots are derived
// from the frequency.
func Slots(s *Schedule) []Slot {
	seen := make(map[string]bool)
	var slots []Slot
	for _, raw := range s.TimeOfDay {
		slot, ok := ParseSlot(raw)
		if !ok || seen[slot.Key()] {
			continue
		}
		seen[slot.Key()] = true
		slots = append(slots, slot)
	}
	if len(slots) == 0 && len(s.TimeOfDay) == 0 {
		slots = defaultSlots(s.Frequency)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Hour != slots[j].Hour {
			return slots[i].Hour < slots[j].Hour
		}
		return slots[i].Minute < slots[j].Minute
	})
	return slots
}

func defaultSlots(f Frequency) []Slot {
	m, a, e := namedSlots[SlotMorning], namedSlots[SlotAfternoon], namedSlots[SlotEvening]
	switch f {
	case FrequencyOnceDaily:
		return []Slot{m}
	case FrequencyTwiceDaily:
		return []Slot{m, e}
	case FrequencyThreeTimesDaily:
		return []Slot{m, a, e}
	case FrequencyFourTimesDaily:
		return []Slot{m, a, e, bedtimeSlot}
	default:
		return nil
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday accepts full or abbreviated English weekday names.
func ParseWeekday(raw string) (time.Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(raw))]
	return d, ok
}

// Weekdays returns the set of days the schedule runs on. An empty DaysOfWeek
// means every day; unrecognised names are ignored.
func Weekdays(s *Schedule) map[time.Weekday]bool {
	days := make(map[time.Weekday]bool, 7)
	if len(s.DaysOfWeek) == 0 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			days[d] = true
		}
		return days
	}
	for _, raw := range s.DaysOfWeek {
		if d, ok := ParseWeekday(raw); ok {
			days[d] = true
		}
	}
	return days
}

func civilDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// InRange reports whether now's calendar date lies within the schedule's
// date range. A zero start date never matches.
func InRange(s *Schedule, now time.Time) bool {
	if s.StartDate.IsZero() {
		return false
	}
	loc := now.Location()
	today := civilDate(now, loc)
	start := time.Date(s.StartDate.Year(), s.StartDate.Month(), s.StartDate.Day(), 0, 0, 0, 0, loc)
	if today.Before(start) {
		return false
	}
	if s.EndDate != nil {
		end := time.Date(s.EndDate.Year(), s.EndDate.Month(), s.EndDate.Day(), 0, 0, 0, 0, loc)
		if today.After(end) {
			return false
		}
	}
	return true
}

// DueSlot returns the slot due at now. Due means the schedule is active, now
// falls in its date range and on one of its weekdays, and now's hour equals a
// slot's hour.
func DueSlot(s *Schedule, now time.Time) (Slot, bool) {
	if s == nil || !s.IsActive || isAsNeeded(s) {
		return Slot{}, false
	}
	if !InRange(s, now) {
		return Slot{}, false
	}
	if !Weekdays(s)[now.Weekday()] {
		return Slot{}, false
	}
	for _, slot := range Slots(s) {
		if now.Hour() == slot.Hour {
			return slot, true
		}
	}
	return Slot{}, false
}

// IsDueNow reports whether an occurrence of s should fire at now.
func IsDueNow(s *Schedule, now time.Time) bool {
	_, ok := DueSlot(s, now)
	return ok
}

// NextOccurrence buckets now against the schedule's slots: the first slot
// whose hour is still ahead today, otherwise the earliest slot tomorrow.
func NextOccurrence(s *Schedule, now time.Time) Occurrence {
	if s == nil {
		return Occurrence{Label: "No upcoming doses"}
	}
	if isAsNeeded(s) {
		return Occurrence{Label: "As needed"}
	}
	if !s.IsActive || ended(s, now) {
		return Occurrence{Label: "No upcoming doses"}
	}
	slots := Slots(s)
	if len(slots) == 0 {
		return Occurrence{Label: "No upcoming doses"}
	}
	for _, slot := range slots {
		if now.Hour() < slot.Hour {
			slot := slot
			return Occurrence{Label: "Today, " + slot.Label(), Slot: &slot}
		}
	}
	first := slots[0]
	return Occurrence{Label: "Tomorrow, " + first.Label(), Slot: &first}
}

// DescribeNextOccurrence returns a label such as "Today, 08:00 AM".
func DescribeNextOccurrence(s *Schedule, now time.Time) string {
	return NextOccurrence(s, now).Label
}

func ended(s *Schedule, now time.Time) bool {
	if s.EndDate == nil {
		return false
	}
	loc := now.Location()
	end := time.Date(s.EndDate.Year(), s.EndDate.Month(), s.EndDate.Day(), 0, 0, 0, 0, loc)
	return civilDate(now, loc).After(end)
}

var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// DaysLabel returns "everyday" when the schedule runs all week, otherwise the
// weekday names starting from Monday.
func DaysLabel(s *Schedule) string {
	days := Weekdays(s)
	if len(days) == 7 {
		return "everyday"
	}
	names := make([]string, 0, len(days))
	for _, d := range weekOrder {
		if days[d] {
			names = append(names, d.String())
		}
	}
	return strings.Join(names, ", ")
}

const dateLayout = "January 2, 2006"

// DateRangeLabel renders the active date range.
func DateRangeLabel(s *Schedule) string {
	start := s.StartDate.Format(dateLayout)
	if s.EndDate == nil {
		return "starting " + start
	}
	end := s.EndDate.Format(dateLayout)
	if start == end {
		return "on " + start
	}
	return fmt.Sprintf("from %s to %s", start, end)
}
