package calendar

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/crowdit/crowdmcp/pkg/tools"
)

const (
	localLayout = "2006-01-02T15:04:05"
	dateLayout  = "2006-01-02"
	focusGap    = 2 * time.Hour
)

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// parseLocal reads a Graph wall-clock dateTime such as
// "2026-05-04T09:00:00.0000000". A bare date means midnight.
func parseLocal(s string) (time.Time, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	if len(s) == len(dateLayout) {
		s += "T00:00:00"
	}
	t, err := time.Parse(localLayout, s)
	return t, err == nil
}

// dateTimeParam expands a bare date to the start or end of that day.
func dateTimeParam(s string, endOfDay bool) string {
	if s == "" || strings.Contains(s, "T") {
		return s
	}
	if endOfDay {
		return s + "T23:59:59"
	}
	return s + "T00:00:00"
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

type interval struct {
	start, end time.Time
}

// freeGaps returns the parts of [from, to) at least minDur long that no
// busy interval covers. busy may overlap and need not be sorted.
func freeGaps(from, to time.Time, busy []interval, minDur time.Duration) []interval {
	sorted := slices.Clone(busy)
	slices.SortFunc(sorted, func(a, b interval) int { return a.start.Compare(b.start) })

	var out []interval
	cursor := from
	for _, b := range sorted {
		if !b.end.After(cursor) {
			continue
		}
		if !b.start.Before(to) {
			break
		}
		if b.start.After(cursor) {
			end := b.start
			if end.Sub(cursor) >= minDur {
				out = append(out, interval{cursor, end})
			}
		}
		cursor = b.end
		if !cursor.Before(to) {
			return out
		}
	}
	if to.Sub(cursor) >= minDur {
		out = append(out, interval{cursor, to})
	}
	return out
}

// workday returns the working hours of the day containing d.
func (c Config) workday(d time.Time) interval {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	return interval{
		start: day.Add(time.Duration(c.WorkStart) * time.Hour),
		end:   day.Add(time.Duration(c.WorkEnd) * time.Hour),
	}
}

type freeSlot struct {
	Date            string `json:"date"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
}

// freeSlots finds working-hour gaps between from and to on weekdays.
func (c Config) freeSlots(from, to time.Time, busy []interval, minDur time.Duration) []freeSlot {
	out := []freeSlot{}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		w := c.workday(d)
		if w.start.Before(from) {
			w.start = from
		}
		if w.end.After(to) {
			w.end = to
		}
		if !w.start.Before(w.end) {
			continue
		}
		for _, g := range freeGaps(w.start, w.end, busy, minDur) {
			out = append(out, freeSlot{
				Date:            g.start.Format(dateLayout),
				Start:           g.start.Format("15:04"),
				End:             g.end.Format("15:04"),
				DurationMinutes: int(g.end.Sub(g.start) / time.Minute),
			})
		}
	}
	return out
}

type weekEvent struct {
	ID            string  `json:"id"`
	Subject       string  `json:"subject"`
	Start         string  `json:"start"`
	End           string  `json:"end"`
	DurationHours float64 `json:"duration_hours"`
	Organizer     string  `json:"organizer"`
	IsExternal    bool    `json:"is_external"`
	IsRecurring   bool    `json:"is_recurring"`
	AttendeeCount int     `json:"attendee_count"`
	ShowAs        string  `json:"show_as"`
	Response      string  `json:"response"`

	span interval
}

type gap struct {
	Start         string  `json:"start"`
	End           string  `json:"end"`
	DurationHours float64 `json:"duration_hours"`
}

type dayStats struct {
	Day            string      `json:"day"`
	Date           string      `json:"date"`
	Events         []weekEvent `json:"events"`
	MeetingCount   int         `json:"meeting_count"`
	MeetingHours   float64     `json:"meeting_hours"`
	FocusGaps      []gap       `json:"gaps_2plus_hours"`
	FirstMeeting   *string     `json:"first_meeting"`
	LastMeetingEnd *string     `json:"last_meeting_end"`
}

// analyzeDay summarises the timed, non-cancelled events starting on date.
func (c Config) analyzeDay(name string, date time.Time, events []any) dayStats {
	day := dayStats{Day: name, Date: date.Format(dateLayout), Events: []weekEvent{}, FocusGaps: []gap{}}

	var hours float64
	var busy []interval
	for _, e := range events {
		ev, _ := e.(map[string]any)
		if ev["isCancelled"] == true || ev["isAllDay"] == true {
			continue
		}
		startStr := tools.Str(tools.Get(ev, "start", "dateTime"))
		endStr := tools.Str(tools.Get(ev, "end", "dateTime"))
		start, ok1 := parseLocal(startStr)
		end, ok2 := parseLocal(endStr)
		if !ok1 || !ok2 || start.Format(dateLayout) != day.Date {
			continue
		}

		organizer := strings.ToLower(tools.Str(tools.Get(ev, "organizer", "emailAddress", "address")))
		duration := end.Sub(start).Hours()
		response := tools.Str(tools.Get(ev, "responseStatus", "response"))
		if response == "" {
			response = "none"
		}
		showAs := tools.Str(ev["showAs"])
		if showAs == "" {
			showAs = "busy"
		}
		subject := tools.Str(ev["subject"])
		if subject == "" {
			subject = "(no subject)"
		}
		day.Events = append(day.Events, weekEvent{
			ID:            tools.Str(ev["id"]),
			Subject:       subject,
			Start:         startStr,
			End:           endStr,
			DurationHours: round(duration, 2),
			Organizer:     organizer,
			IsExternal:    organizer != "" && !strings.HasSuffix(organizer, c.InternalDomain),
			IsRecurring:   ev["recurrence"] != nil || tools.Str(ev["seriesMasterId"]) != "",
			AttendeeCount: len(tools.List(ev["attendees"])),
			ShowAs:        showAs,
			Response:      response,
			span:          interval{start, end},
		})
		hours += duration
		busy = append(busy, interval{start, end})
	}

	slices.SortStableFunc(day.Events, func(a, b weekEvent) int { return a.span.start.Compare(b.span.start) })
	day.MeetingCount = len(day.Events)
	day.MeetingHours = round(hours, 1)
	if n := len(day.Events); n > 0 {
		first := day.Events[0].span.start.Format("15:04")
		last := slices.MaxFunc(day.Events, func(a, b weekEvent) int { return a.span.end.Compare(b.span.end) })
		lastEnd := last.span.end.Format("15:04")
		day.FirstMeeting, day.LastMeetingEnd = &first, &lastEnd
	}

	w := c.workday(date)
	for _, g := range freeGaps(w.start, w.end, busy, focusGap) {
		day.FocusGaps = append(day.FocusGaps, gap{
			Start:         g.start.Format("15:04"),
			End:           g.end.Format("15:04"),
			DurationHours: round(g.end.Sub(g.start).Hours(), 1),
		})
	}
	return day
}

type weekSummary struct {
	Week struct {
		Start    string `json:"start"`
		End      string `json:"end"`
		Timezone string `json:"timezone"`
	} `json:"week"`
	Overview struct {
		TotalMeetings      int     `json:"total_meetings"`
		TotalMeetingHours  float64 `json:"total_meeting_hours"`
		AvgMeetingsPerDay  float64 `json:"avg_meetings_per_day"`
		BusiestDay         string  `json:"busiest_day"`
		LightestDay        string  `json:"lightest_day"`
		TotalFocusGaps     int     `json:"total_focus_gaps_2h_plus"`
		ExternalMeetings   int     `json:"external_meetings"`
		RecurringMeetings  int     `json:"recurring_meetings"`
		BackToBackMeetings int     `json:"back_to_back_meetings"`
	} `json:"overview"`
	Days []dayStats `json:"daily_breakdown"`
}

func describeDay(d dayStats) string {
	return fmt.Sprintf("%s (%d meetings, %sh)", d.Day, d.MeetingCount, strconv.FormatFloat(d.MeetingHours, 'f', 1, 64))
}

// summarizeWeek aggregates per-day stats. Ties for busiest and lightest go
// to the earlier day.
func summarizeWeek(start time.Time, tz string, days []dayStats) weekSummary {
	var s weekSummary
	s.Week.Start = start.Format(dateLayout)
	s.Week.End = start.AddDate(0, 0, len(days)-1).Format(dateLayout)
	s.Week.Timezone = tz
	s.Days = days

	var hours float64
	busiest, lightest := days[0], days[0]
	for _, d := range days {
		s.Overview.TotalMeetings += d.MeetingCount
		s.Overview.TotalFocusGaps += len(d.FocusGaps)
		hours += d.MeetingHours
		if cmp.Compare(d.MeetingHours, busiest.MeetingHours) > 0 {
			busiest = d
		}
		if cmp.Compare(d.MeetingHours, lightest.MeetingHours) < 0 {
			lightest = d
		}
		for i, e := range d.Events {
			if e.IsExternal {
				s.Overview.ExternalMeetings++
			}
			if e.IsRecurring {
				s.Overview.RecurringMeetings++
			}
			if i > 0 && !e.span.start.After(d.Events[i-1].span.end) {
				s.Overview.BackToBackMeetings++
			}
		}
	}
	s.Overview.TotalMeetingHours = round(hours, 1)
	s.Overview.AvgMeetingsPerDay = round(float64(s.Overview.TotalMeetings)/float64(len(days)), 1)
	s.Overview.BusiestDay = describeDay(busiest)
	s.Overview.LightestDay = describeDay(lightest)
	return s
}

// weekStart is the Monday on or after now.
func weekStart(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monday := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, (7-monday)%7)
}
