package calendar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"golang.org/x/sync/errgroup"

	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/vendors/graph"
)

var (
	showAsValues = []string{"free", "tentative", "busy", "oof", "workingElsewhere"}
	importances  = []string{"low", "normal", "high"}
	responses    = map[string]struct{ endpoint, past string }{
		"accept":    {"accept", "accepted"},
		"decline":   {"decline", "declined"},
		"tentative": {"tentativelyAccept", "tentatively accepted"},
	}
)

type (
	mailboxArgs struct {
		UserID string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	listEventsArgs struct {
		StartDate  string `json:"start_date,omitempty" jsonschema:"Start date (YYYY-MM-DD or ISO datetime), default today"`
		EndDate    string `json:"end_date,omitempty" jsonschema:"End date (YYYY-MM-DD or ISO datetime), default start_date plus days"`
		Days       int    `json:"days,omitempty" jsonschema:"Days to show when end_date is empty (default 7)"`
		Top        int    `json:"top,omitempty" jsonschema:"Max events, max 100 (default 50)"`
		CalendarID string `json:"calendar_id,omitempty" jsonschema:"Calendar ID; empty uses the default calendar"`
		Timezone   string `json:"timezone,omitempty" jsonschema:"Timezone for returned times (default Australia/Sydney)"`
		UserID     string `json:"user_id,omitempty" jsonschema:"Override the default mailbox"`
	}

	eventArgs struct {
		EventID string `json:"event_id" jsonschema:"Event ID from calendar_list_events"`
		UserID  string `json:"user_id,omitempty" jsonschema:"Override the default mailbox"`
	}

	searchEventsArgs struct {
		Query     string `json:"query" jsonschema:"Text to match in the event subject"`
		StartDate string `json:"start_date,omitempty" jsonschema:"Only events starting on or after this date (YYYY-MM-DD)"`
		EndDate   string `json:"end_date,omitempty" jsonschema:"Only events ending on or before this date (YYYY-MM-DD)"`
		Top       int    `json:"top,omitempty" jsonschema:"Max results, max 50 (default 25)"`
		UserID    string `json:"user_id,omitempty" jsonschema:"Override the default mailbox"`
	}

	createEventArgs struct {
		Subject         string `json:"subject" jsonschema:"Event title"`
		Start           string `json:"start" jsonschema:"Start (YYYY-MM-DD for all-day, or YYYY-MM-DDTHH:MM:SS)"`
		End             string `json:"end" jsonschema:"End, same format as start"`
		Body            string `json:"body,omitempty" jsonschema:"Plain-text description"`
		Location        string `json:"location,omitempty" jsonschema:"Room, address or Microsoft Teams"`
		Attendees       string `json:"attendees,omitempty" jsonschema:"Comma-separated addresses; prefix optional: for optional attendees"`
		IsAllDay        bool   `json:"is_all_day,omitempty" jsonschema:"All-day event"`
		IsOnlineMeeting bool   `json:"is_online_meeting,omitempty" jsonschema:"Create a Teams meeting link"`
		ShowAs          string `json:"show_as,omitempty" jsonschema:"free, tentative, busy (default), oof or workingElsewhere"`
		Importance      string `json:"importance,omitempty" jsonschema:"low, normal (default) or high"`
		Timezone        string `json:"timezone,omitempty" jsonschema:"Timezone of start and end (default Australia/Sydney)"`
		ReminderMinutes *int   `json:"reminder_minutes,omitempty" jsonschema:"Reminder minutes before start (default 15, 0 disables)"`
		Categories      string `json:"categories,omitempty" jsonschema:"Comma-separated categories"`
		IsPrivate       bool   `json:"is_private,omitempty" jsonschema:"Mark the event private"`
		CalendarID      string `json:"calendar_id,omitempty" jsonschema:"Calendar ID; empty uses the default calendar"`
		UserID          string `json:"user_id,omitempty" jsonschema:"Override the default mailbox"`
	}

	updateEventArgs struct {
		EventID         string `json:"event_id" jsonschema:"Event ID to update"`
		Subject         string `json:"subject,omitempty" jsonschema:"New subject"`
		Start           string `json:"start,omitempty" jsonschema:"New start"`
		End             string `json:"end,omitempty" jsonschema:"New end"`
		Body            string `json:"body,omitempty" jsonschema:"New description"`
		Location        string `json:"location,omitempty" jsonschema:"New location"`
		ShowAs          string `json:"show_as,omitempty" jsonschema:"New free/busy status"`
		Importance      string `json:"importance,omitempty" jsonschema:"New importance"`
		Timezone        string `json:"timezone,omitempty" jsonschema:"Timezone of start and end (default Australia/Sydney)"`
		IsOnlineMeeting *bool  `json:"is_online_meeting,omitempty" jsonschema:"Turn the Teams meeting on or off"`
		ReminderMinutes *int   `json:"reminder_minutes,omitempty" jsonschema:"Reminder minutes, 0 disables"`
		Categories      string `json:"categories,omitempty" jsonschema:"New comma-separated categories"`
		UserID          string `json:"user_id,omitempty" jsonschema:"Override the default mailbox"`
	}

	respondArgs struct {
		EventID      string `json:"event_id" jsonschema:"Event ID to respond to"`
		Response     string `json:"response" jsonschema:"accept, decline or tentative"`
		Comment      string `json:"comment,omitempty" jsonschema:"Message to the organizer"`
		SendResponse *bool  `json:"send_response,omitempty" jsonschema:"Notify the organizer (default true)"`
		UserID       string `json:"user_id,omitempty" jsonschema:"Override the default mailbox"`
	}

	freeTimeArgs struct {
		StartDate          string `json:"start_date" jsonschema:"Start date (YYYY-MM-DD or ISO datetime)"`
		EndDate            string `json:"end_date" jsonschema:"End date (YYYY-MM-DD or ISO datetime)"`
		MinDurationMinutes int    `json:"min_duration_minutes,omitempty" jsonschema:"Minimum free slot in minutes (default 30)"`
		Schedules          string `json:"schedules,omitempty" jsonschema:"Comma-separated addresses to check; empty checks the mailbox owner"`
		Timezone           string `json:"timezone,omitempty" jsonschema:"Timezone (default Australia/Sydney)"`
		UserID             string `json:"user_id,omitempty" jsonschema:"Override the default mailbox"`
	}

	weeklyArgs struct {
		StartDate string `json:"start_date,omitempty" jsonschema:"Monday of the week (YYYY-MM-DD), default the upcoming Monday"`
		Timezone  string `json:"timezone,omitempty" jsonschema:"Timezone (default Australia/Sydney)"`
		UserID    string `json:"user_id,omitempty" jsonschema:"Override the default mailbox"`
	}
)

// Tools returns the calendar_* tools.
func (p *Provider) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("calendar_list_events", "List Calendar Events",
			"List events in a date range. Recurring events are expanded into occurrences.",
			tools.ReadOnly, p.listEvents),
		tools.New("calendar_get_event", "Get Calendar Event",
			"Get an event with body, attendees and meeting link.",
			tools.ReadOnly, p.getEvent),
		tools.New("calendar_search_events", "Search Calendar Events",
			"Search events by subject, optionally within a date range.",
			tools.ReadOnly, p.searchEvents),
		tools.New("calendar_create_event", "Create Calendar Event",
			heredoc.Doc(`
				Create a calendar event.

				Attendees are comma-separated; prefix an address with optional: to
				invite it as optional, e.g. "chris@crowdit.com.au,optional:jane@example.com".
			`),
			tools.Mutating, p.createEvent),
		tools.New("calendar_update_event", "Update Calendar Event",
			"Update an event. Only the fields provided are changed.",
			tools.Mutating, p.updateEvent),
		tools.New("calendar_delete_event", "Delete Calendar Event",
			"Delete an event. This cannot be undone.",
			tools.Destructive, p.deleteEvent),
		tools.New("calendar_respond_event", "Respond to Calendar Event",
			"Accept, decline or tentatively accept a meeting invitation.",
			tools.Mutating, p.respondEvent),
		tools.New("calendar_find_free_time", "Find Free Time",
			heredoc.Doc(`
				Find free working-hour slots for one or more people.

				Busy times come from the free/busy schedule; free_slots lists the
				weekday gaps of at least min_duration_minutes inside working hours.
			`),
			tools.ReadOnly, p.findFreeTime),
		tools.New("calendar_list_calendars", "List Calendars",
			"List calendars with IDs, colours and permissions.",
			tools.ReadOnly, p.listCalendars),
		tools.New("calendar_weekly_summary", "Weekly Calendar Summary",
			heredoc.Doc(`
				Summarise a Monday to Friday week: meeting counts and hours per day,
				busiest and lightest days, focus gaps of two hours or more, and
				external, recurring and back-to-back meetings.
			`),
			tools.ReadOnly, p.weeklySummary),
	}
}

func eventSummaries(res map[string]any) []map[string]any {
	out := []map[string]any{}
	for _, e := range tools.List(res["value"]) {
		ev, _ := e.(map[string]any)
		out = append(out, graph.EventSummary(ev, false))
	}
	return out
}

func (p *Provider) listEvents(ctx context.Context, in listEventsArgs) string {
	tz := p.timezone(in.Timezone)
	return p.run(ctx, "listing calendar events", func(s *graph.Session) (string, error) {
		start := dateTimeParam(in.StartDate, false)
		if start == "" {
			start = p.now().UTC().Format(dateLayout) + "T00:00:00"
		}
		end := dateTimeParam(in.EndDate, true)
		if end == "" {
			from, ok := parseLocal(start)
			if !ok {
				return "", fmt.Errorf("invalid start_date %q", in.StartDate)
			}
			end = from.AddDate(0, 0, tools.Default(in.Days, 7)).Format(dateLayout) + "T23:59:59"
		}

		endpoint := "/calendarView"
		if in.CalendarID != "" {
			endpoint = "/calendars/" + url.PathEscape(in.CalendarID) + "/calendarView"
		}
		q := url.Values{
			"startDateTime": {start},
			"endDateTime":   {end},
			"$top":          {strconv.Itoa(tools.Clamp(tools.Default(in.Top, 50), 1, 100))},
			"$orderby":      {"start/dateTime"},
			"$select":       {eventFields},
		}
		res, err := s.API.Object(inZone(ctx, tz), http.MethodGet, s.User(in.UserID, endpoint), q, nil)
		if err != nil {
			return "", err
		}

		list := eventSummaries(res)
		var allDay, cancelled int
		for _, e := range list {
			if e["is_all_day"] == true {
				allDay++
			}
			if e["is_cancelled"] == true {
				cancelled++
			}
		}
		summary := fmt.Sprintf("📅 %d events from %s to %s", len(list), start[:min(10, len(start))], end[:min(10, len(end))])
		if allDay > 0 {
			summary += fmt.Sprintf(" (%d all-day)", allDay)
		}
		if cancelled > 0 {
			summary += fmt.Sprintf(" (%d cancelled)", cancelled)
		}
		return summary + "\n\n" + tools.JSON(list), nil
	})
}

func (p *Provider) getEvent(ctx context.Context, in eventArgs) string {
	return p.run(ctx, "getting event", func(s *graph.Session) (string, error) {
		q := url.Values{"$select": {eventFields + ",body,webLink,sensitivity"}}
		ev, err := s.API.Object(inZone(ctx, p.cfg.Timezone), http.MethodGet, s.User(in.UserID, eventPath(in.EventID)), q, nil)
		if err != nil {
			return "", err
		}
		out := graph.EventSummary(ev, true)
		out["sensitivity"] = tools.Str(ev["sensitivity"])
		if out["sensitivity"] == "" {
			out["sensitivity"] = "normal"
		}
		return tools.JSON(out), nil
	})
}

// odataString quotes s as an OData string literal.
func odataString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (p *Provider) searchEvents(ctx context.Context, in searchEventsArgs) string {
	return p.run(ctx, "searching events", func(s *graph.Session) (string, error) {
		filters := []string{"contains(subject, " + odataString(in.Query) + ")"}
		if in.StartDate != "" {
			filters = append(filters, "start/dateTime ge "+odataString(dateTimeParam(in.StartDate, false)))
		}
		if in.EndDate != "" {
			filters = append(filters, "end/dateTime le "+odataString(dateTimeParam(in.EndDate, true)))
		}
		q := url.Values{
			"$filter":  {strings.Join(filters, " and ")},
			"$top":     {strconv.Itoa(tools.Clamp(tools.Default(in.Top, 25), 1, 50))},
			"$orderby": {"start/dateTime"},
			"$select":  {eventFields},
		}
		res, err := s.API.Object(inZone(ctx, p.cfg.Timezone), http.MethodGet, s.User(in.UserID, "/events"), q, nil)
		if err != nil {
			return "", err
		}
		list := eventSummaries(res)
		return fmt.Sprintf("🔍 %d events matching '%s'\n\n%s", len(list), in.Query, tools.JSON(list)), nil
	})
}

// validate checks enumerated fields shared by create and update.
func validate(showAs, importance string) string {
	if showAs != "" && !slices.Contains(showAsValues, showAs) {
		return fmt.Sprintf("❌ Invalid show_as '%s'. Use: %s", showAs, strings.Join(showAsValues, ", "))
	}
	if importance != "" && !slices.Contains(importances, importance) {
		return fmt.Sprintf("❌ Invalid importance '%s'. Use: %s", importance, strings.Join(importances, ", "))
	}
	return ""
}

func attendees(csv string) []map[string]any {
	out := []map[string]any{}
	for _, addr := range tools.SplitCSV(csv) {
		kind := "required"
		if strings.HasPrefix(strings.ToLower(addr), "optional:") {
			kind = "optional"
			addr = strings.TrimSpace(addr[len("optional:"):])
		}
		out = append(out, map[string]any{"emailAddress": map[string]any{"address": addr}, "type": kind})
	}
	return out
}

func setReminder(body map[string]any, minutes int) {
	if minutes > 0 {
		body["isReminderOn"] = true
		body["reminderMinutesBeforeStart"] = minutes
		return
	}
	body["isReminderOn"] = false
}

func (p *Provider) createEvent(ctx context.Context, in createEventArgs) string {
	showAs, importance := in.ShowAs, in.Importance
	if showAs == "" {
		showAs = "busy"
	}
	if importance == "" {
		importance = "normal"
	}
	if msg := validate(showAs, importance); msg != "" {
		return msg
	}
	tz := p.timezone(in.Timezone)
	return p.run(ctx, "creating event", func(s *graph.Session) (string, error) {
		body := map[string]any{
			"subject":    in.Subject,
			"start":      map[string]any{"dateTime": dateTimeParam(in.Start, false), "timeZone": tz},
			"end":        map[string]any{"dateTime": dateTimeParam(in.End, false), "timeZone": tz},
			"isAllDay":   in.IsAllDay,
			"showAs":     showAs,
			"importance": importance,
		}
		if in.Body != "" {
			body["body"] = map[string]any{"contentType": "Text", "content": in.Body}
		}
		if in.Location != "" {
			body["location"] = map[string]any{"displayName": in.Location}
		}
		if att := attendees(in.Attendees); len(att) > 0 {
			body["attendees"] = att
		}
		if in.IsOnlineMeeting {
			body["isOnlineMeeting"] = true
			body["onlineMeetingProvider"] = "teamsForBusiness"
		}
		reminder := 15
		if in.ReminderMinutes != nil {
			reminder = *in.ReminderMinutes
		}
		setReminder(body, reminder)
		if cats := tools.SplitCSV(in.Categories); len(cats) > 0 {
			body["categories"] = cats
		}
		if in.IsPrivate {
			body["sensitivity"] = "private"
		}

		endpoint := "/events"
		if in.CalendarID != "" {
			endpoint = "/calendars/" + url.PathEscape(in.CalendarID) + "/events"
		}
		ev, err := s.API.Object(inZone(ctx, tz), http.MethodPost, s.User(in.UserID, endpoint), nil, body)
		if err != nil {
			return "", err
		}
		return "✅ Event created: " + in.Subject + "\n\n" + tools.JSON(graph.EventSummary(ev, false)), nil
	})
}

func (p *Provider) updateEvent(ctx context.Context, in updateEventArgs) string {
	if msg := validate(in.ShowAs, in.Importance); msg != "" {
		return msg
	}
	tz := p.timezone(in.Timezone)

	updates := map[string]any{}
	if in.Subject != "" {
		updates["subject"] = in.Subject
	}
	if in.Start != "" {
		updates["start"] = map[string]any{"dateTime": dateTimeParam(in.Start, false), "timeZone": tz}
	}
	if in.End != "" {
		updates["end"] = map[string]any{"dateTime": dateTimeParam(in.End, false), "timeZone": tz}
	}
	if in.Body != "" {
		updates["body"] = map[string]any{"contentType": "Text", "content": in.Body}
	}
	if in.Location != "" {
		updates["location"] = map[string]any{"displayName": in.Location}
	}
	if in.ShowAs != "" {
		updates["showAs"] = in.ShowAs
	}
	if in.Importance != "" {
		updates["importance"] = in.Importance
	}
	if in.IsOnlineMeeting != nil {
		updates["isOnlineMeeting"] = *in.IsOnlineMeeting
		if *in.IsOnlineMeeting {
			updates["onlineMeetingProvider"] = "teamsForBusiness"
		}
	}
	if in.ReminderMinutes != nil && *in.ReminderMinutes >= 0 {
		setReminder(updates, *in.ReminderMinutes)
	}
	if cats := tools.SplitCSV(in.Categories); len(cats) > 0 {
		updates["categories"] = cats
	}
	if len(updates) == 0 {
		return "⚠️ No changes specified. Provide at least one field to update."
	}

	return p.run(ctx, "updating event", func(s *graph.Session) (string, error) {
		ev, err := s.API.Object(inZone(ctx, tz), http.MethodPatch, s.User(in.UserID, eventPath(in.EventID)), nil, updates)
		if err != nil {
			return "", err
		}
		return "✅ Event updated\n\n" + tools.JSON(graph.EventSummary(ev, false)), nil
	})
}

func (p *Provider) deleteEvent(ctx context.Context, in eventArgs) string {
	return p.run(ctx, "deleting event", func(s *graph.Session) (string, error) {
		if _, err := s.API.Do(ctx, http.MethodDelete, s.User(in.UserID, eventPath(in.EventID)), nil, nil); err != nil {
			return "", err
		}
		return "✅ Event deleted", nil
	})
}

func (p *Provider) respondEvent(ctx context.Context, in respondArgs) string {
	r, ok := responses[strings.ToLower(in.Response)]
	if !ok {
		return fmt.Sprintf("❌ Invalid response '%s'. Use: accept, decline, tentative", in.Response)
	}
	return p.run(ctx, "responding to event", func(s *graph.Session) (string, error) {
		body := map[string]any{"sendResponse": in.SendResponse == nil || *in.SendResponse}
		if in.Comment != "" {
			body["comment"] = in.Comment
		}
		if _, err := s.API.Do(ctx, http.MethodPost, s.User(in.UserID, eventPath(in.EventID)+"/"+r.endpoint), nil, body); err != nil {
			return "", err
		}
		out := "✅ Event " + r.past
		if in.Comment != "" {
			out += " with comment: " + in.Comment
		}
		return out, nil
	})
}

type busySlot struct {
	Subject  string `json:"subject"`
	Status   string `json:"status"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location"`
}

type schedule struct {
	Email            string     `json:"email"`
	AvailabilityView string     `json:"availability_view"`
	BusySlots        []busySlot `json:"busy_slots"`
	FreeSlots        []freeSlot `json:"free_slots"`
	Error            string     `json:"error,omitempty"`
}

func (p *Provider) findFreeTime(ctx context.Context, in freeTimeArgs) string {
	start, end := dateTimeParam(in.StartDate, false), dateTimeParam(in.EndDate, true)
	from, ok1 := parseLocal(start)
	to, ok2 := parseLocal(end)
	if !ok1 || !ok2 || !from.Before(to) {
		return "❌ start_date and end_date must be dates (YYYY-MM-DD) or ISO datetimes with start before end."
	}
	minutes := max(tools.Default(in.MinDurationMinutes, 30), 5)
	tz := p.timezone(in.Timezone)

	return p.run(ctx, "finding free time", func(s *graph.Session) (string, error) {
		people := tools.SplitCSV(in.Schedules)
		if len(people) == 0 {
			owner := in.UserID
			if owner == "" {
				owner = s.UserID
			}
			people = []string{owner}
		}
		body := map[string]any{
			"schedules":                people,
			"startTime":                map[string]any{"dateTime": start, "timeZone": tz},
			"endTime":                  map[string]any{"dateTime": end, "timeZone": tz},
			"availabilityViewInterval": max(minutes, 15),
		}
		res, err := s.API.Object(inZone(ctx, tz), http.MethodPost, s.User(in.UserID, "/calendar/getSchedule"), nil, body)
		if err != nil {
			return "", err
		}

		out := struct {
			Period struct {
				Start    string `json:"start"`
				End      string `json:"end"`
				Timezone string `json:"timezone"`
			} `json:"period"`
			MinDurationMinutes int        `json:"min_duration_minutes"`
			Schedules          []schedule `json:"schedules"`
			CommonFreeSlots    []freeSlot `json:"common_free_slots"`
		}{MinDurationMinutes: minutes, Schedules: []schedule{}}
		out.Period.Start, out.Period.End, out.Period.Timezone = start, end, tz

		var everyone []interval
		for _, sc := range tools.List(res["value"]) {
			entry := schedule{
				Email:            tools.Str(tools.Get(sc, "scheduleId")),
				AvailabilityView: tools.Str(tools.Get(sc, "availabilityView")),
				BusySlots:        []busySlot{},
				Error:            tools.Str(tools.Get(sc, "error", "message")),
			}
			var busy []interval
			for _, item := range tools.List(tools.Get(sc, "scheduleItems")) {
				slot := busySlot{
					Subject:  tools.Str(tools.Get(item, "subject")),
					Status:   tools.Str(tools.Get(item, "status")),
					Start:    tools.Str(tools.Get(item, "start", "dateTime")),
					End:      tools.Str(tools.Get(item, "end", "dateTime")),
					Location: tools.Str(tools.Get(item, "location")),
				}
				entry.BusySlots = append(entry.BusySlots, slot)
				bs, ok1 := parseLocal(slot.Start)
				be, ok2 := parseLocal(slot.End)
				if ok1 && ok2 && slot.Status != "free" {
					busy = append(busy, interval{bs, be})
				}
			}
			entry.FreeSlots = p.cfg.freeSlots(from, to, busy, time.Duration(minutes)*time.Minute)
			everyone = append(everyone, busy...)
			out.Schedules = append(out.Schedules, entry)
		}
		out.CommonFreeSlots = p.cfg.freeSlots(from, to, everyone, time.Duration(minutes)*time.Minute)
		return tools.JSON(out), nil
	})
}

func (p *Provider) listCalendars(ctx context.Context, in mailboxArgs) string {
	return p.run(ctx, "listing calendars", func(s *graph.Session) (string, error) {
		q := url.Values{
			"$top":    {"50"},
			"$select": {"id,name,color,isDefaultCalendar,canEdit,canShare,owner"},
		}
		res, err := s.API.Object(ctx, http.MethodGet, s.User(in.UserID, "/calendars"), q, nil)
		if err != nil {
			return "", err
		}
		out := []map[string]any{}
		for _, c := range tools.List(res["value"]) {
			out = append(out, map[string]any{
				"id":          tools.Str(tools.Get(c, "id")),
				"name":        tools.Str(tools.Get(c, "name")),
				"color":       tools.Str(tools.Get(c, "color")),
				"is_default":  tools.Get(c, "isDefaultCalendar") == true,
				"can_edit":    tools.Get(c, "canEdit") == true,
				"can_share":   tools.Get(c, "canShare") == true,
				"owner_name":  tools.Str(tools.Get(c, "owner", "name")),
				"owner_email": tools.Str(tools.Get(c, "owner", "address")),
			})
		}
		return tools.JSON(out), nil
	})
}

func (p *Provider) weeklySummary(ctx context.Context, in weeklyArgs) string {
	start := weekStart(p.now().UTC())
	if in.StartDate != "" {
		t, ok := parseLocal(in.StartDate)
		if !ok {
			return fmt.Sprintf("❌ Invalid start_date '%s'. Use YYYY-MM-DD.", in.StartDate)
		}
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	tz := p.timezone(in.Timezone)

	return p.run(ctx, "generating weekly summary", func(s *graph.Session) (string, error) {
		days := make([]dayStats, len(weekdays))
		g, gctx := errgroup.WithContext(inZone(ctx, tz))
		for i, name := range weekdays {
			date := start.AddDate(0, 0, i)
			g.Go(func() error {
				q := url.Values{
					"startDateTime": {date.Format(dateLayout) + "T00:00:00"},
					"endDateTime":   {date.Format(dateLayout) + "T23:59:59"},
					"$top":          {"100"},
					"$orderby":      {"start/dateTime"},
					"$select":       {eventFields},
				}
				res, err := s.API.Object(gctx, http.MethodGet, s.User(in.UserID, "/calendarView"), q, nil)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				days[i] = p.cfg.analyzeDay(name, date, tools.List(res["value"]))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
		return tools.JSON(summarizeWeek(start, tz, days)), nil
	})
}
