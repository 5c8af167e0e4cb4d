package graph

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/crowdit/crowdmcp/pkg/tools"
)

var (
	strict     = bluemonday.StrictPolicy()
	blockTags  = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/tr|/h[1-6])\s*/?>`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Text strips markup from an HTML body, keeping line breaks at block
// boundaries.
func Text(body string) string {
	s := blockTags.ReplaceAllString(body, "$0\n")
	s = html.UnescapeString(strict.Sanitize(s))
	s = strings.ReplaceAll(s, "\u00a0", " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// Body returns a message or event body as text, converting HTML.
func Body(v any) (content, contentType string) {
	content = tools.Str(tools.Get(v, "content"))
	contentType = strings.ToLower(tools.Str(tools.Get(v, "contentType")))
	if contentType == "" {
		contentType = "text"
	}
	if contentType == "html" {
		content = Text(content)
	}
	return content, contentType
}

// Recipient renders a Graph recipient as "Name <address>".
func Recipient(v any) string {
	name := tools.Str(tools.Get(v, "emailAddress", "name"))
	addr := tools.Str(tools.Get(v, "emailAddress", "address"))
	switch {
	case name != "" && addr != "":
		return name + " <" + addr + ">"
	case addr != "":
		return addr
	case name != "":
		return name
	}
	return "unknown"
}

// Recipients renders a recipient list. It is never nil.
func Recipients(v any) []string {
	out := []string{}
	for _, r := range tools.List(v) {
		out = append(out, Recipient(r))
	}
	return out
}

// Address returns the bare address of a recipient.
func Address(v any) string {
	return strings.ToLower(tools.Str(tools.Get(v, "emailAddress", "address")))
}

func orDefault(v any, def string) string {
	if s := tools.Str(v); s != "" {
		return s
	}
	return def
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}

func listOrEmpty(v any) []any {
	if l := tools.List(v); l != nil {
		return l
	}
	return []any{}
}

// EmailSummary flattens a Graph message.
func EmailSummary(msg map[string]any, includeBody bool) map[string]any {
	subject := tools.Str(msg["subject"])
	lower := strings.ToLower(subject)
	out := map[string]any{
		"id":              tools.Str(msg["id"]),
		"subject":         orDefault(msg["subject"], "(no subject)"),
		"from":            Recipient(msg["from"]),
		"to":              Recipients(msg["toRecipients"]),
		"received":        tools.Str(msg["receivedDateTime"]),
		"is_read":         boolOf(msg["isRead"]),
		"importance":      orDefault(msg["importance"], "normal"),
		"flag":            orDefault(tools.Get(msg, "flag", "flagStatus"), "notFlagged"),
		"has_attachments": boolOf(msg["hasAttachments"]),
		"categories":      listOrEmpty(msg["categories"]),
		"preview":         clip(tools.Str(msg["bodyPreview"]), 200),
		"conversation_id": tools.Str(msg["conversationId"]),
		"is_reply":        strings.HasPrefix(lower, "re:"),
		"is_forward":      strings.HasPrefix(lower, "fw:") || strings.HasPrefix(lower, "fwd:"),
	}
	if includeBody {
		out["body"], out["body_type"] = Body(msg["body"])
	}
	if cc := tools.List(msg["ccRecipients"]); len(cc) > 0 {
		out["cc"] = Recipients(cc)
	}
	return out
}

// EventSummary flattens a Graph event.
func EventSummary(ev map[string]any, includeBody bool) map[string]any {
	organizer := tools.Get(ev, "organizer", "emailAddress")
	orgName := tools.Str(tools.Get(organizer, "name"))
	if orgName == "" {
		orgName = orDefault(tools.Get(organizer, "address"), "unknown")
	}

	attendees := []map[string]any{}
	for _, a := range tools.List(ev["attendees"]) {
		attendees = append(attendees, map[string]any{
			"name":     tools.Str(tools.Get(a, "emailAddress", "name")),
			"email":    tools.Str(tools.Get(a, "emailAddress", "address")),
			"response": orDefault(tools.Get(a, "status", "response"), "none"),
			"type":     orDefault(tools.Get(a, "type"), "required"),
		})
	}

	recurrence := "single"
	if ev["recurrence"] != nil {
		recurrence = "recurring"
	}
	out := map[string]any{
		"id":                 tools.Str(ev["id"]),
		"subject":            orDefault(ev["subject"], "(no subject)"),
		"start":              tools.Str(tools.Get(ev, "start", "dateTime")),
		"start_timezone":     tools.Str(tools.Get(ev, "start", "timeZone")),
		"end":                tools.Str(tools.Get(ev, "end", "dateTime")),
		"end_timezone":       tools.Str(tools.Get(ev, "end", "timeZone")),
		"is_all_day":         boolOf(ev["isAllDay"]),
		"location":           tools.Str(tools.Get(ev, "location", "displayName")),
		"organizer":          orgName,
		"organizer_email":    strings.ToLower(tools.Str(tools.Get(organizer, "address"))),
		"attendee_count":     len(attendees),
		"show_as":            orDefault(ev["showAs"], "busy"),
		"importance":         orDefault(ev["importance"], "normal"),
		"is_cancelled":       boolOf(ev["isCancelled"]),
		"is_online_meeting":  boolOf(ev["isOnlineMeeting"]),
		"online_meeting_url": tools.Str(tools.Get(ev, "onlineMeeting", "joinUrl")),
		"response_status":    orDefault(tools.Get(ev, "responseStatus", "response"), "none"),
		"categories":         listOrEmpty(ev["categories"]),
		"recurrence":         recurrence,
		"series_master_id":   tools.Str(ev["seriesMasterId"]),
	}
	if includeBody {
		out["body"], out["body_type"] = Body(ev["body"])
		out["attendees"] = attendees
		out["web_link"] = tools.Str(ev["webLink"])
	}
	return out
}

// clip cuts s to n runes without a marker.
func clip(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
