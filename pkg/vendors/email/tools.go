package email

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/vendors/graph"
)

const (
	maxTop          = 50
	maxTriageHours  = 168
	defaultTopInbox = 25
)

var (
	importances  = []string{"low", "normal", "high"}
	flagStatuses = []string{"flagged", "complete", "notFlagged"}
	batchActions = []string{"mark_read", "mark_unread", "flag", "unflag", "move", "categorize", "archive"}
)

type (
	mailboxArgs struct {
		UserID string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	listInboxArgs struct {
		Top        int    `json:"top,omitempty" jsonschema:"Number of emails, max 50 (default 25)"`
		Skip       int    `json:"skip,omitempty" jsonschema:"Number of emails to skip for pagination"`
		UnreadOnly bool   `json:"unread_only,omitempty" jsonschema:"Only return unread emails"`
		Importance string `json:"importance,omitempty" jsonschema:"Filter by importance: high, normal or low"`
		Folder     string `json:"folder,omitempty" jsonschema:"inbox (default), sentitems, drafts, deleteditems, archive or a folder ID"`
		UserID     string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	searchArgs struct {
		Query  string `json:"query" jsonschema:"KQL search, e.g. from:john@example.com or subject:invoice"`
		Top    int    `json:"top,omitempty" jsonschema:"Max results, max 50 (default 20)"`
		UserID string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	messageArgs struct {
		MessageID string `json:"message_id" jsonschema:"Message ID from email_list_inbox or email_search"`
		UserID    string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	threadArgs struct {
		ConversationID string `json:"conversation_id" jsonschema:"Conversation ID from email_list_inbox"`
		Top            int    `json:"top,omitempty" jsonschema:"Max messages, max 50 (default 20)"`
		UserID         string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	triageArgs struct {
		HoursBack int    `json:"hours_back,omitempty" jsonschema:"Look-back period in hours, max 168 (default 24)"`
		UserID    string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	markReadArgs struct {
		MessageID string `json:"message_id" jsonschema:"Message ID"`
		IsRead    *bool  `json:"is_read,omitempty" jsonschema:"true to mark read (default), false for unread"`
		UserID    string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	flagArgs struct {
		MessageID  string `json:"message_id" jsonschema:"Message ID"`
		FlagStatus string `json:"flag_status,omitempty" jsonschema:"flagged (default), complete or notFlagged"`
		UserID     string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	categorizeArgs struct {
		MessageID  string `json:"message_id" jsonschema:"Message ID"`
		Categories string `json:"categories,omitempty" jsonschema:"Comma-separated Outlook categories; empty clears them"`
		UserID     string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	moveArgs struct {
		MessageID         string `json:"message_id" jsonschema:"Message ID"`
		DestinationFolder string `json:"destination_folder" jsonschema:"inbox, drafts, sentitems, deleteditems, archive, junkemail or a folder ID"`
		UserID            string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	batchArgs struct {
		MessageIDs string `json:"message_ids" jsonschema:"Comma-separated message IDs"`
		Action     string `json:"action" jsonschema:"mark_read, mark_unread, flag, unflag, move, categorize or archive"`
		Value      string `json:"value,omitempty" jsonschema:"Destination folder for move, categories for categorize"`
		UserID     string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	sendArgs struct {
		To         string `json:"to" jsonschema:"Comma-separated recipient addresses"`
		Subject    string `json:"subject" jsonschema:"Subject line"`
		Body       string `json:"body" jsonschema:"Plain-text body"`
		CC         string `json:"cc,omitempty" jsonschema:"Comma-separated CC addresses"`
		Importance string `json:"importance,omitempty" jsonschema:"low, normal (default) or high"`
		UserID     string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	replyArgs struct {
		MessageID string `json:"message_id" jsonschema:"Message ID to reply to"`
		Body      string `json:"body" jsonschema:"Reply text"`
		ReplyAll  bool   `json:"reply_all,omitempty" jsonschema:"Reply to all recipients"`
		UserID    string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	forwardArgs struct {
		MessageID string `json:"message_id" jsonschema:"Message ID to forward"`
		To        string `json:"to" jsonschema:"Comma-separated recipient addresses"`
		Comment   string `json:"comment,omitempty" jsonschema:"Text placed above the forwarded message"`
		UserID    string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}

	createFolderArgs struct {
		DisplayName    string `json:"display_name" jsonschema:"Folder name"`
		ParentFolderID string `json:"parent_folder_id,omitempty" jsonschema:"Parent folder ID; empty creates at the mailbox root"`
		UserID         string `json:"user_id,omitempty" jsonschema:"Override the default mailbox, e.g. another user's address"`
	}
)

// Tools returns the email_* tools.
func (p *Provider) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("email_list_inbox", "List Inbox Emails",
			"List emails from a mailbox folder, newest first, with optional unread and importance filters.",
			tools.ReadOnly, p.listInbox),
		tools.New("email_search", "Search Emails",
			heredoc.Doc(`
				Search emails across all folders using Microsoft Search.

				Supports KQL: from:john@example.com, subject:invoice,
				hasAttachment:true, received:2024-01-01..2024-01-31 or free text.
			`),
			tools.ReadOnly, p.search),
		tools.New("email_get_message", "Get Email Message",
			"Get the full content of an email including body text and all recipients.",
			tools.ReadOnly, p.getMessage),
		tools.New("email_get_thread", "Get Email Thread",
			"Get all emails in a conversation, oldest first.",
			tools.ReadOnly, p.getThread),
		tools.New("email_triage_inbox", "Triage Inbox",
			heredoc.Doc(`
				Get unread inbox emails from the last N hours with triage context.

				Each email carries its sender domain and age in hours. The summary
				counts high-importance, flagged and attachment-bearing mail and
				groups senders by domain.
			`),
			tools.ReadOnly, p.triageInbox),
		tools.New("email_mark_read", "Mark Email Read/Unread",
			"Mark an email as read or unread.",
			tools.Mutating, p.markRead),
		tools.New("email_flag", "Flag Email",
			"Flag, complete or unflag an email for follow-up.",
			tools.Mutating, p.flag),
		tools.New("email_categorize", "Categorize Email",
			"Set Outlook categories on an email. An empty list clears them.",
			tools.Mutating, p.categorize),
		tools.New("email_move", "Move Email",
			"Move an email to another folder.",
			tools.Mutating, p.move),
		tools.New("email_batch_action", "Batch Email Action",
			"Apply one action to several emails and report successes and failures.",
			tools.Mutating, p.batchAction),
		tools.New("email_send", "Send Email",
			"Send a new plain-text email. A copy is saved to Sent Items.",
			tools.Mutating, p.send),
		tools.New("email_reply", "Reply to Email",
			"Reply, or reply all, to an email.",
			tools.Mutating, p.reply),
		tools.New("email_forward", "Forward Email",
			"Forward an email with an optional comment.",
			tools.Mutating, p.forward),
		tools.New("email_list_folders", "List Mail Folders",
			"List mail folders with IDs and unread counts.",
			tools.ReadOnly, p.listFolders),
		tools.New("email_create_folder", "Create Mail Folder",
			"Create a mail folder at the root or under a parent folder.",
			tools.Mutating, p.createFolder),
		tools.New("email_list_attachments", "List Email Attachments",
			"List attachment names, types and sizes on an email. Content is not downloaded.",
			tools.ReadOnly, p.listAttachments),
	}
}

func summaries(res map[string]any, includeBody bool) []map[string]any {
	out := []map[string]any{}
	for _, m := range tools.List(res["value"]) {
		msg, _ := m.(map[string]any)
		out = append(out, graph.EmailSummary(msg, includeBody))
	}
	return out
}

func (p *Provider) listInbox(ctx context.Context, in listInboxArgs) string {
	if in.Importance != "" && !slices.Contains(importances, in.Importance) {
		return fmt.Sprintf("❌ Invalid importance '%s'. Use: %s", in.Importance, strings.Join(importances, ", "))
	}
	folder := in.Folder
	if folder == "" {
		folder = "inbox"
	}
	return p.run(ctx, "listing emails", func(s *graph.Session) (string, error) {
		q := url.Values{
			"$top":     {strconv.Itoa(tools.Clamp(tools.Default(in.Top, defaultTopInbox), 1, maxTop))},
			"$skip":    {strconv.Itoa(max(in.Skip, 0))},
			"$orderby": {"receivedDateTime desc"},
			"$select":  {messageFields},
		}
		var filters []string
		if in.UnreadOnly {
			filters = append(filters, "isRead eq false")
		}
		if in.Importance != "" {
			filters = append(filters, "importance eq '"+in.Importance+"'")
		}
		if len(filters) > 0 {
			q.Set("$filter", strings.Join(filters, " and "))
		}

		res, err := s.API.Object(ctx, http.MethodGet, s.User(in.UserID, "/mailFolders/"+url.PathEscape(folder)+"/messages"), q, nil)
		if err != nil {
			return "", err
		}
		list := summaries(res, false)
		hint := ""
		if in.Skip > 0 {
			hint = fmt.Sprintf(" (showing %d-%d)", in.Skip+1, in.Skip+len(list))
		}
		return fmt.Sprintf("📧 %d emails from %s%s\n\n%s", len(list), folder, hint, tools.JSON(list)), nil
	})
}

func (p *Provider) search(ctx context.Context, in searchArgs) string {
	return p.run(ctx, "searching emails", func(s *graph.Session) (string, error) {
		q := url.Values{
			"$search": {`"` + in.Query + `"`},
			"$top":    {strconv.Itoa(tools.Clamp(tools.Default(in.Top, 20), 1, maxTop))},
			"$select": {messageFields},
		}
		res, err := s.API.Object(ctx, http.MethodGet, s.User(in.UserID, "/messages"), q, nil)
		if err != nil {
			return "", err
		}
		list := summaries(res, false)
		return fmt.Sprintf("🔍 %d results for '%s'\n\n%s", len(list), in.Query, tools.JSON(list)), nil
	})
}

func (p *Provider) getMessage(ctx context.Context, in messageArgs) string {
	return p.run(ctx, "getting email", func(s *graph.Session) (string, error) {
		q := url.Values{"$select": {messageFields + ",bccRecipients,replyTo,sentDateTime,body,webLink"}}
		msg, err := s.API.Object(ctx, http.MethodGet, s.User(in.UserID, messagePath(in.MessageID)), q, nil)
		if err != nil {
			return "", err
		}
		out := graph.EmailSummary(msg, true)
		out["web_link"] = tools.Str(msg["webLink"])
		out["sent"] = tools.Str(msg["sentDateTime"])
		out["reply_to"] = graph.Recipients(msg["replyTo"])
		if bcc := tools.List(msg["bccRecipients"]); len(bcc) > 0 {
			out["bcc"] = graph.Recipients(bcc)
		}
		return tools.JSON(out), nil
	})
}

func (p *Provider) getThread(ctx context.Context, in threadArgs) string {
	return p.run(ctx, "getting thread", func(s *graph.Session) (string, error) {
		q := url.Values{
			"$filter":  {"conversationId eq '" + strings.ReplaceAll(in.ConversationID, "'", "''") + "'"},
			"$top":     {strconv.Itoa(tools.Clamp(tools.Default(in.Top, 20), 1, maxTop))},
			"$orderby": {"receivedDateTime asc"},
			"$select":  {"id,subject,from,toRecipients,receivedDateTime,isRead,importance,body,bodyPreview"},
		}
		res, err := s.API.Object(ctx, http.MethodGet, s.User(in.UserID, "/messages"), q, nil)
		if err != nil {
			return "", err
		}
		list := summaries(res, true)
		return fmt.Sprintf("📧 Thread: %d messages\n\n%s", len(list), tools.JSON(list)), nil
	})
}

type triage struct {
	TotalUnread     int              `json:"total_unread"`
	PeriodHours     int              `json:"period_hours"`
	HighImportance  int              `json:"high_importance_count"`
	Flagged         int              `json:"flagged_count"`
	WithAttachments int              `json:"with_attachments"`
	SenderDomains   map[string]int   `json:"sender_domains"`
	Emails          []map[string]any `json:"emails"`
}

func (p *Provider) triageInbox(ctx context.Context, in triageArgs) string {
	hours := tools.Clamp(tools.Default(in.HoursBack, 24), 1, maxTriageHours)
	return p.run(ctx, "triaging inbox", func(s *graph.Session) (string, error) {
		now := p.now().UTC()
		since := now.Add(-time.Duration(hours) * time.Hour).Format("2006-01-02T15:04:05Z")
		q := url.Values{
			"$filter":  {"isRead eq false and receivedDateTime ge " + since},
			"$top":     {strconv.Itoa(maxTop)},
			"$orderby": {"receivedDateTime desc"},
			"$select":  {messageFields},
		}
		res, err := s.API.Object(ctx, http.MethodGet, s.User(in.UserID, "/mailFolders/inbox/messages"), q, nil)
		if err != nil {
			return "", err
		}

		out := triage{PeriodHours: hours, SenderDomains: map[string]int{}, Emails: []map[string]any{}}
		for _, m := range tools.List(res["value"]) {
			msg, _ := m.(map[string]any)
			item := graph.EmailSummary(msg, false)

			domain := ""
			if addr := graph.Address(msg["from"]); strings.Contains(addr, "@") {
				domain = addr[strings.LastIndex(addr, "@")+1:]
			}
			item["sender_domain"] = domain
			item["age_hours"] = nil
			if received, err := time.Parse(time.RFC3339, tools.Str(msg["receivedDateTime"])); err == nil {
				item["age_hours"] = math.Round(now.Sub(received).Hours()*10) / 10
			}

			if domain == "" {
				domain = "unknown"
			}
			out.SenderDomains[domain]++
			if item["importance"] == "high" {
				out.HighImportance++
			}
			if item["flag"] == "flagged" {
				out.Flagged++
			}
			if item["has_attachments"] == true {
				out.WithAttachments++
			}
			out.Emails = append(out.Emails, item)
		}
		out.TotalUnread = len(out.Emails)
		return tools.JSON(out), nil
	})
}

func (p *Provider) patch(ctx context.Context, s *graph.Session, userID, id string, body map[string]any) error {
	_, err := s.API.Do(ctx, http.MethodPatch, s.User(userID, messagePath(id)), nil, body)
	return err
}

func (p *Provider) moveTo(ctx context.Context, s *graph.Session, userID, id, folder string) error {
	_, err := s.API.Do(ctx, http.MethodPost, s.User(userID, messagePath(id)+"/move"), nil, map[string]any{"destinationId": folder})
	return err
}

func (p *Provider) markRead(ctx context.Context, in markReadArgs) string {
	read := in.IsRead == nil || *in.IsRead
	return p.run(ctx, "", func(s *graph.Session) (string, error) {
		if err := p.patch(ctx, s, in.UserID, in.MessageID, map[string]any{"isRead": read}); err != nil {
			return "", err
		}
		if read {
			return "✅ Email marked as read", nil
		}
		return "✅ Email marked as unread", nil
	})
}

func (p *Provider) flag(ctx context.Context, in flagArgs) string {
	status := in.FlagStatus
	if status == "" {
		status = "flagged"
	}
	if !slices.Contains(flagStatuses, status) {
		return fmt.Sprintf("❌ Invalid flag_status '%s'. Use: %s", status, strings.Join(flagStatuses, ", "))
	}
	return p.run(ctx, "", func(s *graph.Session) (string, error) {
		if err := p.patch(ctx, s, in.UserID, in.MessageID, map[string]any{"flag": map[string]any{"flagStatus": status}}); err != nil {
			return "", err
		}
		return "✅ Email flag set to: " + status, nil
	})
}

func (p *Provider) categorize(ctx context.Context, in categorizeArgs) string {
	cats := tools.SplitCSV(in.Categories)
	if cats == nil {
		cats = []string{}
	}
	return p.run(ctx, "", func(s *graph.Session) (string, error) {
		if err := p.patch(ctx, s, in.UserID, in.MessageID, map[string]any{"categories": cats}); err != nil {
			return "", err
		}
		if len(cats) == 0 {
			return "✅ Categories set: (cleared)", nil
		}
		return "✅ Categories set: " + strings.Join(cats, ", "), nil
	})
}

func (p *Provider) move(ctx context.Context, in moveArgs) string {
	return p.run(ctx, "moving email", func(s *graph.Session) (string, error) {
		if err := p.moveTo(ctx, s, in.UserID, in.MessageID, in.DestinationFolder); err != nil {
			return "", err
		}
		return "✅ Email moved to " + in.DestinationFolder, nil
	})
}

func (p *Provider) batchAction(ctx context.Context, in batchArgs) string {
	if !slices.Contains(batchActions, in.Action) {
		return fmt.Sprintf("❌ Unknown action '%s'. Use: %s", in.Action, strings.Join(batchActions, ", "))
	}
	if in.Action == "move" && in.Value == "" {
		return "❌ The move action needs a destination folder in value."
	}
	ids := tools.SplitCSV(in.MessageIDs)
	return p.run(ctx, "", func(s *graph.Session) (string, error) {
		var failures []string
		for _, id := range ids {
			var err error
			switch in.Action {
			case "mark_read":
				err = p.patch(ctx, s, in.UserID, id, map[string]any{"isRead": true})
			case "mark_unread":
				err = p.patch(ctx, s, in.UserID, id, map[string]any{"isRead": false})
			case "flag":
				err = p.patch(ctx, s, in.UserID, id, map[string]any{"flag": map[string]any{"flagStatus": "flagged"}})
			case "unflag":
				err = p.patch(ctx, s, in.UserID, id, map[string]any{"flag": map[string]any{"flagStatus": "notFlagged"}})
			case "categorize":
				cats := tools.SplitCSV(in.Value)
				if cats == nil {
					cats = []string{}
				}
				err = p.patch(ctx, s, in.UserID, id, map[string]any{"categories": cats})
			case "move":
				err = p.moveTo(ctx, s, in.UserID, id, in.Value)
			case "archive":
				err = p.moveTo(ctx, s, in.UserID, id, "archive")
			}
			if err != nil {
				failures = append(failures, shortID(id)+": "+clip(err.Error(), 80))
			}
		}

		out := fmt.Sprintf("✅ %d/%d emails processed (%s)", len(ids)-len(failures), len(ids), in.Action)
		if len(failures) > 0 {
			out += "\n⚠️ Errors:\n" + strings.Join(failures, "\n")
		}
		return out, nil
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

func clip(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}

func (p *Provider) send(ctx context.Context, in sendArgs) string {
	importance := in.Importance
	if importance == "" {
		importance = "normal"
	}
	if !slices.Contains(importances, importance) {
		return fmt.Sprintf("❌ Invalid importance '%s'. Use: %s", importance, strings.Join(importances, ", "))
	}
	to := addresses(in.To)
	if len(to) == 0 {
		return "❌ At least one recipient is required."
	}
	return p.run(ctx, "sending email", func(s *graph.Session) (string, error) {
		msg := map[string]any{
			"subject":      in.Subject,
			"body":         map[string]any{"contentType": "Text", "content": in.Body},
			"toRecipients": to,
			"importance":   importance,
		}
		if cc := addresses(in.CC); len(cc) > 0 {
			msg["ccRecipients"] = cc
		}
		body := map[string]any{"message": msg, "saveToSentItems": true}
		if _, err := s.API.Do(ctx, http.MethodPost, s.User(in.UserID, "/sendMail"), nil, body); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Email sent to %s | Subject: %s", in.To, in.Subject), nil
	})
}

func (p *Provider) reply(ctx context.Context, in replyArgs) string {
	endpoint, action := "/reply", "Reply"
	if in.ReplyAll {
		endpoint, action = "/replyAll", "Reply all"
	}
	return p.run(ctx, "replying", func(s *graph.Session) (string, error) {
		path := s.User(in.UserID, messagePath(in.MessageID)+endpoint)
		if _, err := s.API.Do(ctx, http.MethodPost, path, nil, map[string]any{"comment": in.Body}); err != nil {
			return "", err
		}
		return "✅ " + action + " sent", nil
	})
}

func (p *Provider) forward(ctx context.Context, in forwardArgs) string {
	to := addresses(in.To)
	if len(to) == 0 {
		return "❌ At least one recipient is required."
	}
	return p.run(ctx, "forwarding", func(s *graph.Session) (string, error) {
		body := map[string]any{"comment": in.Comment, "toRecipients": to}
		if _, err := s.API.Do(ctx, http.MethodPost, s.User(in.UserID, messagePath(in.MessageID)+"/forward"), nil, body); err != nil {
			return "", err
		}
		return "✅ Email forwarded to " + in.To, nil
	})
}

func (p *Provider) listFolders(ctx context.Context, in mailboxArgs) string {
	return p.run(ctx, "listing folders", func(s *graph.Session) (string, error) {
		q := url.Values{
			"$top":    {"100"},
			"$select": {"id,displayName,totalItemCount,unreadItemCount,childFolderCount"},
		}
		res, err := s.API.Object(ctx, http.MethodGet, s.User(in.UserID, "/mailFolders"), q, nil)
		if err != nil {
			return "", err
		}
		out := []map[string]any{}
		for _, f := range tools.List(res["value"]) {
			out = append(out, map[string]any{
				"id":             tools.Str(tools.Get(f, "id")),
				"name":           tools.Str(tools.Get(f, "displayName")),
				"total":          tools.Int(tools.Get(f, "totalItemCount")),
				"unread":         tools.Int(tools.Get(f, "unreadItemCount")),
				"has_subfolders": tools.Int(tools.Get(f, "childFolderCount")) > 0,
			})
		}
		return tools.JSON(out), nil
	})
}

func (p *Provider) createFolder(ctx context.Context, in createFolderArgs) string {
	return p.run(ctx, "creating folder", func(s *graph.Session) (string, error) {
		endpoint := "/mailFolders"
		if in.ParentFolderID != "" {
			endpoint = "/mailFolders/" + url.PathEscape(in.ParentFolderID) + "/childFolders"
		}
		res, err := s.API.Object(ctx, http.MethodPost, s.User(in.UserID, endpoint), nil, map[string]any{"displayName": in.DisplayName})
		if err != nil {
			return "", err
		}
		id := tools.Str(res["id"])
		if id == "" {
			id = "unknown"
		}
		return fmt.Sprintf("✅ Folder created: %s (ID: %s)", in.DisplayName, id), nil
	})
}

func (p *Provider) listAttachments(ctx context.Context, in messageArgs) string {
	return p.run(ctx, "listing attachments", func(s *graph.Session) (string, error) {
		q := url.Values{"$select": {"id,name,contentType,size,isInline"}}
		res, err := s.API.Object(ctx, http.MethodGet, s.User(in.UserID, messagePath(in.MessageID)+"/attachments"), q, nil)
		if err != nil {
			return "", err
		}
		out := []map[string]any{}
		for _, a := range tools.List(res["value"]) {
			inline, _ := tools.Get(a, "isInline").(bool)
			out = append(out, map[string]any{
				"id":        tools.Str(tools.Get(a, "id")),
				"name":      tools.Str(tools.Get(a, "name")),
				"type":      tools.Str(tools.Get(a, "contentType")),
				"size_kb":   math.Round(tools.Float(tools.Get(a, "size"))/1024*10) / 10,
				"is_inline": inline,
			})
		}
		return tools.JSON(out), nil
	})
}
