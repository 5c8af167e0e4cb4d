package m365

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/crowdit/crowdmcp/pkg/credentials"
	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
)

const (
	messageFields = "id,subject,from,toRecipients,receivedDateTime,isRead,hasAttachments,importance,flag,bodyPreview"
	eventFields   = "id,subject,start,end,location,organizer,isAllDay,isCancelled,importance,showAs,recurrence,onlineMeeting,bodyPreview,attendees"
	driveFields   = "id,name,size,lastModifiedDateTime,folder,file,webUrl,parentReference"
)

var driveOrders = []string{"name", "lastModifiedDateTime", "size"}

type (
	noArgs struct{}

	authCompleteArgs struct {
		AuthCode string `json:"auth_code" jsonschema:"Authorization code from the callback URL"`
	}

	mailFoldersArgs struct {
		ParentFolderID string `json:"parent_folder_id,omitempty" jsonschema:"Parent folder ID to list subfolders. Omit for top-level folders."`
	}

	searchEmailsArgs struct {
		Query           string `json:"query,omitempty" jsonschema:"Search query over subject, body and sender, e.g. 'invoice from:john'"`
		Folder          string `json:"folder,omitempty" jsonschema:"Mail folder name or ID: Inbox (default), SentItems, Drafts, DeletedItems, Archive, JunkEmail"`
		Top             int    `json:"top,omitempty" jsonschema:"Number of results, 1-50 (default 20)"`
		FilterUnread    *bool  `json:"filter_unread,omitempty" jsonschema:"true for unread only, false for read only"`
		FromAddress     string `json:"from_address,omitempty" jsonschema:"Filter by sender email address"`
		SubjectContains string `json:"subject_contains,omitempty" jsonschema:"Filter by text in the subject"`
		HasAttachments  *bool  `json:"has_attachments,omitempty" jsonschema:"Filter on whether emails have attachments"`
		ReceivedAfter   string `json:"received_after,omitempty" jsonschema:"Only emails received on or after this date (YYYY-MM-DD)"`
		ReceivedBefore  string `json:"received_before,omitempty" jsonschema:"Only emails received before this date (YYYY-MM-DD)"`
		Skip            int    `json:"skip,omitempty" jsonschema:"Number of results to skip, for pagination"`
	}

	eventsArgs struct {
		StartDate  string `json:"start_date,omitempty" jsonschema:"Start date (YYYY-MM-DD). Defaults to today."`
		EndDate    string `json:"end_date,omitempty" jsonschema:"End date (YYYY-MM-DD). Defaults to 7 days after start."`
		CalendarID string `json:"calendar_id,omitempty" jsonschema:"Calendar ID. Omit for the default calendar."`
		Top        int    `json:"top,omitempty" jsonschema:"Max events, 1-50 (default 25)"`
		Search     string `json:"search,omitempty" jsonschema:"Text the event subject must contain"`
	}

	driveArgs struct {
		FolderPath string `json:"folder_path,omitempty" jsonschema:"Folder path such as /Documents or /Projects/2024. Defaults to the root."`
		Top        int    `json:"top,omitempty" jsonschema:"Max items, 1-200 (default 25)"`
		OrderBy    string `json:"order_by,omitempty" jsonschema:"Sort by name (default), lastModifiedDateTime or size"`
	}

	chatsArgs struct {
		Top int `json:"top,omitempty" jsonschema:"Number of chats, 1-50 (default 20)"`
	}
)

// Tools returns the m365_* tools.
func (p *Provider) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("m365_auth_start", "Start Microsoft 365 Authorization",
			"Get the authorization link that connects Microsoft 365 (Email, Calendar, OneDrive, Teams). Use this when M365 is not connected.",
			tools.Annotations{ReadOnly: true}, p.authStart),
		tools.New("m365_auth_complete", "Complete Microsoft 365 Authorization",
			"Complete Microsoft 365 authorization with the code from the callback URL. Only needed when the automatic redirect did not finish.",
			tools.Annotations{}, p.authComplete),
		tools.New("m365_whoami", "Microsoft 365 Profile",
			"Get the profile of the connected Microsoft 365 user.",
			tools.ReadOnly, p.whoami),
		tools.New("m365_list_mail_folders", "List Outlook Mail Folders",
			"List Outlook mail folders (Inbox, Sent, Drafts and so on) with item and unread counts.",
			tools.ReadOnly, p.listMailFolders),
		tools.New("m365_search_emails", "Search Outlook Emails",
			heredoc.Doc(`
				Search and list emails in an Outlook folder.

				Combine a free-text query with filters on read state, sender, subject,
				attachments and received date. Use skip to page through results.
			`),
			tools.ReadOnly, p.searchEmails),
		tools.New("m365_list_calendar_events", "List Calendar Events",
			"List calendar events in a date range, optionally from a specific calendar.",
			tools.ReadOnly, p.listEvents),
		tools.New("m365_list_onedrive_files", "List OneDrive Files",
			"List files and folders in a OneDrive folder.",
			tools.ReadOnly, p.listDrive),
		tools.New("m365_list_teams", "List Teams",
			"List the Microsoft Teams the user is a member of.",
			tools.ReadOnly, p.listTeams),
		tools.New("m365_list_chats", "List Teams Chats",
			"List recent Teams chats, both one-to-one and group.",
			tools.ReadOnly, p.listChats),
	}
}

func (p *Provider) authStart(ctx context.Context, _ noArgs) string {
	cfg := p.flowConfig(ctx)
	switch {
	case cfg.ClientID == "":
		return "Error: M365_CLIENT_ID (or SHAREPOINT_CLIENT_ID) not configured."
	case p.deps.Lookup(ctx, tenantIDNames...) == "":
		return "Error: M365_TENANT_ID (or SHAREPOINT_TENANT_ID) not configured."
	case p.cfg.PublicURL == "":
		return "Error: Public URL not configured. Set CLOUD_RUN_URL or server.public_url."
	case p.cfg.States == nil:
		return "Error: OAuth state signing is unavailable."
	}

	state, err := p.cfg.States.Issue(Integration)
	if err != nil {
		return tools.Error(err)
	}
	// The consent URL needs no client secret or session.
	link := credentials.NewRefreshToken(cfg, "").AuthCodeURL(state, p.redirectURI())

	return fmt.Sprintf(heredoc.Doc(`
		## Microsoft 365 Authorization Required

		**Click this link to authorize:**
		%s

		After authorizing, you'll be redirected back automatically and M365 will be connected.

		**Redirect URI for Azure AD App:** `+"`%s`"+`

		**Required API permissions (Microsoft Graph - Delegated):**
		- Mail.ReadWrite, Mail.Send
		- Calendars.ReadWrite
		- Files.ReadWrite.All, Sites.ReadWrite.All
		- Team.ReadBasic.All, Channel.ReadBasic.All, ChannelMessage.Send
		- Chat.ReadWrite, ChannelMessage.Read.All
		- Contacts.ReadWrite, People.Read
		- OnlineMeetings.ReadWrite
		- User.Read`), link, p.redirectURI())
}

func (p *Provider) authComplete(ctx context.Context, in authCompleteArgs) string {
	if in.AuthCode == "" {
		return tools.Errorf("auth_code is required.")
	}
	if _, ok := p.client(ctx); !ok {
		return "Error: M365 credentials not configured."
	}
	user, saved, err := p.complete(ctx, in.AuthCode)
	if err != nil {
		return tools.Error(err)
	}
	if user != "" {
		user = "\n**User:** " + user
	}
	if saved {
		return fmt.Sprintf("Connected to Microsoft 365!%s\n\nRefresh token saved to the secret store. Email, Calendar, OneDrive, and Teams are now accessible.", user)
	}
	return fmt.Sprintf("Connected to Microsoft 365 for this session!%s\n\nThe refresh token could not be saved. Store it as %s in the secret store to persist the connection.", user, RefreshTokenSecret)
}

func (p *Provider) whoami(ctx context.Context, _ noArgs) string {
	s, ok := p.client(ctx)
	if !ok || s.flow.Current() == "" {
		return "Error: Microsoft 365 not configured. Run m365_auth_start to connect."
	}
	return p.run(ctx, func(api *httpapi.Client) (string, error) {
		me, err := api.Object(ctx, http.MethodGet, "/me", nil, nil)
		if err != nil {
			return "", err
		}
		return strings.Join([]string{
			"## Microsoft 365 Profile",
			"**Name:** " + orNA(me["displayName"], "N/A"),
			"**Email:** " + mailOf(me, "N/A"),
			"**Job Title:** " + orNA(me["jobTitle"], "N/A"),
			"**Office:** " + orNA(me["officeLocation"], "N/A"),
			"**Mobile:** " + orNA(me["mobilePhone"], "N/A"),
			"**ID:** `" + orNA(me["id"], "N/A") + "`",
		}, "\n"), nil
	})
}

func (p *Provider) listMailFolders(ctx context.Context, in mailFoldersArgs) string {
	return p.run(ctx, func(api *httpapi.Client) (string, error) {
		path, q := "/me/mailFolders", url.Values{"$top": {"50"}}
		if in.ParentFolderID != "" {
			path, q = "/me/mailFolders/"+url.PathEscape(in.ParentFolderID)+"/childFolders", nil
		}
		res, err := api.Object(ctx, http.MethodGet, path, q, nil)
		if err != nil {
			return "", err
		}
		folders := tools.List(res["value"])
		if len(folders) == 0 {
			return "No mail folders found.", nil
		}
		lines := []string{"## Mail Folders\n"}
		for _, f := range folders {
			unread := ""
			if n := tools.Int(tools.Get(f, "unreadItemCount")); n > 0 {
				unread = fmt.Sprintf(" (%d unread)", n)
			}
			lines = append(lines, fmt.Sprintf("- **%s** — %d items%s\n  ID: `%s`",
				orNA(tools.Get(f, "displayName"), "Unknown"), tools.Int(tools.Get(f, "totalItemCount")), unread, tools.Str(tools.Get(f, "id"))))
		}
		return strings.Join(lines, "\n"), nil
	})
}

func (p *Provider) searchEmails(ctx context.Context, in searchEmailsArgs) string {
	folder := in.Folder
	if folder == "" {
		folder = "Inbox"
	}
	top := tools.Clamp(tools.Default(in.Top, 20), 1, 50)
	skip := max(in.Skip, 0)

	var filters []string
	if in.FilterUnread != nil {
		filters = append(filters, "isRead eq "+strconv.FormatBool(!*in.FilterUnread))
	}
	if in.FromAddress != "" {
		filters = append(filters, fmt.Sprintf("from/emailAddress/address eq '%s'", odataString(in.FromAddress)))
	}
	if in.HasAttachments != nil {
		filters = append(filters, "hasAttachments eq "+strconv.FormatBool(*in.HasAttachments))
	}
	if in.ReceivedAfter != "" {
		filters = append(filters, fmt.Sprintf("receivedDateTime ge %sT00:00:00Z", in.ReceivedAfter))
	}
	if in.ReceivedBefore != "" {
		filters = append(filters, fmt.Sprintf("receivedDateTime lt %sT00:00:00Z", in.ReceivedBefore))
	}
	if in.SubjectContains != "" {
		filters = append(filters, fmt.Sprintf("contains(subject, '%s')", odataString(in.SubjectContains)))
	}

	q := url.Values{
		"$top":    {strconv.Itoa(top)},
		"$select": {messageFields},
	}
	if skip > 0 {
		q.Set("$skip", strconv.Itoa(skip))
	}
	if len(filters) > 0 {
		q.Set("$filter", strings.Join(filters, " and "))
	}
	// Graph rejects $orderby combined with $search.
	if in.Query != "" {
		q.Set("$search", `"`+in.Query+`"`)
	} else {
		q.Set("$orderby", "receivedDateTime desc")
	}

	return p.run(ctx, func(api *httpapi.Client) (string, error) {
		res, err := api.Object(ctx, http.MethodGet, "/me/mailFolders/"+url.PathEscape(folder)+"/messages", q, nil)
		if err != nil {
			return "", err
		}
		messages := tools.List(res["value"])
		if len(messages) == 0 {
			return fmt.Sprintf("No emails found in %s matching your criteria.", folder), nil
		}

		lines := []string{fmt.Sprintf("## Emails in %s\n", folder)}
		for _, m := range messages {
			lines = append(lines, formatMessage(m))
		}
		out := strings.Join(lines, "\n")
		if len(messages) == top {
			out += fmt.Sprintf("\nShowing %d results (skip=%d). Use `skip` parameter for more.", len(messages), skip)
		}
		return out, nil
	})
}

func formatMessage(m any) string {
	var b strings.Builder
	b.WriteString("**")
	if read, _ := tools.Get(m, "isRead").(bool); !read {
		b.WriteString("[UNREAD] ")
	}
	b.WriteString(orNA(tools.Get(m, "subject"), "(no subject)"))
	b.WriteString("**")
	if has, _ := tools.Get(m, "hasAttachments").(bool); has {
		b.WriteString(" [+attachments]")
	}
	if tools.Str(tools.Get(m, "flag", "flagStatus")) == "flagged" {
		b.WriteString(" [FLAGGED]")
	}
	if tools.Str(tools.Get(m, "importance")) == "high" {
		b.WriteString(" [HIGH]")
	}
	fmt.Fprintf(&b, "\n  From: %s <%s>\n  Date: %s\n  ID: `%s...`",
		tools.Str(tools.Get(m, "from", "emailAddress", "name")),
		tools.Str(tools.Get(m, "from", "emailAddress", "address")),
		stamp(tools.Get(m, "receivedDateTime")),
		prefix(tools.Str(tools.Get(m, "id")), 50))
	if preview := prefix(tools.Str(tools.Get(m, "bodyPreview")), 120); preview != "" {
		fmt.Fprintf(&b, "\n  > %s...", preview)
	}
	b.WriteString("\n")
	return b.String()
}

func (p *Provider) listEvents(ctx context.Context, in eventsArgs) string {
	start := in.StartDate
	if start == "" {
		start = p.now().Format(time.DateOnly)
	}
	from, err := time.Parse(time.DateOnly, prefix(start, 10))
	if err != nil {
		return tools.Errorf("Invalid start_date '%s'. Use YYYY-MM-DD.", start)
	}
	end := in.EndDate
	if end == "" {
		end = from.AddDate(0, 0, 7).Format(time.DateOnly)
	}

	path := "/me/calendarView"
	if in.CalendarID != "" {
		path = "/me/calendars/" + url.PathEscape(in.CalendarID) + "/calendarView"
	}
	q := url.Values{
		"startDateTime": {start + "T00:00:00Z"},
		"endDateTime":   {end + "T23:59:59Z"},
		"$top":          {strconv.Itoa(tools.Clamp(tools.Default(in.Top, 25), 1, 50))},
		"$orderby":      {"start/dateTime"},
		"$select":       {eventFields},
	}
	if in.Search != "" {
		q.Set("$filter", fmt.Sprintf("contains(subject, '%s')", odataString(in.Search)))
	}

	return p.run(ctx, func(api *httpapi.Client) (string, error) {
		res, err := api.Object(ctx, http.MethodGet, path, q, nil)
		if err != nil {
			return "", err
		}
		events := tools.List(res["value"])
		if len(events) == 0 {
			return fmt.Sprintf("No events found between %s and %s.", start, end), nil
		}
		lines := []string{fmt.Sprintf("## Calendar Events (%s to %s)\n", start, end)}
		for _, ev := range events {
			lines = append(lines, formatEvent(ev))
		}
		return strings.Join(lines, "\n"), nil
	})
}

func formatEvent(ev any) string {
	var b strings.Builder
	b.WriteString("**" + orNA(tools.Get(ev, "subject"), "(no subject)") + "**")
	if c, _ := tools.Get(ev, "isCancelled").(bool); c {
		b.WriteString(" [CANCELLED]")
	}
	if a, _ := tools.Get(ev, "isAllDay").(bool); a {
		b.WriteString(" [All Day]")
	}
	fmt.Fprintf(&b, "\n  %s — %s (%s)\n  Status: %s | Organizer: %s",
		stamp(tools.Get(ev, "start", "dateTime")),
		stamp(tools.Get(ev, "end", "dateTime")),
		tools.Str(tools.Get(ev, "start", "timeZone")),
		orNA(tools.Get(ev, "showAs"), "busy"),
		strings.TrimSpace(tools.Str(tools.Get(ev, "organizer", "emailAddress", "name"))))
	if n := len(tools.List(tools.Get(ev, "attendees"))); n > 0 {
		fmt.Fprintf(&b, " | %d attendees", n)
	}
	if loc := tools.Str(tools.Get(ev, "location", "displayName")); loc != "" {
		b.WriteString("\n  Location: " + loc)
	}
	if join := tools.Str(tools.Get(ev, "onlineMeeting", "joinUrl")); join != "" {
		b.WriteString("\n  Teams: " + join)
	}
	fmt.Fprintf(&b, "\n  ID: `%s...`\n", prefix(tools.Str(tools.Get(ev, "id")), 50))
	return b.String()
}

func (p *Provider) listDrive(ctx context.Context, in driveArgs) string {
	folder := in.FolderPath
	if folder == "" {
		folder = "/"
	}
	order := in.OrderBy
	if order == "" {
		order = "name"
	}
	if !slices.Contains(driveOrders, order) {
		return tools.Errorf("Invalid order_by '%s'. Use: %s", order, strings.Join(driveOrders, ", "))
	}

	path := "/me/drive/root/children"
	if clean := strings.Trim(folder, "/"); clean != "" {
		path = "/me/drive/root:/" + escapePath(clean) + ":/children"
	}
	q := url.Values{
		"$top":     {strconv.Itoa(tools.Clamp(tools.Default(in.Top, 25), 1, 200))},
		"$orderby": {order},
		"$select":  {driveFields},
	}

	return p.run(ctx, func(api *httpapi.Client) (string, error) {
		res, err := api.Object(ctx, http.MethodGet, path, q, nil)
		var apiErr *httpapi.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return tools.Errorf("Folder '%s' not found.", folder), nil
		}
		if err != nil {
			return "", err
		}
		items := tools.List(res["value"])
		if len(items) == 0 {
			return fmt.Sprintf("No items found in %s.", folder), nil
		}
		lines := []string{fmt.Sprintf("## OneDrive: %s\n", folder)}
		for _, item := range items {
			icon, size := "[File]", humanSize(tools.Int(tools.Get(item, "size")))
			if f, ok := tools.Get(item, "folder").(map[string]any); ok {
				icon, size = "[Folder]", fmt.Sprintf("%d items", tools.Int(f["childCount"]))
			}
			lines = append(lines, fmt.Sprintf("- %s **%s** — %s | Modified: %s\n  ID: `%s`",
				icon, orNA(tools.Get(item, "name"), "Unknown"), size,
				stamp(tools.Get(item, "lastModifiedDateTime")), tools.Str(tools.Get(item, "id"))))
		}
		return strings.Join(lines, "\n"), nil
	})
}

func (p *Provider) listTeams(ctx context.Context, _ noArgs) string {
	return p.run(ctx, func(api *httpapi.Client) (string, error) {
		res, err := api.Object(ctx, http.MethodGet, "/me/joinedTeams", nil, nil)
		if err != nil {
			return "", err
		}
		teams := tools.List(res["value"])
		if len(teams) == 0 {
			return "No Teams found.", nil
		}
		lines := []string{"## My Teams\n"}
		for _, t := range teams {
			desc := ""
			if d := prefix(tools.Str(tools.Get(t, "description")), 100); d != "" {
				desc = "\n  " + d
			}
			lines = append(lines, fmt.Sprintf("- **%s**%s\n  ID: `%s`",
				orNA(tools.Get(t, "displayName"), "Unknown"), desc, tools.Str(tools.Get(t, "id"))))
		}
		return strings.Join(lines, "\n"), nil
	})
}

func (p *Provider) listChats(ctx context.Context, in chatsArgs) string {
	q := url.Values{
		"$top":     {strconv.Itoa(tools.Clamp(tools.Default(in.Top, 20), 1, 50))},
		"$orderby": {"lastUpdatedDateTime desc"},
		"$expand":  {"members"},
	}
	return p.run(ctx, func(api *httpapi.Client) (string, error) {
		res, err := api.Object(ctx, http.MethodGet, "/me/chats", q, nil)
		if err != nil {
			return "", err
		}
		chats := tools.List(res["value"])
		if len(chats) == 0 {
			return "No chats found.", nil
		}
		lines := []string{"## Teams Chats\n"}
		for _, c := range chats {
			members := tools.List(tools.Get(c, "members"))
			var names []string
			for _, m := range members[:min(len(members), 5)] {
				names = append(names, orNA(tools.Get(m, "displayName"), "Unknown"))
			}
			who := strings.Join(names, ", ")
			if len(members) > 5 {
				who += fmt.Sprintf(" +%d more", len(members)-5)
			}
			title := tools.Str(tools.Get(c, "topic"))
			if title == "" {
				title = who
			}
			if title == "" {
				title = "Chat"
			}
			lines = append(lines, fmt.Sprintf("- **%s** (%s)\n  Last updated: %s\n  Members: %s\n  ID: `%s`",
				title, orNA(tools.Get(c, "chatType"), "unknown"), stamp(tools.Get(c, "lastUpdatedDateTime")),
				who, tools.Str(tools.Get(c, "id"))))
		}
		return strings.Join(lines, "\n"), nil
	})
}

// stamp renders an ISO timestamp as "2006-01-02 15:04".
func stamp(v any) string {
	return strings.Replace(prefix(tools.Str(v), 16), "T", " ", 1)
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func humanSize(n int) string {
	switch {
	case n > 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n > 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

// odataString escapes a value for a single-quoted OData literal.
func odataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
