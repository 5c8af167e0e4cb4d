package front

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
)

type (
	noArgs struct{}

	conversationsArgs struct {
		InboxID string `json:"inbox_id,omitempty" jsonschema:"Only conversations in this inbox"`
		Status  string `json:"status,omitempty" jsonschema:"open (default), archived, assigned, unassigned, deleted or all"`
		Limit   int    `json:"limit,omitempty" jsonschema:"Maximum conversations (default 20, max 100)"`
	}

	conversationArgs struct {
		ConversationID string `json:"conversation_id" jsonschema:"Front conversation ID (cnv_...)"`
	}

	searchArgs struct {
		Query string `json:"query" jsonschema:"Front search query, e.g. 'invoice is:open'"`
		Limit int    `json:"limit,omitempty" jsonschema:"Maximum conversations (default 20, max 100)"`
	}

	messagesArgs struct {
		ConversationID string `json:"conversation_id" jsonschema:"Front conversation ID (cnv_...)"`
		Limit          int    `json:"limit,omitempty" jsonschema:"Maximum messages (default 20, max 100)"`
	}

	addTagArgs struct {
		ConversationID string `json:"conversation_id" jsonschema:"Front conversation ID (cnv_...)"`
		TagName        string `json:"tag_name" jsonschema:"Tag name, matched case-insensitively"`
	}
)

// Statuses Front accepts in q[statuses][].
var statuses = map[string]bool{"open": true, "archived": true, "assigned": true, "unassigned": true, "deleted": true}

type page[T any] struct {
	Results []T `json:"_results"`
}

type person struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (p *person) display() string {
	if p == nil {
		return ""
	}
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Email
	}
	return name
}

type tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type conversation struct {
	ID        string  `json:"id"`
	Subject   string  `json:"subject"`
	Status    string  `json:"status"`
	CreatedAt float64 `json:"created_at"`
	Assignee  *person `json:"assignee"`
	Recipient *struct {
		Handle string `json:"handle"`
	} `json:"recipient"`
	Tags        []tag `json:"tags"`
	LastMessage *struct {
		Blurb string `json:"blurb"`
	} `json:"last_message"`
}

type conversationSummary struct {
	ID        string   `json:"id"`
	Subject   string   `json:"subject"`
	Status    string   `json:"status"`
	From      string   `json:"from,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
	Preview   string   `json:"preview,omitempty"`
}

func (c conversation) summary() conversationSummary {
	s := conversationSummary{
		ID:        c.ID,
		Subject:   c.Subject,
		Status:    c.Status,
		Assignee:  c.Assignee.display(),
		CreatedAt: stamp(c.CreatedAt),
	}
	if c.Recipient != nil {
		s.From = c.Recipient.Handle
	}
	for _, t := range c.Tags {
		s.Tags = append(s.Tags, t.Name)
	}
	if c.LastMessage != nil {
		s.Preview = c.LastMessage.Blurb
	}
	return s
}

type message struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	IsInbound  bool    `json:"is_inbound"`
	CreatedAt  float64 `json:"created_at"`
	Subject    string  `json:"subject"`
	Text       string  `json:"text"`
	Blurb      string  `json:"blurb"`
	Author     *person `json:"author"`
	Recipients []struct {
		Handle string `json:"handle"`
		Role   string `json:"role"`
	} `json:"recipients"`
}

// stamp formats Front's epoch seconds.
func stamp(sec float64) string {
	if sec == 0 {
		return ""
	}
	return time.UnixMilli(int64(sec * 1000)).UTC().Format(time.RFC3339)
}

// Tools returns the front_* tools.
func (p *Provider) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("front_list_inboxes", "List Front Inboxes",
			"List all Front inboxes.",
			tools.ReadOnly, p.listInboxes),
		tools.New("front_list_conversations", "List Front Conversations",
			"List conversations, optionally in one inbox, filtered by status.",
			tools.ReadOnly, p.listConversations),
		tools.New("front_get_conversation", "Get Front Conversation",
			"Get one conversation by ID.",
			tools.ReadOnly, p.getConversation),
		tools.New("front_search_conversations", "Search Front Conversations",
			"Search conversations using Front search syntax.",
			tools.ReadOnly, p.searchConversations),
		tools.New("front_list_messages", "List Front Messages",
			"List the messages in a conversation, newest first.",
			tools.ReadOnly, p.listMessages),
		tools.New("front_list_tags", "List Front Tags",
			"List all Front tags.",
			tools.ReadOnly, p.listTags),
		tools.New("front_add_tag", "Tag Front Conversation",
			"Add a tag, by name, to a conversation.",
			tools.Mutating, p.addTag),
		tools.New("front_list_teammates", "List Front Teammates",
			"List teammates who can be assigned conversations.",
			tools.ReadOnly, p.listTeammates),
	}
}

func limitQuery(limit int) url.Values {
	return url.Values{"limit": {strconv.Itoa(tools.Clamp(tools.Default(limit, 20), 1, 100))}}
}

func conversationPath(id string) string {
	return "/conversations/" + url.PathEscape(id)
}

func summaries(list []conversation) []conversationSummary {
	out := make([]conversationSummary, 0, len(list))
	for _, c := range list {
		out = append(out, c.summary())
	}
	return out
}

func (p *Provider) listInboxes(ctx context.Context, _ noArgs) string {
	return p.run(ctx, "fetching Front inboxes", func(api *httpapi.Client) (any, error) {
		var res page[map[string]any]
		if err := api.DoInto(ctx, http.MethodGet, "/inboxes", nil, nil, &res); err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(res.Results))
		for _, inbox := range res.Results {
			out = append(out, tools.Pick(inbox, "id", "name", "is_private", "is_public"))
		}
		return out, nil
	})
}

func (p *Provider) listConversations(ctx context.Context, in conversationsArgs) string {
	status := strings.ToLower(in.Status)
	if status == "" {
		status = "open"
	}
	if status != "all" && !statuses[status] {
		return tools.Errorf("Invalid status '%s'. Use open, archived, assigned, unassigned, deleted or all.", in.Status)
	}
	q := limitQuery(in.Limit)
	if status != "all" {
		q.Set("q[statuses][]", status)
	}
	path := "/conversations"
	if in.InboxID != "" {
		path = "/inboxes/" + url.PathEscape(in.InboxID) + "/conversations"
	}
	return p.run(ctx, "fetching Front conversations", func(api *httpapi.Client) (any, error) {
		var res page[conversation]
		if err := api.DoInto(ctx, http.MethodGet, path, q, nil, &res); err != nil {
			return nil, err
		}
		return summaries(res.Results), nil
	})
}

func (p *Provider) getConversation(ctx context.Context, in conversationArgs) string {
	if in.ConversationID == "" {
		return tools.Errorf("conversation_id is required.")
	}
	return p.run(ctx, "fetching Front conversation", func(api *httpapi.Client) (any, error) {
		var c conversation
		if err := api.DoInto(ctx, http.MethodGet, conversationPath(in.ConversationID), nil, nil, &c); err != nil {
			return nil, err
		}
		return c.summary(), nil
	})
}

func (p *Provider) searchConversations(ctx context.Context, in searchArgs) string {
	if strings.TrimSpace(in.Query) == "" {
		return tools.Errorf("query is required.")
	}
	path := "/conversations/search/" + url.PathEscape(in.Query)
	return p.run(ctx, "searching Front conversations", func(api *httpapi.Client) (any, error) {
		var res page[conversation]
		if err := api.DoInto(ctx, http.MethodGet, path, limitQuery(in.Limit), nil, &res); err != nil {
			return nil, err
		}
		return summaries(res.Results), nil
	})
}

type messageSummary struct {
	ID        string   `json:"id"`
	Inbound   bool     `json:"inbound"`
	Author    string   `json:"author,omitempty"`
	To        []string `json:"to,omitempty"`
	Subject   string   `json:"subject,omitempty"`
	CreatedAt string   `json:"created_at"`
	Text      string   `json:"text"`
}

func (p *Provider) listMessages(ctx context.Context, in messagesArgs) string {
	if in.ConversationID == "" {
		return tools.Errorf("conversation_id is required.")
	}
	return p.run(ctx, "fetching Front messages", func(api *httpapi.Client) (any, error) {
		var res page[message]
		if err := api.DoInto(ctx, http.MethodGet, conversationPath(in.ConversationID)+"/messages", limitQuery(in.Limit), nil, &res); err != nil {
			return nil, err
		}
		out := make([]messageSummary, 0, len(res.Results))
		for _, m := range res.Results {
			s := messageSummary{
				ID:        m.ID,
				Inbound:   m.IsInbound,
				Author:    m.Author.display(),
				Subject:   m.Subject,
				CreatedAt: stamp(m.CreatedAt),
				Text:      tools.Truncate(strings.TrimSpace(m.Text), 2000),
			}
			if s.Text == "" {
				s.Text = m.Blurb
			}
			for _, r := range m.Recipients {
				if r.Role == "to" {
					s.To = append(s.To, r.Handle)
				}
			}
			if s.Author == "" {
				for _, r := range m.Recipients {
					if r.Role == "from" {
						s.Author = r.Handle
					}
				}
			}
			out = append(out, s)
		}
		return out, nil
	})
}

func (p *Provider) listTags(ctx context.Context, _ noArgs) string {
	return p.run(ctx, "fetching Front tags", func(api *httpapi.Client) (any, error) {
		return fetchTags(ctx, api)
	})
}

func fetchTags(ctx context.Context, api *httpapi.Client) ([]tag, error) {
	var res page[tag]
	if err := api.DoInto(ctx, http.MethodGet, "/tags", url.Values{"limit": {"100"}}, nil, &res); err != nil {
		return nil, err
	}
	if res.Results == nil {
		res.Results = []tag{}
	}
	return res.Results, nil
}

func (p *Provider) addTag(ctx context.Context, in addTagArgs) string {
	if in.ConversationID == "" || in.TagName == "" {
		return tools.Errorf("conversation_id and tag_name are required.")
	}
	return p.run(ctx, "adding Front tag", func(api *httpapi.Client) (any, error) {
		tags, err := fetchTags(ctx, api)
		if err != nil {
			return nil, err
		}
		var id string
		for _, t := range tags {
			if strings.EqualFold(t.Name, in.TagName) {
				id = t.ID
				break
			}
		}
		if id == "" {
			return tools.Errorf("Tag '%s' not found.", in.TagName), nil
		}
		body := map[string]any{"tag_ids": []string{id}}
		if _, err := api.Do(ctx, http.MethodPost, conversationPath(in.ConversationID)+"/tags", nil, body); err != nil {
			return nil, err
		}
		return map[string]any{"status": "success", "conversation_id": in.ConversationID, "tag_id": id, "tag": in.TagName}, nil
	})
}

func (p *Provider) listTeammates(ctx context.Context, _ noArgs) string {
	return p.run(ctx, "fetching Front teammates", func(api *httpapi.Client) (any, error) {
		var res page[map[string]any]
		if err := api.DoInto(ctx, http.MethodGet, "/teammates", nil, nil, &res); err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(res.Results))
		for _, tm := range res.Results {
			out = append(out, tools.Pick(tm, "id", "email", "username", "first_name", "last_name", "is_available"))
		}
		return out, nil
	})
}
