package halopsa

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
)

type (
	noArgs struct{}

	clientsArgs struct {
		Limit  int    `json:"limit,omitempty" jsonschema:"Page size (default 20)"`
		Search string `json:"search,omitempty" jsonschema:"Search text for client names"`
	}

	clientArgs struct {
		ClientID int `json:"client_id" jsonschema:"HaloPSA client ID"`
	}

	ticketsArgs struct {
		ClientID int    `json:"client_id,omitempty" jsonschema:"Only tickets for this client ID"`
		Status   string `json:"status,omitempty" jsonschema:"Ticket status filter"`
		Limit    int    `json:"limit,omitempty" jsonschema:"Page size (default 20)"`
	}

	createTicketArgs struct {
		ClientID   int    `json:"client_id" jsonschema:"Client ID the ticket belongs to"`
		Summary    string `json:"summary" jsonschema:"Ticket summary"`
		Details    string `json:"details" jsonschema:"Ticket details"`
		PriorityID int    `json:"priority_id,omitempty" jsonschema:"Priority ID (default 3)"`
	}

	actionArgs struct {
		TicketID  int    `json:"ticket_id" jsonschema:"Ticket ID"`
		Note      string `json:"note" jsonschema:"Action note"`
		TimeTaken int    `json:"time_taken,omitempty" jsonschema:"Time taken in minutes"`
	}

	invoicesArgs struct {
		ClientID int `json:"client_id,omitempty" jsonschema:"Only invoices for this client ID"`
		Days     int `json:"days,omitempty" jsonschema:"Only invoices dated within this many days (default 90)"`
		Limit    int `json:"limit,omitempty" jsonschema:"Page size (default 50)"`
	}

	assetsArgs struct {
		ClientID  int    `json:"client_id,omitempty" jsonschema:"Only assets for this client ID"`
		AssetType string `json:"asset_type,omitempty" jsonschema:"Asset type filter"`
		Limit     int    `json:"limit,omitempty" jsonschema:"Page size (default 50)"`
	}

	itemsArgs struct {
		Search     string `json:"search,omitempty" jsonschema:"Search text for item names"`
		CategoryID int    `json:"category_id,omitempty" jsonschema:"Only items in this category"`
		Limit      int    `json:"limit,omitempty" jsonschema:"Page size (default 50)"`
	}

	recurringArgs struct {
		ClientID   int   `json:"client_id,omitempty" jsonschema:"Only contracts for this client ID"`
		ActiveOnly *bool `json:"active_only,omitempty" jsonschema:"Only ACTIVE contracts (default true)"`
		Limit      int   `json:"limit,omitempty" jsonschema:"Page size (default 50)"`
	}
)

// Tools returns the halopsa_* tools.
func (p *Provider) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("halopsa_get_clients", "List HaloPSA Clients",
			"List HaloPSA clients, optionally matching a search term.",
			tools.ReadOnly, p.getClients),
		tools.New("halopsa_get_client", "Get HaloPSA Client",
			"Get a HaloPSA client by ID.",
			tools.ReadOnly, p.getClient),
		tools.New("halopsa_get_tickets", "Search HaloPSA Tickets",
			"List tickets, optionally for one client or status.",
			tools.ReadOnly, p.getTickets),
		tools.New("halopsa_create_ticket", "Create HaloPSA Ticket",
			"Create a ticket for a client.",
			tools.Mutating, p.createTicket),
		tools.New("halopsa_add_action", "Add HaloPSA Ticket Action",
			"Add an action or note to a ticket.",
			tools.Mutating, p.addAction),
		tools.New("halopsa_get_invoices", "List HaloPSA Invoices",
			"List invoices dated within the last N days.",
			tools.ReadOnly, p.getInvoices),
		tools.New("halopsa_get_assets", "List HaloPSA Assets",
			"List assets and configuration items.",
			tools.ReadOnly, p.getAssets),
		tools.New("halopsa_get_agents", "List HaloPSA Agents",
			"List agents and technicians.",
			tools.ReadOnly, p.getAgents),
		tools.New("halopsa_get_items", "List HaloPSA Items",
			"List inventory items and products.",
			tools.ReadOnly, p.getItems),
		tools.New("halopsa_get_recurring_invoices", "List HaloPSA Recurring Invoices",
			"List recurring invoices (contracts), active only by default.",
			tools.ReadOnly, p.getRecurring),
	}
}

func pageSize(limit, def int) url.Values {
	return url.Values{"pageSize": {strconv.Itoa(tools.Clamp(tools.Default(limit, def), 1, 1000))}}
}

func setID(q url.Values, key string, id int) {
	if id > 0 {
		q.Set(key, strconv.Itoa(id))
	}
}

// list GETs path and returns the named array, never nil.
func list(ctx context.Context, api *httpapi.Client, path, key string, q url.Values) ([]any, error) {
	res, err := api.Object(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	out := tools.List(res[key])
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func (p *Provider) getClients(ctx context.Context, in clientsArgs) string {
	q := pageSize(in.Limit, 20)
	if in.Search != "" {
		q.Set("search", in.Search)
	}
	return p.run(ctx, "fetching HaloPSA clients", func(api *httpapi.Client) (any, error) {
		return list(ctx, api, "/crm_accounts", "accounts", q)
	})
}

func (p *Provider) getClient(ctx context.Context, in clientArgs) string {
	if in.ClientID <= 0 {
		return tools.Errorf("client_id is required.")
	}
	return p.run(ctx, "fetching HaloPSA client", func(api *httpapi.Client) (any, error) {
		return api.Get(ctx, "/crm_accounts/"+strconv.Itoa(in.ClientID), nil)
	})
}

func (p *Provider) getTickets(ctx context.Context, in ticketsArgs) string {
	q := pageSize(in.Limit, 20)
	setID(q, "clientId", in.ClientID)
	if in.Status != "" {
		q.Set("status", in.Status)
	}
	return p.run(ctx, "fetching HaloPSA tickets", func(api *httpapi.Client) (any, error) {
		return list(ctx, api, "/tickets", "tickets", q)
	})
}

func (p *Provider) createTicket(ctx context.Context, in createTicketArgs) string {
	if in.ClientID <= 0 || in.Summary == "" {
		return tools.Errorf("client_id and summary are required.")
	}
	body := map[string]any{
		"clientId":   in.ClientID,
		"summary":    in.Summary,
		"details":    in.Details,
		"priorityId": tools.Default(in.PriorityID, 3),
	}
	return p.run(ctx, "creating HaloPSA ticket", func(api *httpapi.Client) (any, error) {
		return api.Do(ctx, http.MethodPost, "/tickets", nil, body)
	})
}

func (p *Provider) addAction(ctx context.Context, in actionArgs) string {
	if in.TicketID <= 0 || in.Note == "" {
		return tools.Errorf("ticket_id and note are required.")
	}
	body := map[string]any{"note": in.Note, "timeTaken": max(in.TimeTaken, 0)}
	return p.run(ctx, "adding HaloPSA ticket action", func(api *httpapi.Client) (any, error) {
		return api.Do(ctx, http.MethodPost, "/tickets/"+strconv.Itoa(in.TicketID)+"/actions", nil, body)
	})
}

func (p *Provider) getInvoices(ctx context.Context, in invoicesArgs) string {
	q := pageSize(in.Limit, 50)
	setID(q, "clientId", in.ClientID)
	cutoff := p.now().AddDate(0, 0, -tools.Default(in.Days, 90))
	return p.run(ctx, "fetching HaloPSA invoices", func(api *httpapi.Client) (any, error) {
		invoices, err := list(ctx, api, "/invoices", "invoices", q)
		if err != nil {
			return nil, err
		}
		recent := []any{}
		for _, inv := range invoices {
			if d, ok := parseDate(tools.Str(tools.Get(inv, "invoiceDate"))); ok && d.After(cutoff) {
				recent = append(recent, inv)
			}
		}
		return recent, nil
	})
}

// parseDate accepts the date forms HaloPSA returns, with or without a zone.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (p *Provider) getAssets(ctx context.Context, in assetsArgs) string {
	q := pageSize(in.Limit, 50)
	setID(q, "clientId", in.ClientID)
	if in.AssetType != "" {
		q.Set("assetType", in.AssetType)
	}
	return p.run(ctx, "fetching HaloPSA assets", func(api *httpapi.Client) (any, error) {
		return list(ctx, api, "/assets", "assets", q)
	})
}

func (p *Provider) getAgents(ctx context.Context, _ noArgs) string {
	return p.run(ctx, "fetching HaloPSA agents", func(api *httpapi.Client) (any, error) {
		return list(ctx, api, "/users", "users", url.Values{"userType": {"AGENT"}})
	})
}

func (p *Provider) getItems(ctx context.Context, in itemsArgs) string {
	q := pageSize(in.Limit, 50)
	setID(q, "categoryId", in.CategoryID)
	if in.Search != "" {
		q.Set("search", in.Search)
	}
	return p.run(ctx, "fetching HaloPSA items", func(api *httpapi.Client) (any, error) {
		return list(ctx, api, "/inventory/items", "items", q)
	})
}

func (p *Provider) getRecurring(ctx context.Context, in recurringArgs) string {
	q := pageSize(in.Limit, 50)
	setID(q, "clientId", in.ClientID)
	activeOnly := in.ActiveOnly == nil || *in.ActiveOnly
	return p.run(ctx, "fetching HaloPSA recurring invoices", func(api *httpapi.Client) (any, error) {
		contracts, err := list(ctx, api, "/recurring-invoices", "recurringInvoices", q)
		if err != nil || !activeOnly {
			return contracts, err
		}
		active := []any{}
		for _, c := range contracts {
			if tools.Str(tools.Get(c, "status")) == "ACTIVE" {
				active = append(active, c)
			}
		}
		return active, nil
	})
}
