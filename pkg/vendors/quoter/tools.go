package quoter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
)

type (
	pageArgs struct {
		Limit int `json:"limit,omitempty" jsonschema:"Page size (default 50, max 100)"`
		Page  int `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	}

	contactsArgs struct {
		Limit  int    `json:"limit,omitempty" jsonschema:"Page size (default 50, max 100)"`
		Page   int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
		Search string `json:"search,omitempty" jsonschema:"Search name, email or organization"`
	}

	idArgs struct {
		ID string `json:"id" jsonschema:"Quoter object ID"`
	}

	createContactArgs struct {
		FirstName         string `json:"first_name" jsonschema:"First name"`
		LastName          string `json:"last_name" jsonschema:"Last name"`
		Email             string `json:"email" jsonschema:"Email address"`
		Organization      string `json:"organization,omitempty" jsonschema:"Organization name"`
		Title             string `json:"title,omitempty" jsonschema:"Job title"`
		Phone             string `json:"phone,omitempty" jsonschema:"Phone"`
		MobilePhone       string `json:"mobile_phone,omitempty" jsonschema:"Mobile phone"`
		BillingAddress    string `json:"billing_address,omitempty" jsonschema:"Billing street address"`
		BillingCity       string `json:"billing_city,omitempty" jsonschema:"Billing city"`
		BillingRegionISO  string `json:"billing_region_iso,omitempty" jsonschema:"Billing region ISO code, e.g. NSW"`
		BillingPostalCode string `json:"billing_postal_code,omitempty" jsonschema:"Billing postal code"`
		BillingCountryISO string `json:"billing_country_iso,omitempty" jsonschema:"Billing country ISO code (default AU)"`
	}

	updateContactArgs struct {
		ID                string  `json:"id" jsonschema:"Quoter contact ID"`
		FirstName         *string `json:"first_name,omitempty" jsonschema:"First name"`
		LastName          *string `json:"last_name,omitempty" jsonschema:"Last name"`
		Email             *string `json:"email,omitempty" jsonschema:"Email address"`
		Organization      *string `json:"organization,omitempty" jsonschema:"Organization name"`
		Phone             *string `json:"phone,omitempty" jsonschema:"Phone"`
		MobilePhone       *string `json:"mobile_phone,omitempty" jsonschema:"Mobile phone"`
		BillingAddress    *string `json:"billing_address,omitempty" jsonschema:"Billing street address"`
		BillingCity       *string `json:"billing_city,omitempty" jsonschema:"Billing city"`
		BillingRegionISO  *string `json:"billing_region_iso,omitempty" jsonschema:"Billing region ISO code"`
		BillingPostalCode *string `json:"billing_postal_code,omitempty" jsonschema:"Billing postal code"`
		BillingCountryISO *string `json:"billing_country_iso,omitempty" jsonschema:"Billing country ISO code"`
	}

	quotesArgs struct {
		Limit  int    `json:"limit,omitempty" jsonschema:"Page size (default 50, max 100)"`
		Page   int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
		Status string `json:"status,omitempty" jsonschema:"Quote status filter"`
	}

	createQuoteArgs struct {
		ContactID  string `json:"contact_id" jsonschema:"Contact the quote is for"`
		Name       string `json:"name,omitempty" jsonschema:"Quote name"`
		TemplateID string `json:"template_id,omitempty" jsonschema:"Template to start from"`
	}

	lineItemArgs struct {
		QuoteID     string   `json:"quote_id" jsonschema:"Quote ID"`
		Description string   `json:"description" jsonschema:"Line description"`
		UnitPrice   float64  `json:"unit_price,omitempty" jsonschema:"Unit price"`
		Quantity    *float64 `json:"quantity,omitempty" jsonschema:"Quantity (default 1)"`
		Taxable     *bool    `json:"taxable,omitempty" jsonschema:"Taxable (default true)"`
		Optional    bool     `json:"optional,omitempty" jsonschema:"Optional line"`
		ItemID      string   `json:"item_id,omitempty" jsonschema:"Catalog item ID"`
	}

	itemsArgs struct {
		Limit      int    `json:"limit,omitempty" jsonschema:"Page size (default 50, max 100)"`
		Page       int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
		CategoryID string `json:"category_id,omitempty" jsonschema:"Only items in this category"`
		Search     string `json:"search,omitempty" jsonschema:"Search item name or code"`
	}
)

// Tools returns the quoter_* tools.
func (p *Provider) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("quoter_list_contacts", "List Quoter Contacts",
			"List Quoter contacts, optionally matching a search term.",
			tools.ReadOnly, p.listContacts),
		tools.New("quoter_get_contact", "Get Quoter Contact",
			"Get a Quoter contact by ID.",
			tools.ReadOnly, p.getter("/contacts/", "fetching Quoter contact")),
		tools.New("quoter_create_contact", "Create Quoter Contact",
			"Create a Quoter contact.",
			tools.Mutating, p.createContact),
		tools.New("quoter_update_contact", "Update Quoter Contact",
			"Update fields on a Quoter contact.",
			tools.Mutating, p.updateContact),
		tools.New("quoter_list_quotes", "List Quoter Quotes",
			"List quotes, optionally filtered by status.",
			tools.ReadOnly, p.listQuotes),
		tools.New("quoter_create_quote", "Create Quoter Quote",
			"Create a quote for a contact.",
			tools.Mutating, p.createQuote),
		tools.New("quoter_add_line_item", "Add Quoter Line Item",
			"Add a line item to a quote.",
			tools.Mutating, p.addLineItem),
		tools.New("quoter_list_items", "List Quoter Items",
			"List catalog items.",
			tools.ReadOnly, p.listItems),
		tools.New("quoter_get_item", "Get Quoter Item",
			"Get a catalog item by ID.",
			tools.ReadOnly, p.getter("/items/", "fetching Quoter item")),
		tools.New("quoter_list_templates", "List Quoter Templates",
			"List quote templates.",
			tools.ReadOnly, p.lister("/templates", "templates", "fetching Quoter templates")),
		tools.New("quoter_list_categories", "List Quoter Categories",
			"List catalog categories.",
			tools.ReadOnly, p.lister("/categories", "categories", "fetching Quoter categories")),
	}
}

func pageQuery(limit, page int) url.Values {
	return url.Values{
		"limit": {strconv.Itoa(tools.Clamp(tools.Default(limit, 50), 1, 100))},
		"page":  {strconv.Itoa(max(page, 1))},
	}
}

// list GETs path and returns the array under key, or under "data" for
// API versions that wrap results that way.
func list(ctx context.Context, api *httpapi.Client, path, key string, q url.Values) ([]any, error) {
	res, err := api.Object(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	out := tools.List(res[key])
	if out == nil {
		out = tools.List(res["data"])
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func (p *Provider) lister(path, key, action string) func(context.Context, pageArgs) string {
	return func(ctx context.Context, in pageArgs) string {
		q := pageQuery(in.Limit, in.Page)
		return p.run(ctx, action, func(api *httpapi.Client) (any, error) {
			return list(ctx, api, path, key, q)
		})
	}
}

func (p *Provider) getter(prefix, action string) func(context.Context, idArgs) string {
	return func(ctx context.Context, in idArgs) string {
		if in.ID == "" {
			return tools.Errorf("id is required.")
		}
		return p.run(ctx, action, func(api *httpapi.Client) (any, error) {
			return api.Get(ctx, prefix+url.PathEscape(in.ID), nil)
		})
	}
}

func (p *Provider) listContacts(ctx context.Context, in contactsArgs) string {
	q := pageQuery(in.Limit, in.Page)
	if in.Search != "" {
		q.Set("search", in.Search)
	}
	return p.run(ctx, "fetching Quoter contacts", func(api *httpapi.Client) (any, error) {
		return list(ctx, api, "/contacts", "contacts", q)
	})
}

// setIf copies the non-empty values into body.
func setIf(body map[string]any, fields map[string]string) {
	for k, v := range fields {
		if v != "" {
			body[k] = v
		}
	}
}

func (p *Provider) createContact(ctx context.Context, in createContactArgs) string {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" {
		return tools.Errorf("first_name, last_name and email are required.")
	}
	body := map[string]any{
		"first_name":          in.FirstName,
		"last_name":           in.LastName,
		"email":               in.Email,
		"billing_country_iso": "AU",
	}
	setIf(body, map[string]string{
		"organization":        in.Organization,
		"title":               in.Title,
		"phone":               in.Phone,
		"mobile_phone":        in.MobilePhone,
		"billing_address":     in.BillingAddress,
		"billing_city":        in.BillingCity,
		"billing_region_iso":  in.BillingRegionISO,
		"billing_postal_code": in.BillingPostalCode,
		"billing_country_iso": in.BillingCountryISO,
	})
	return p.run(ctx, "creating Quoter contact", func(api *httpapi.Client) (any, error) {
		return api.Do(ctx, http.MethodPost, "/contacts", nil, body)
	})
}

func (p *Provider) updateContact(ctx context.Context, in updateContactArgs) string {
	if in.ID == "" {
		return tools.Errorf("id is required.")
	}
	body := map[string]any{}
	for k, v := range map[string]*string{
		"first_name":          in.FirstName,
		"last_name":           in.LastName,
		"email":               in.Email,
		"organization":        in.Organization,
		"phone":               in.Phone,
		"mobile_phone":        in.MobilePhone,
		"billing_address":     in.BillingAddress,
		"billing_city":        in.BillingCity,
		"billing_region_iso":  in.BillingRegionISO,
		"billing_postal_code": in.BillingPostalCode,
		"billing_country_iso": in.BillingCountryISO,
	} {
		if v != nil {
			body[k] = *v
		}
	}
	if len(body) == 0 {
		return tools.Errorf("No fields provided to update.")
	}
	return p.run(ctx, "updating Quoter contact", func(api *httpapi.Client) (any, error) {
		return api.Do(ctx, http.MethodPatch, "/contacts/"+url.PathEscape(in.ID), nil, body)
	})
}

func (p *Provider) listQuotes(ctx context.Context, in quotesArgs) string {
	q := pageQuery(in.Limit, in.Page)
	if in.Status != "" {
		q.Set("status", in.Status)
	}
	return p.run(ctx, "fetching Quoter quotes", func(api *httpapi.Client) (any, error) {
		return list(ctx, api, "/quotes", "quotes", q)
	})
}

func (p *Provider) createQuote(ctx context.Context, in createQuoteArgs) string {
	if in.ContactID == "" {
		return tools.Errorf("contact_id is required.")
	}
	body := map[string]any{"contact_id": in.ContactID}
	setIf(body, map[string]string{"name": in.Name, "template_id": in.TemplateID})
	return p.run(ctx, "creating Quoter quote", func(api *httpapi.Client) (any, error) {
		return api.Do(ctx, http.MethodPost, "/quotes", nil, body)
	})
}

func (p *Provider) addLineItem(ctx context.Context, in lineItemArgs) string {
	if in.QuoteID == "" || in.Description == "" {
		return tools.Errorf("quote_id and description are required.")
	}
	quantity := 1.0
	if in.Quantity != nil {
		quantity = *in.Quantity
	}
	if quantity <= 0 {
		return tools.Errorf("quantity must be positive.")
	}
	body := map[string]any{
		"description": in.Description,
		"unit_price":  in.UnitPrice,
		"quantity":    quantity,
		"taxable":     in.Taxable == nil || *in.Taxable,
		"optional":    in.Optional,
	}
	setIf(body, map[string]string{"item_id": in.ItemID})
	return p.run(ctx, "adding Quoter line item", func(api *httpapi.Client) (any, error) {
		return api.Do(ctx, http.MethodPost, "/quotes/"+url.PathEscape(in.QuoteID)+"/line_items", nil, body)
	})
}

func (p *Provider) listItems(ctx context.Context, in itemsArgs) string {
	q := pageQuery(in.Limit, in.Page)
	if in.CategoryID != "" {
		q.Set("category_id", in.CategoryID)
	}
	if in.Search != "" {
		q.Set("search", in.Search)
	}
	return p.run(ctx, "fetching Quoter items", func(api *httpapi.Client) (any, error) {
		return list(ctx, api, "/items", "items", q)
	})
}
