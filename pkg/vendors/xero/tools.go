package xero

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
)

type (
	noArgs struct{}

	contactsArgs struct {
		IsCustomer *bool  `json:"is_customer,omitempty" jsonschema:"Only customers"`
		IsSupplier *bool  `json:"is_supplier,omitempty" jsonschema:"Only suppliers"`
		Search     string `json:"search,omitempty" jsonschema:"Match contact name, email or account number"`
		Limit      int    `json:"limit,omitempty" jsonschema:"Maximum contacts (default 50)"`
	}

	createContactArgs struct {
		Name          string `json:"name" jsonschema:"Contact name"`
		Email         string `json:"email,omitempty" jsonschema:"Email address"`
		Phone         string `json:"phone,omitempty" jsonschema:"Phone number"`
		FirstName     string `json:"first_name,omitempty" jsonschema:"Primary person first name"`
		LastName      string `json:"last_name,omitempty" jsonschema:"Primary person last name"`
		AccountNumber string `json:"account_number,omitempty" jsonschema:"Account number"`
	}

	updateContactArgs struct {
		ContactID     string  `json:"contact_id" jsonschema:"Xero ContactID"`
		Name          *string `json:"name,omitempty" jsonschema:"New name"`
		Email         *string `json:"email,omitempty" jsonschema:"New email address"`
		Phone         *string `json:"phone,omitempty" jsonschema:"New phone number"`
		FirstName     *string `json:"first_name,omitempty" jsonschema:"New first name"`
		LastName      *string `json:"last_name,omitempty" jsonschema:"New last name"`
		ContactStatus *string `json:"contact_status,omitempty" jsonschema:"ACTIVE or ARCHIVED"`
		AccountNumber *string `json:"account_number,omitempty" jsonschema:"New account number"`
	}

	invoicesArgs struct {
		ContactName string `json:"contact_name,omitempty" jsonschema:"Only invoices whose contact name contains this"`
		Status      string `json:"status,omitempty" jsonschema:"DRAFT, SUBMITTED, AUTHORISED, PAID or VOIDED"`
		Days        *int   `json:"days,omitempty" jsonschema:"Only invoices dated within this many days (default 90, 0 for all)"`
		Limit       int    `json:"limit,omitempty" jsonschema:"Maximum invoices (default 20)"`
	}

	createInvoiceArgs struct {
		ContactName string `json:"contact_name" jsonschema:"Contact to invoice, matched by name"`
		LineItems   string `json:"line_items" jsonschema:"JSON array of {description, quantity, unit_amount, account_code}"`
		DueDays     int    `json:"due_days,omitempty" jsonschema:"Days until due (default 30)"`
		Status      string `json:"status,omitempty" jsonschema:"DRAFT (default) or AUTHORISED"`
		Reference   string `json:"reference,omitempty" jsonschema:"Invoice reference"`
	}

	invoiceIDArgs struct {
		InvoiceID string `json:"invoice_id" jsonschema:"Xero InvoiceID"`
	}

	agedArgs struct {
		ContactName string  `json:"contact_name,omitempty" jsonschema:"Only contacts whose name contains this"`
		MinAmount   float64 `json:"min_amount,omitempty" jsonschema:"Minimum outstanding amount"`
	}

	itemsArgs struct {
		Search string `json:"search,omitempty" jsonschema:"Match item name or code"`
		Limit  int    `json:"limit,omitempty" jsonschema:"Maximum items (default 50)"`
	}

	reportDateArgs struct {
		Date string `json:"date,omitempty" jsonschema:"Report date YYYY-MM-DD (default today)"`
	}

	profitLossArgs struct {
		FromDate string `json:"from_date,omitempty" jsonschema:"Start date YYYY-MM-DD"`
		ToDate   string `json:"to_date,omitempty" jsonschema:"End date YYYY-MM-DD"`
	}
)

// Invoice types.
const (
	receivable = "ACCREC"
	payable    = "ACCPAY"
)

var (
	contactFields = []string{"ContactID", "Name", "EmailAddress", "ContactStatus", "AccountNumber", "IsCustomer", "IsSupplier", "Phones"}
	invoiceFields = []string{"InvoiceID", "InvoiceNumber", "Type", "Status", "Reference", "DateString", "DueDateString", "Total", "AmountDue", "AmountPaid", "CurrencyCode"}
)

// Tools returns the xero_* tools.
func (p *Provider) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("xero_get_contacts", "List Xero Contacts",
			"List active Xero contacts, optionally only customers or suppliers.",
			tools.ReadOnly, p.getContacts),
		tools.New("xero_create_contact", "Create Xero Contact",
			"Create a new Xero contact.",
			tools.Mutating, p.createContact),
		tools.New("xero_update_contact", "Update Xero Contact",
			"Update fields on an existing Xero contact.",
			tools.Mutating, p.updateContact),
		tools.New("xero_get_invoices", "List Xero Invoices",
			"List sales invoices, newest first.",
			tools.ReadOnly, p.getInvoices),
		tools.New("xero_get_bills", "List Xero Bills",
			"List supplier bills, newest first.",
			tools.ReadOnly, p.getBills),
		tools.New("xero_create_invoice", "Create Xero Invoice",
			"Create a sales invoice for a contact found by name.",
			tools.Mutating, p.createInvoice),
		tools.New("xero_void_invoice", "Void Xero Invoice",
			"Void an invoice.",
			tools.Destructive, p.voidInvoice),
		tools.New("xero_get_accounts", "List Xero Accounts",
			"List the chart of accounts.",
			tools.ReadOnly, p.getAccounts),
		tools.New("xero_get_bank_summary", "Xero Bank Summary",
			"Bank accounts with code and current balance, keyed by name.",
			tools.ReadOnly, p.getBankSummary),
		tools.New("xero_get_items", "List Xero Items",
			"List inventory items and products.",
			tools.ReadOnly, p.getItems),
		tools.New("xero_get_tax_rates", "List Xero Tax Rates",
			"List tax rates.",
			tools.ReadOnly, p.getTaxRates),
		tools.New("xero_aged_receivables", "Xero Aged Receivables",
			"Overdue authorised sales invoices with outstanding amount and days overdue.",
			tools.ReadOnly, p.agedReceivables),
		tools.New("xero_aged_payables", "Xero Aged Payables",
			"Overdue authorised bills with outstanding amount and days overdue.",
			tools.ReadOnly, p.agedPayables),
		tools.New("xero_balance_sheet", "Xero Balance Sheet",
			"Balance sheet report as of a date.",
			tools.ReadOnly, p.balanceSheet),
		tools.New("xero_profit_loss", "Xero Profit and Loss",
			"Profit and loss report for a date range.",
			tools.ReadOnly, p.profitLoss),
	}
}

// whereString quotes s for a Xero where clause.
func whereString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func pickAll(list []any, keys []string) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		out = append(out, tools.Pick(v, keys...))
	}
	return out
}

func (p *Provider) getContacts(ctx context.Context, in contactsArgs) string {
	where := []string{`ContactStatus=="ACTIVE"`}
	if in.IsCustomer != nil && *in.IsCustomer {
		where = append(where, "IsCustomer==true")
	}
	if in.IsSupplier != nil && *in.IsSupplier {
		where = append(where, "IsSupplier==true")
	}
	q := url.Values{"where": {strings.Join(where, " && ")}, "order": {"Name"}}
	if in.Search != "" {
		q.Set("searchTerm", in.Search)
	}
	limit := tools.Clamp(tools.Default(in.Limit, 50), 1, 500)
	return p.run(ctx, "fetching Xero contacts", func(api *httpapi.Client) (any, error) {
		res, err := api.Object(ctx, http.MethodGet, "/Contacts", q, nil)
		if err != nil {
			return nil, err
		}
		contacts := tools.List(res["Contacts"])
		return pickAll(contacts[:min(limit, len(contacts))], contactFields), nil
	})
}

func phones(number string) []map[string]string {
	return []map[string]string{{"PhoneType": "DEFAULT", "PhoneNumber": number}}
}

func (p *Provider) createContact(ctx context.Context, in createContactArgs) string {
	if in.Name == "" {
		return tools.Errorf("name is required.")
	}
	contact := map[string]any{"Name": in.Name, "ContactStatus": "ACTIVE"}
	for key, v := range map[string]string{"EmailAddress": in.Email, "FirstName": in.FirstName, "LastName": in.LastName, "AccountNumber": in.AccountNumber} {
		if v != "" {
			contact[key] = v
		}
	}
	if in.Phone != "" {
		contact["Phones"] = phones(in.Phone)
	}
	return p.run(ctx, "creating Xero contact", func(api *httpapi.Client) (any, error) {
		return first(ctx, api, http.MethodPost, "/Contacts", "Contacts", contact)
	})
}

func (p *Provider) updateContact(ctx context.Context, in updateContactArgs) string {
	if in.ContactID == "" {
		return tools.Errorf("contact_id is required.")
	}
	contact := map[string]any{}
	for key, v := range map[string]*string{
		"Name": in.Name, "EmailAddress": in.Email, "FirstName": in.FirstName, "LastName": in.LastName,
		"ContactStatus": in.ContactStatus, "AccountNumber": in.AccountNumber,
	} {
		if v != nil {
			contact[key] = *v
		}
	}
	if in.Phone != nil {
		contact["Phones"] = phones(*in.Phone)
	}
	if len(contact) == 0 {
		return tools.Errorf("No fields provided to update.")
	}
	return p.run(ctx, "updating Xero contact", func(api *httpapi.Client) (any, error) {
		return first(ctx, api, http.MethodPost, "/Contacts/"+url.PathEscape(in.ContactID), "Contacts", contact)
	})
}

// first sends {key: [body]} and returns the first element of the key array
// in the response. Xero wraps every write this way.
func first(ctx context.Context, api *httpapi.Client, method, path, key string, body any) (any, error) {
	var payload any
	if body != nil {
		payload = map[string]any{key: []any{body}}
	}
	res, err := api.Object(ctx, method, path, nil, payload)
	if err != nil {
		return nil, err
	}
	if list := tools.List(res[key]); len(list) > 0 {
		return list[0], nil
	}
	return map[string]any{}, nil
}

// invoiceQuery builds the where clause for one invoice type.
func invoiceQuery(kind, status string, since time.Time) url.Values {
	where := []string{`Type==` + whereString(kind)}
	if status != "" {
		where = append(where, `Status==`+whereString(strings.ToUpper(status)))
	}
	if !since.IsZero() {
		where = append(where, fmt.Sprintf("Date>=DateTime(%d,%02d,%02d)", since.Year(), since.Month(), since.Day()))
	}
	return url.Values{"where": {strings.Join(where, " && ")}, "order": {"Date DESC"}}
}

func (p *Provider) listInvoices(ctx context.Context, api *httpapi.Client, q url.Values, contactName string) ([]any, error) {
	res, err := api.Object(ctx, http.MethodGet, "/Invoices", q, nil)
	if err != nil {
		return nil, err
	}
	var out []any
	for _, inv := range tools.List(res["Invoices"]) {
		if contactName == "" || containsFold(tools.Str(tools.Get(inv, "Contact", "Name")), contactName) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (p *Provider) invoices(ctx context.Context, kind, action string, in invoicesArgs) string {
	days := 90
	if in.Days != nil {
		days = max(*in.Days, 0)
	}
	var since time.Time
	if days > 0 {
		since = p.now().AddDate(0, 0, -days)
	}
	q := invoiceQuery(kind, in.Status, since)
	limit := tools.Clamp(tools.Default(in.Limit, 20), 1, 100)
	return p.run(ctx, action, func(api *httpapi.Client) (any, error) {
		list, err := p.listInvoices(ctx, api, q, in.ContactName)
		if err != nil {
			return nil, err
		}
		out := pickAll(list[:min(limit, len(list))], invoiceFields)
		for i, inv := range list[:len(out)] {
			out[i]["Contact"] = tools.Get(inv, "Contact", "Name")
		}
		return out, nil
	})
}

func (p *Provider) getInvoices(ctx context.Context, in invoicesArgs) string {
	return p.invoices(ctx, receivable, "fetching Xero invoices", in)
}

func (p *Provider) getBills(ctx context.Context, in invoicesArgs) string {
	return p.invoices(ctx, payable, "fetching Xero bills", in)
}

type lineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitAmount  float64 `json:"unit_amount"`
	AccountCode string  `json:"account_code"`
}

func (p *Provider) createInvoice(ctx context.Context, in createInvoiceArgs) string {
	if in.ContactName == "" || in.LineItems == "" {
		return tools.Errorf("contact_name and line_items are required.")
	}
	var items []lineItem
	if err := json.Unmarshal([]byte(in.LineItems), &items); err != nil {
		return tools.Errorf("line_items must be a JSON array: %v", err)
	}
	if len(items) == 0 {
		return tools.Errorf("line_items must contain at least one item.")
	}
	lines := make([]map[string]any, 0, len(items))
	for _, it := range items {
		lines = append(lines, map[string]any{
			"Description": it.Description,
			"Quantity":    it.Quantity,
			"UnitAmount":  it.UnitAmount,
			"AccountCode": it.AccountCode,
		})
	}
	invoice := map[string]any{
		"Type":      receivable,
		"LineItems": lines,
		"Status":    strings.ToUpper(cmp.Or(in.Status, "DRAFT")),
		"DueDate":   p.now().AddDate(0, 0, tools.Default(in.DueDays, 30)).Format(time.DateOnly),
	}
	if in.Reference != "" {
		invoice["Reference"] = in.Reference
	}

	return p.run(ctx, "creating Xero invoice", func(api *httpapi.Client) (any, error) {
		res, err := api.Object(ctx, http.MethodGet, "/Contacts", url.Values{"searchTerm": {in.ContactName}}, nil)
		if err != nil {
			return nil, err
		}
		contacts := tools.List(res["Contacts"])
		if len(contacts) == 0 {
			return tools.Errorf("Contact '%s' not found.", in.ContactName), nil
		}
		invoice["Contact"] = map[string]any{"ContactID": tools.Get(contacts[0], "ContactID")}
		return first(ctx, api, http.MethodPost, "/Invoices", "Invoices", invoice)
	})
}

func (p *Provider) voidInvoice(ctx context.Context, in invoiceIDArgs) string {
	if in.InvoiceID == "" {
		return tools.Errorf("invoice_id is required.")
	}
	return p.run(ctx, "voiding Xero invoice", func(api *httpapi.Client) (any, error) {
		return first(ctx, api, http.MethodPost, "/Invoices/"+url.PathEscape(in.InvoiceID), "Invoices", map[string]any{"Status": "VOIDED"})
	})
}

func (p *Provider) getAccounts(ctx context.Context, _ noArgs) string {
	return p.run(ctx, "fetching Xero accounts", func(api *httpapi.Client) (any, error) {
		res, err := api.Object(ctx, http.MethodGet, "/Accounts", nil, nil)
		if err != nil {
			return nil, err
		}
		return pickAll(tools.List(res["Accounts"]), []string{"AccountID", "Code", "Name", "Type", "Class", "Status", "TaxType"}), nil
	})
}

func (p *Provider) getBankSummary(ctx context.Context, _ noArgs) string {
	q := url.Values{"where": {`Type=="BANK"`}}
	return p.run(ctx, "fetching Xero bank summary", func(api *httpapi.Client) (any, error) {
		res, err := api.Object(ctx, http.MethodGet, "/Accounts", q, nil)
		if err != nil {
			return nil, err
		}
		summary := map[string]any{}
		for _, acct := range tools.List(res["Accounts"]) {
			summary[tools.Str(tools.Get(acct, "Name"))] = map[string]any{
				"code":    tools.Get(acct, "Code"),
				"balance": tools.Get(acct, "CurrentAccountBalance"),
			}
		}
		return summary, nil
	})
}

func (p *Provider) getItems(ctx context.Context, in itemsArgs) string {
	limit := tools.Clamp(tools.Default(in.Limit, 50), 1, 500)
	return p.run(ctx, "fetching Xero items", func(api *httpapi.Client) (any, error) {
		res, err := api.Object(ctx, http.MethodGet, "/Items", nil, nil)
		if err != nil {
			return nil, err
		}
		items := []any{}
		for _, it := range tools.List(res["Items"]) {
			if in.Search == "" || containsFold(tools.Str(tools.Get(it, "Name")), in.Search) || containsFold(tools.Str(tools.Get(it, "Code")), in.Search) {
				items = append(items, it)
			}
		}
		return items[:min(limit, len(items))], nil
	})
}

func (p *Provider) getTaxRates(ctx context.Context, _ noArgs) string {
	return p.run(ctx, "fetching Xero tax rates", func(api *httpapi.Client) (any, error) {
		res, err := api.Object(ctx, http.MethodGet, "/TaxRates", nil, nil)
		if err != nil {
			return nil, err
		}
		return pickAll(tools.List(res["TaxRates"]), []string{"Name", "TaxType", "EffectiveRate", "Status"}), nil
	})
}

type agedInvoice struct {
	InvoiceID     string  `json:"invoice_id"`
	InvoiceNumber string  `json:"invoice_number"`
	Contact       string  `json:"contact"`
	Amount        float64 `json:"amount"`
	DaysOverdue   int     `json:"days_overdue"`
	DueDate       string  `json:"due_date"`
}

func (p *Provider) aged(ctx context.Context, kind, action string, in agedArgs) string {
	q := invoiceQuery(kind, "AUTHORISED", time.Time{})
	now := p.now()
	return p.run(ctx, action, func(api *httpapi.Client) (any, error) {
		list, err := p.listInvoices(ctx, api, q, in.ContactName)
		if err != nil {
			return nil, err
		}
		aged := []agedInvoice{}
		for _, inv := range list {
			due, ok := parseDate(inv, "DueDate")
			if !ok {
				continue
			}
			days := int(math.Floor(now.Sub(due).Hours() / 24))
			amount := tools.Float(tools.Get(inv, "Total")) - tools.Float(tools.Get(inv, "AmountPaid"))
			if days <= 0 || amount < in.MinAmount {
				continue
			}
			aged = append(aged, agedInvoice{
				InvoiceID:     tools.Str(tools.Get(inv, "InvoiceID")),
				InvoiceNumber: tools.Str(tools.Get(inv, "InvoiceNumber")),
				Contact:       tools.Str(tools.Get(inv, "Contact", "Name")),
				Amount:        math.Round(amount*100) / 100,
				DaysOverdue:   days,
				DueDate:       due.Format(time.DateOnly),
			})
		}
		slices.SortStableFunc(aged, func(a, b agedInvoice) int { return b.DaysOverdue - a.DaysOverdue })
		return aged, nil
	})
}

func (p *Provider) agedReceivables(ctx context.Context, in agedArgs) string {
	return p.aged(ctx, receivable, "fetching Xero aged receivables", in)
}

func (p *Provider) agedPayables(ctx context.Context, in agedArgs) string {
	return p.aged(ctx, payable, "fetching Xero aged payables", in)
}

var msDate = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// parseDate reads key+"String" when present, else the /Date(ms)/ form of key.
func parseDate(inv any, key string) (time.Time, bool) {
	if s := tools.Str(tools.Get(inv, key+"String")); s != "" {
		for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339, time.DateOnly} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	m := msDate.FindStringSubmatch(tools.Str(tools.Get(inv, key)))
	if m == nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

func (p *Provider) balanceSheet(ctx context.Context, in reportDateArgs) string {
	q := url.Values{}
	if in.Date != "" {
		q.Set("date", in.Date)
	}
	return p.run(ctx, "fetching Xero balance sheet", func(api *httpapi.Client) (any, error) {
		return api.Get(ctx, "/Reports/BalanceSheet", q)
	})
}

func (p *Provider) profitLoss(ctx context.Context, in profitLossArgs) string {
	q := url.Values{}
	if in.FromDate != "" {
		q.Set("fromDate", in.FromDate)
	}
	if in.ToDate != "" {
		q.Set("toDate", in.ToDate)
	}
	return p.run(ctx, "fetching Xero profit and loss", func(api *httpapi.Client) (any, error) {
		return api.Get(ctx, "/Reports/ProfitAndLoss", q)
	})
}
