package pax8

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
)

type (
	companiesArgs struct {
		Page    int    `json:"page,omitempty" jsonschema:"Page number, starting at 0"`
		Size    int    `json:"size,omitempty" jsonschema:"Page size (default 50, max 200)"`
		Country string `json:"country,omitempty" jsonschema:"Country filter"`
		City    string `json:"city,omitempty" jsonschema:"City filter"`
	}

	subscriptionsArgs struct {
		CompanyID string `json:"company_id,omitempty" jsonschema:"Only subscriptions for this company"`
		ProductID string `json:"product_id,omitempty" jsonschema:"Only subscriptions for this product"`
		Status    string `json:"status,omitempty" jsonschema:"Active, Cancelled, PendingManual, PendingAutomated, PendingCancel, WaitingForDetails or Trial"`
		Page      int    `json:"page,omitempty" jsonschema:"Page number, starting at 0"`
		Size      int    `json:"size,omitempty" jsonschema:"Page size (default 50, max 200)"`
	}

	productsArgs struct {
		VendorName string `json:"vendor_name,omitempty" jsonschema:"Vendor name, e.g. Microsoft"`
		Page       int    `json:"page,omitempty" jsonschema:"Page number, starting at 0"`
		Size       int    `json:"size,omitempty" jsonschema:"Page size (default 50, max 200)"`
	}

	idArgs struct {
		ID string `json:"id" jsonschema:"Pax8 object ID"`
	}
)

// Tools returns the pax8_* tools.
func (p *Provider) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("pax8_list_companies", "List Pax8 Companies",
			"List customer companies.",
			tools.ReadOnly, p.listCompanies),
		tools.New("pax8_get_company", "Get Pax8 Company",
			"Get a company by ID.",
			tools.ReadOnly, p.getter("/companies/", "fetching Pax8 company")),
		tools.New("pax8_list_subscriptions", "List Pax8 Subscriptions",
			"List subscriptions, optionally for one company, product or status.",
			tools.ReadOnly, p.listSubscriptions),
		tools.New("pax8_get_subscription", "Get Pax8 Subscription",
			"Get a subscription by ID.",
			tools.ReadOnly, p.getter("/subscriptions/", "fetching Pax8 subscription")),
		tools.New("pax8_list_products", "List Pax8 Products",
			"List catalog products, optionally for one vendor.",
			tools.ReadOnly, p.listProducts),
		tools.New("pax8_get_product", "Get Pax8 Product",
			"Get a catalog product by ID.",
			tools.ReadOnly, p.getter("/products/", "fetching Pax8 product")),
	}
}

func pageQuery(page, size int) url.Values {
	return url.Values{
		"page": {strconv.Itoa(max(page, 0))},
		"size": {strconv.Itoa(tools.Clamp(tools.Default(size, 50), 1, 200))},
	}
}

func setIf(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

// list GETs path and returns the named array. Pax8 pages put results under
// "content"; key covers the older shape.
func list(ctx context.Context, api *httpapi.Client, path, key string, q url.Values) ([]any, error) {
	res, err := api.Object(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	out := tools.List(res["content"])
	if out == nil {
		out = tools.List(res[key])
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
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

func (p *Provider) listCompanies(ctx context.Context, in companiesArgs) string {
	q := pageQuery(in.Page, in.Size)
	setIf(q, "country", in.Country)
	setIf(q, "city", in.City)
	return p.run(ctx, "fetching Pax8 companies", func(api *httpapi.Client) (any, error) {
		return list(ctx, api, "/companies", "companies", q)
	})
}

func (p *Provider) listSubscriptions(ctx context.Context, in subscriptionsArgs) string {
	q := pageQuery(in.Page, in.Size)
	setIf(q, "companyId", in.CompanyID)
	setIf(q, "productId", in.ProductID)
	setIf(q, "status", in.Status)
	return p.run(ctx, "fetching Pax8 subscriptions", func(api *httpapi.Client) (any, error) {
		return list(ctx, api, "/subscriptions", "subscriptions", q)
	})
}

func (p *Provider) listProducts(ctx context.Context, in productsArgs) string {
	q := pageQuery(in.Page, in.Size)
	setIf(q, "vendorName", in.VendorName)
	return p.run(ctx, "fetching Pax8 products", func(api *httpapi.Client) (any, error) {
		return list(ctx, api, "/products", "products", q)
	})
}
