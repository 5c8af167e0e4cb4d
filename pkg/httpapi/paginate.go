package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Paginate collects resultKey across page/per_page pages. It stops when
// links.pages.next is absent, when meta.total items have been collected, or
// after maxPages pages.
func (c *Client) Paginate(ctx context.Context, path, resultKey string, query url.Values, perPage, maxPages int) ([]any, error) {
	if maxPages <= 0 {
		maxPages = 10
	}
	if perPage <= 0 {
		perPage = 100
	}

	params := url.Values{}
	for k, v := range query {
		params[k] = append([]string(nil), v...)
	}

	var all []any
	for page := 1; page <= maxPages; page++ {
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(perPage))

		res, err := c.Get(ctx, path, params)
		if err != nil {
			return nil, err
		}
		data, ok := res.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s returned an unexpected page shape for %s", c.vendor, path)
		}

		items, _ := data[resultKey].([]any)
		all = append(all, items...)

		total := asInt(dig(data, "meta", "total"))
		next, _ := dig(data, "links", "pages", "next").(string)
		if next == "" || len(all) >= total {
			break
		}
	}
	return all, nil
}

// dig walks nested maps.
func dig(v any, keys ...string) any {
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

func asInt(v any) int {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, _ := n.Float64()
			return int(f)
		}
		return int(i)
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
