package digitalocean

import (
	"github.com/crowdit/crowdmcp/pkg/tools"
)

// dropletSummary flattens a droplet into the fields agents usually need.
func dropletSummary(d any) map[string]any {
	var public, private string
	for _, n := range tools.List(tools.Get(d, "networks", "v4")) {
		switch tools.Str(tools.Get(n, "type")) {
		case "public":
			if public == "" {
				public = tools.Str(tools.Get(n, "ip_address"))
			}
		case "private":
			if private == "" {
				private = tools.Str(tools.Get(n, "ip_address"))
			}
		}
	}

	image := tools.Str(tools.Get(d, "image", "slug"))
	if image == "" {
		image = tools.Str(tools.Get(d, "image", "name"))
	}

	return map[string]any{
		"id":           tools.Get(d, "id"),
		"name":         tools.Str(tools.Get(d, "name")),
		"status":       tools.Str(tools.Get(d, "status")),
		"region":       tools.Str(tools.Get(d, "region", "slug")),
		"region_name":  tools.Str(tools.Get(d, "region", "name")),
		"size":         tools.Str(tools.Get(d, "size_slug")),
		"vcpus":        tools.Get(d, "vcpus"),
		"memory_mb":    tools.Get(d, "memory"),
		"disk_gb":      tools.Get(d, "disk"),
		"public_ipv4":  public,
		"private_ipv4": private,
		"image":        image,
		"tags":         list(tools.Get(d, "tags")),
		"vpc_uuid":     tools.Str(tools.Get(d, "vpc_uuid")),
		"created_at":   tools.Str(tools.Get(d, "created_at")),
	}
}

func databaseSummary(db any) map[string]any {
	return map[string]any{
		"id":         tools.Str(tools.Get(db, "id")),
		"name":       tools.Str(tools.Get(db, "name")),
		"engine":     tools.Str(tools.Get(db, "engine")),
		"version":    tools.Str(tools.Get(db, "version")),
		"status":     tools.Str(tools.Get(db, "status")),
		"region":     tools.Str(tools.Get(db, "region")),
		"size":       tools.Str(tools.Get(db, "size")),
		"num_nodes":  tools.Get(db, "num_nodes"),
		"host":       tools.Str(tools.Get(db, "connection", "host")),
		"port":       tools.Get(db, "connection", "port"),
		"database":   tools.Str(tools.Get(db, "connection", "database")),
		"created_at": tools.Str(tools.Get(db, "created_at")),
		"tags":       list(tools.Get(db, "tags")),
	}
}

func kubernetesSummary(c any) map[string]any {
	pools := []map[string]any{}
	for _, p := range tools.List(tools.Get(c, "node_pools")) {
		pools = append(pools, map[string]any{
			"id":         tools.Str(tools.Get(p, "id")),
			"name":       tools.Str(tools.Get(p, "name")),
			"size":       tools.Str(tools.Get(p, "size")),
			"count":      tools.Get(p, "count"),
			"auto_scale": tools.Get(p, "auto_scale") == true,
			"min_nodes":  tools.Get(p, "min_nodes"),
			"max_nodes":  tools.Get(p, "max_nodes"),
		})
	}
	return map[string]any{
		"id":         tools.Str(tools.Get(c, "id")),
		"name":       tools.Str(tools.Get(c, "name")),
		"region":     tools.Str(tools.Get(c, "region")),
		"version":    tools.Str(tools.Get(c, "version")),
		"status":     tools.Str(tools.Get(c, "status", "state")),
		"endpoint":   tools.Str(tools.Get(c, "endpoint")),
		"node_pools": pools,
		"vpc_uuid":   tools.Str(tools.Get(c, "vpc_uuid")),
		"created_at": tools.Str(tools.Get(c, "created_at")),
		"tags":       list(tools.Get(c, "tags")),
	}
}

// list returns v as a slice, never nil, so results render [] not null.
func list(v any) []any {
	if l := tools.List(v); l != nil {
		return l
	}
	return []any{}
}

// mapEach applies fn to every element of v.
func mapEach(v any, fn func(any) map[string]any) []map[string]any {
	out := []map[string]any{}
	for _, item := range tools.List(v) {
		out = append(out, fn(item))
	}
	return out
}
