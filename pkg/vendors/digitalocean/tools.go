package digitalocean

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
)

const maxPerPage = 200

var dropletActions = []string{
	"power_on", "power_off", "shutdown", "reboot", "power_cycle",
	"enable_backups", "disable_backups", "enable_ipv6", "enable_private_networking",
}

type (
	noArgs struct{}

	listDropletsArgs struct {
		TagName string `json:"tag_name,omitempty" jsonschema:"Filter droplets by tag name"`
		PerPage int    `json:"per_page,omitempty" jsonschema:"Results per page, max 200 (default 50)"`
		Page    int    `json:"page,omitempty" jsonschema:"Page number (default 1)"`
	}

	dropletArgs struct {
		DropletID int64 `json:"droplet_id" jsonschema:"Numeric droplet ID"`
	}

	createDropletArgs struct {
		Name       string `json:"name" jsonschema:"Hostname for the droplet, e.g. web-server-01"`
		Region     string `json:"region" jsonschema:"Region slug, e.g. syd1"`
		Size       string `json:"size" jsonschema:"Size slug, e.g. s-1vcpu-1gb"`
		Image      string `json:"image" jsonschema:"Image slug or ID, e.g. ubuntu-24-04-x64"`
		SSHKeys    string `json:"ssh_keys,omitempty" jsonschema:"Comma-separated SSH key IDs or fingerprints"`
		Backups    bool   `json:"backups,omitempty" jsonschema:"Enable weekly backups"`
		Monitoring *bool  `json:"monitoring,omitempty" jsonschema:"Enable the monitoring agent (default true)"`
		VPCUUID    string `json:"vpc_uuid,omitempty" jsonschema:"VPC UUID to place the droplet in"`
		Tags       string `json:"tags,omitempty" jsonschema:"Comma-separated tags"`
		UserData   string `json:"user_data,omitempty" jsonschema:"Cloud-init user data"`
	}

	dropletActionArgs struct {
		DropletID int64  `json:"droplet_id" jsonschema:"Numeric droplet ID"`
		Action    string `json:"action" jsonschema:"power_on, power_off, shutdown, reboot, power_cycle, enable_backups, disable_backups, enable_ipv6 or enable_private_networking"`
	}

	domainRecordsArgs struct {
		DomainName string `json:"domain_name" jsonschema:"Domain name, e.g. example.com"`
		RecordType string `json:"record_type,omitempty" jsonschema:"Filter by record type, e.g. A or MX"`
	}

	createRecordArgs struct {
		DomainName string `json:"domain_name" jsonschema:"Domain name, e.g. example.com"`
		RecordType string `json:"record_type" jsonschema:"A, AAAA, CNAME, MX, TXT, NS, SRV or CAA"`
		Name       string `json:"name" jsonschema:"Record name: www, @ for the apex, * for wildcard"`
		Data       string `json:"data" jsonschema:"Record value"`
		Priority   int    `json:"priority,omitempty" jsonschema:"Priority for MX and SRV records"`
		Port       int    `json:"port,omitempty" jsonschema:"Port for SRV records"`
		TTL        int    `json:"ttl,omitempty" jsonschema:"Time to live in seconds (default 1800)"`
		Weight     int    `json:"weight,omitempty" jsonschema:"Weight for SRV records"`
	}

	updateRecordArgs struct {
		DomainName string `json:"domain_name" jsonschema:"Domain name"`
		RecordID   int64  `json:"record_id" jsonschema:"Record ID from list_domain_records"`
		RecordType string `json:"record_type,omitempty" jsonschema:"New record type"`
		Name       string `json:"name,omitempty" jsonschema:"New record name"`
		Data       string `json:"data,omitempty" jsonschema:"New record value"`
		Priority   *int   `json:"priority,omitempty" jsonschema:"New priority for MX and SRV"`
		TTL        *int   `json:"ttl,omitempty" jsonschema:"New TTL in seconds"`
	}

	deleteRecordArgs struct {
		DomainName string `json:"domain_name" jsonschema:"Domain name"`
		RecordID   int64  `json:"record_id" jsonschema:"Record ID from list_domain_records"`
	}

	createFirewallArgs struct {
		Name          string `json:"name" jsonschema:"Firewall name"`
		InboundRules  string `json:"inbound_rules,omitempty" jsonschema:"JSON array of inbound rules"`
		OutboundRules string `json:"outbound_rules,omitempty" jsonschema:"JSON array of outbound rules"`
		DropletIDs    string `json:"droplet_ids,omitempty" jsonschema:"Comma-separated droplet IDs to protect"`
		Tags          string `json:"tags,omitempty" jsonschema:"Comma-separated droplet tags the firewall applies to"`
	}

	regionArgs struct {
		Region string `json:"region,omitempty" jsonschema:"Filter by region slug, e.g. syd1"`
	}

	snapshotArgs struct {
		ResourceType string `json:"resource_type,omitempty" jsonschema:"droplet or volume; empty lists both"`
	}

	idArgs struct {
		ID string `json:"id" jsonschema:"Resource ID"`
	}
)

func (a *account) tools() []tools.Tool {
	return []tools.Tool{
		tools.New("digitalocean_get_account", "Get DigitalOcean Account Info",
			"Get DigitalOcean account information including email, droplet limit and status.",
			tools.ReadOnly, a.getAccount),
		tools.New("digitalocean_list_regions", "List DigitalOcean Regions",
			"List available DigitalOcean datacenter regions with features and sizes.",
			tools.ReadOnly, a.listRegions),
		tools.New("digitalocean_list_sizes", "List DigitalOcean Sizes",
			"List available droplet sizes (plans) with pricing.",
			tools.ReadOnly, a.listSizes),
		tools.New("digitalocean_list_droplets", "List DigitalOcean Droplets",
			"List droplets with status, region, size and IP info.",
			tools.ReadOnly, a.listDroplets),
		tools.New("digitalocean_get_droplet", "Get DigitalOcean Droplet",
			"Get detailed information about a droplet.",
			tools.ReadOnly, a.getDroplet),
		tools.New("digitalocean_create_droplet", "Create DigitalOcean Droplet",
			heredoc.Doc(`
				Create a new droplet (virtual machine).

				Use digitalocean_list_regions and digitalocean_list_sizes to pick
				the region and size slugs. Poll digitalocean_get_droplet for status.
			`),
			tools.Mutating, a.createDroplet),
		tools.New("digitalocean_delete_droplet", "Delete DigitalOcean Droplet",
			"Permanently delete a droplet. This action is irreversible.",
			tools.Destructive, a.deleteDroplet),
		tools.New("digitalocean_droplet_action", "DigitalOcean Droplet Action",
			"Perform a power or configuration action on a droplet.",
			tools.Mutating, a.dropletAction),
		tools.New("digitalocean_list_domains", "List DigitalOcean Domains",
			"List domains managed by DigitalOcean DNS.",
			tools.ReadOnly, a.listDomains),
		tools.New("digitalocean_list_domain_records", "List DNS Records",
			"List DNS records for a domain, optionally filtered by type.",
			tools.ReadOnly, a.listDomainRecords),
		tools.New("digitalocean_create_domain_record", "Create DNS Record",
			"Create a DNS record for a domain.",
			tools.Mutating, a.createDomainRecord),
		tools.New("digitalocean_update_domain_record", "Update DNS Record",
			"Update an existing DNS record. Only the fields provided are changed.",
			tools.Mutating, a.updateDomainRecord),
		tools.New("digitalocean_delete_domain_record", "Delete DNS Record",
			"Delete a DNS record.",
			tools.Destructive, a.deleteDomainRecord),
		tools.New("digitalocean_list_firewalls", "List DigitalOcean Firewalls",
			"List cloud firewalls with rule counts.",
			tools.ReadOnly, a.listFirewalls),
		tools.New("digitalocean_create_firewall", "Create DigitalOcean Firewall",
			heredoc.Doc(`
				Create a cloud firewall.

				inbound_rules and outbound_rules are JSON arrays, for example:
				[{"protocol":"tcp","ports":"22","sources":{"addresses":["10.0.0.0/8"]}}]
				Outbound rules use "destinations" instead of "sources".
			`),
			tools.Mutating, a.createFirewall),
		tools.New("digitalocean_list_kubernetes_clusters", "List Kubernetes Clusters",
			"List DigitalOcean Kubernetes (DOKS) clusters.",
			tools.ReadOnly, a.listKubernetesClusters),
		tools.New("digitalocean_get_kubernetes_cluster", "Get Kubernetes Cluster",
			"Get details of a Kubernetes cluster.",
			tools.ReadOnly, a.getKubernetesCluster),
		tools.New("digitalocean_list_database_clusters", "List Database Clusters",
			"List managed database clusters (PostgreSQL, MySQL, Redis, MongoDB, Kafka).",
			tools.ReadOnly, a.listDatabaseClusters),
		tools.New("digitalocean_get_database_cluster", "Get Database Cluster",
			"Get details of a managed database cluster including connection info.",
			tools.ReadOnly, a.getDatabaseCluster),
		tools.New("digitalocean_list_volumes", "List DigitalOcean Volumes",
			"List block storage volumes.",
			tools.ReadOnly, a.listVolumes),
		tools.New("digitalocean_list_load_balancers", "List Load Balancers",
			"List load balancers.",
			tools.ReadOnly, a.listLoadBalancers),
		tools.New("digitalocean_list_projects", "List DigitalOcean Projects",
			"List projects.",
			tools.ReadOnly, a.listProjects),
		tools.New("digitalocean_list_ssh_keys", "List SSH Keys",
			"List SSH keys on the account.",
			tools.ReadOnly, a.listSSHKeys),
		tools.New("digitalocean_list_vpcs", "List DigitalOcean VPCs",
			"List VPCs.",
			tools.ReadOnly, a.listVPCs),
		tools.New("digitalocean_list_snapshots", "List DigitalOcean Snapshots",
			"List droplet and volume snapshots across all pages.",
			tools.ReadOnly, a.listSnapshots),
		tools.New("digitalocean_list_tags", "List DigitalOcean Tags",
			"List tags with resource counts.",
			tools.ReadOnly, a.listTags),
	}
}

func perPage(n int) url.Values {
	return url.Values{"per_page": {strconv.Itoa(n)}}
}

func (a *account) getAccount(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/account", nil, nil)
		if err != nil {
			return nil, err
		}
		acct := data["account"]
		return map[string]any{
			"email":             tools.Str(tools.Get(acct, "email")),
			"uuid":              tools.Str(tools.Get(acct, "uuid")),
			"droplet_limit":     tools.Get(acct, "droplet_limit"),
			"floating_ip_limit": tools.Get(acct, "floating_ip_limit"),
			"volume_limit":      tools.Get(acct, "volume_limit"),
			"status":            tools.Str(tools.Get(acct, "status")),
			"team":              tools.Str(tools.Get(acct, "team", "name")),
		}, nil
	})
}

func (a *account) listRegions(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/regions", perPage(maxPerPage), nil)
		if err != nil {
			return nil, err
		}
		regions := []map[string]any{}
		for _, r := range tools.List(data["regions"]) {
			if tools.Get(r, "available") != true {
				continue
			}
			sizes := list(tools.Get(r, "sizes"))
			regions = append(regions, map[string]any{
				"slug":     tools.Str(tools.Get(r, "slug")),
				"name":     tools.Str(tools.Get(r, "name")),
				"features": list(tools.Get(r, "features")),
				"sizes":    sizes[:min(5, len(sizes))],
			})
		}
		return map[string]any{"regions": regions}, nil
	})
}

func (a *account) listSizes(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/sizes", perPage(maxPerPage), nil)
		if err != nil {
			return nil, err
		}
		sizes := []map[string]any{}
		for _, s := range tools.List(data["sizes"]) {
			if tools.Get(s, "available") != true {
				continue
			}
			sizes = append(sizes, map[string]any{
				"slug":          tools.Str(tools.Get(s, "slug")),
				"description":   tools.Str(tools.Get(s, "description")),
				"vcpus":         tools.Get(s, "vcpus"),
				"memory_mb":     tools.Get(s, "memory"),
				"disk_gb":       tools.Get(s, "disk"),
				"transfer_tb":   tools.Get(s, "transfer"),
				"price_monthly": tools.Get(s, "price_monthly"),
				"price_hourly":  tools.Get(s, "price_hourly"),
				"regions":       list(tools.Get(s, "regions")),
			})
		}
		return map[string]any{"sizes": sizes}, nil
	})
}

func (a *account) listDroplets(ctx context.Context, in listDropletsArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		page := max(tools.Default(in.Page, 1), 1)
		q := perPage(tools.Clamp(tools.Default(in.PerPage, 50), 1, maxPerPage))
		q.Set("page", strconv.Itoa(page))
		if in.TagName != "" {
			q.Set("tag_name", in.TagName)
		}
		data, err := c.Object(ctx, http.MethodGet, "/droplets", q, nil)
		if err != nil {
			return nil, err
		}
		droplets := mapEach(data["droplets"], dropletSummary)
		total := any(len(droplets))
		if t := tools.Get(data, "meta", "total"); t != nil {
			total = t
		}
		return map[string]any{"total": total, "page": page, "droplets": droplets}, nil
	})
}

func (a *account) getDroplet(ctx context.Context, in dropletArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, fmt.Sprintf("/droplets/%d", in.DropletID), nil, nil)
		if err != nil {
			return nil, err
		}
		d := data["droplet"]
		out := dropletSummary(d)
		out["features"] = list(tools.Get(d, "features"))
		out["backup_ids"] = list(tools.Get(d, "backup_ids"))
		out["snapshot_ids"] = list(tools.Get(d, "snapshot_ids"))
		out["volume_ids"] = list(tools.Get(d, "volume_ids"))
		out["kernel"] = tools.Get(d, "kernel")
		return out, nil
	})
}

func (a *account) createDroplet(ctx context.Context, in createDropletArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		monitoring := in.Monitoring == nil || *in.Monitoring
		body := map[string]any{
			"name": in.Name, "region": in.Region, "size": in.Size, "image": in.Image,
			"backups": in.Backups, "monitoring": monitoring,
		}
		if keys := tools.SplitCSV(in.SSHKeys); len(keys) > 0 {
			ids := make([]any, 0, len(keys))
			for _, k := range keys {
				if n, err := strconv.ParseInt(k, 10, 64); err == nil {
					ids = append(ids, n)
				} else {
					ids = append(ids, k)
				}
			}
			body["ssh_keys"] = ids
		}
		if in.VPCUUID != "" {
			body["vpc_uuid"] = in.VPCUUID
		}
		if tags := tools.SplitCSV(in.Tags); len(tags) > 0 {
			body["tags"] = tags
		}
		if in.UserData != "" {
			body["user_data"] = in.UserData
		}

		data, err := c.Object(ctx, http.MethodPost, "/droplets", nil, body)
		if err != nil {
			return nil, err
		}
		d := data["droplet"]
		region := tools.Str(tools.Get(d, "region", "slug"))
		if region == "" {
			region = in.Region
		}
		size := tools.Str(tools.Get(d, "size_slug"))
		if size == "" {
			size = in.Size
		}
		return map[string]any{
			"id":      tools.Get(d, "id"),
			"name":    tools.Get(d, "name"),
			"status":  tools.Get(d, "status"),
			"region":  region,
			"size":    size,
			"message": fmt.Sprintf("Droplet '%s' creation initiated. Use digitalocean_get_droplet to check status.", in.Name),
		}, nil
	})
}

func (a *account) deleteDroplet(ctx context.Context, in dropletArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		if _, err := c.Do(ctx, http.MethodDelete, fmt.Sprintf("/droplets/%d", in.DropletID), nil, nil); err != nil {
			return nil, err
		}
		return map[string]any{"status": "success", "message": fmt.Sprintf("Droplet %d deleted.", in.DropletID)}, nil
	})
}

func (a *account) dropletAction(ctx context.Context, in dropletActionArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		if !slices.Contains(dropletActions, in.Action) {
			return tools.Errorf("Invalid action '%s'. Valid: %s", in.Action, strings.Join(dropletActions, ", ")), nil
		}
		data, err := c.Object(ctx, http.MethodPost, fmt.Sprintf("/droplets/%d/actions", in.DropletID), nil,
			map[string]any{"type": in.Action})
		if err != nil {
			return nil, err
		}
		act := data["action"]
		return map[string]any{
			"action_id":  tools.Get(act, "id"),
			"type":       tools.Get(act, "type"),
			"status":     tools.Get(act, "status"),
			"started_at": tools.Get(act, "started_at"),
			"droplet_id": in.DropletID,
		}, nil
	})
}

func (a *account) listDomains(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/domains", perPage(maxPerPage), nil)
		if err != nil {
			return nil, err
		}
		domains := mapEach(data["domains"], func(d any) map[string]any {
			zone := tools.Str(tools.Get(d, "zone_file"))
			return map[string]any{
				"name":      tools.Str(tools.Get(d, "name")),
				"ttl":       tools.Get(d, "ttl"),
				"zone_file": zone[:min(200, len(zone))],
			}
		})
		return map[string]any{"total": len(domains), "domains": domains}, nil
	})
}

func (a *account) listDomainRecords(ctx context.Context, in domainRecordsArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		q := perPage(maxPerPage)
		if in.RecordType != "" {
			q.Set("type", strings.ToUpper(in.RecordType))
		}
		data, err := c.Object(ctx, http.MethodGet, "/domains/"+url.PathEscape(in.DomainName)+"/records", q, nil)
		if err != nil {
			return nil, err
		}
		records := mapEach(data["domain_records"], func(r any) map[string]any {
			return tools.Pick(r, "id", "type", "name", "data", "priority", "port", "ttl", "weight")
		})
		return map[string]any{"domain": in.DomainName, "total": len(records), "records": records}, nil
	})
}

func recordResult(data map[string]any, message string) map[string]any {
	rec := data["domain_record"]
	return map[string]any{
		"id":      tools.Get(rec, "id"),
		"type":    tools.Get(rec, "type"),
		"name":    tools.Get(rec, "name"),
		"data":    tools.Get(rec, "data"),
		"ttl":     tools.Get(rec, "ttl"),
		"message": message,
	}
}

func (a *account) createDomainRecord(ctx context.Context, in createRecordArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		typ := strings.ToUpper(in.RecordType)
		body := map[string]any{"type": typ, "name": in.Name, "data": in.Data, "ttl": tools.Default(in.TTL, 1800)}
		if typ == "MX" || typ == "SRV" {
			body["priority"] = in.Priority
		}
		if typ == "SRV" {
			body["port"] = in.Port
			body["weight"] = in.Weight
		}
		data, err := c.Object(ctx, http.MethodPost, "/domains/"+url.PathEscape(in.DomainName)+"/records", nil, body)
		if err != nil {
			return nil, err
		}
		return recordResult(data, "DNS record created."), nil
	})
}

func (a *account) updateDomainRecord(ctx context.Context, in updateRecordArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		body := map[string]any{}
		if in.RecordType != "" {
			body["type"] = strings.ToUpper(in.RecordType)
		}
		if in.Name != "" {
			body["name"] = in.Name
		}
		if in.Data != "" {
			body["data"] = in.Data
		}
		if in.Priority != nil && *in.Priority >= 0 {
			body["priority"] = *in.Priority
		}
		if in.TTL != nil && *in.TTL >= 0 {
			body["ttl"] = *in.TTL
		}
		if len(body) == 0 {
			return tools.Errorf("No fields to update. Provide at least one of: record_type, name, data, priority, ttl."), nil
		}
		path := fmt.Sprintf("/domains/%s/records/%d", url.PathEscape(in.DomainName), in.RecordID)
		data, err := c.Object(ctx, http.MethodPut, path, nil, body)
		if err != nil {
			return nil, err
		}
		return recordResult(data, "DNS record updated."), nil
	})
}

func (a *account) deleteDomainRecord(ctx context.Context, in deleteRecordArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		path := fmt.Sprintf("/domains/%s/records/%d", url.PathEscape(in.DomainName), in.RecordID)
		if _, err := c.Do(ctx, http.MethodDelete, path, nil, nil); err != nil {
			return nil, err
		}
		return map[string]any{"status": "success", "message": fmt.Sprintf("DNS record %d deleted.", in.RecordID)}, nil
	})
}

func (a *account) listFirewalls(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/firewalls", perPage(maxPerPage), nil)
		if err != nil {
			return nil, err
		}
		firewalls := mapEach(data["firewalls"], func(fw any) map[string]any {
			return map[string]any{
				"id":                   tools.Str(tools.Get(fw, "id")),
				"name":                 tools.Str(tools.Get(fw, "name")),
				"status":               tools.Str(tools.Get(fw, "status")),
				"droplet_ids":          list(tools.Get(fw, "droplet_ids")),
				"tags":                 list(tools.Get(fw, "tags")),
				"inbound_rules_count":  len(tools.List(tools.Get(fw, "inbound_rules"))),
				"outbound_rules_count": len(tools.List(tools.Get(fw, "outbound_rules"))),
				"created_at":           tools.Str(tools.Get(fw, "created_at")),
			}
		})
		return map[string]any{"firewalls": firewalls}, nil
	})
}

func (a *account) createFirewall(ctx context.Context, in createFirewallArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		body := map[string]any{"name": in.Name}
		for key, raw := range map[string]string{"inbound_rules": in.InboundRules, "outbound_rules": in.OutboundRules} {
			if raw == "" {
				continue
			}
			var rules any
			if err := json.Unmarshal([]byte(raw), &rules); err != nil {
				return tools.Errorf("Invalid JSON in rules: %v", err), nil
			}
			body[key] = rules
		}
		if ids := tools.SplitCSV(in.DropletIDs); len(ids) > 0 {
			nums := make([]int64, 0, len(ids))
			for _, id := range ids {
				n, err := strconv.ParseInt(id, 10, 64)
				if err != nil {
					return tools.Errorf("Invalid droplet ID %q", id), nil
				}
				nums = append(nums, n)
			}
			body["droplet_ids"] = nums
		}
		if tags := tools.SplitCSV(in.Tags); len(tags) > 0 {
			body["tags"] = tags
		}
		data, err := c.Object(ctx, http.MethodPost, "/firewalls", nil, body)
		if err != nil {
			return nil, err
		}
		fw := data["firewall"]
		return map[string]any{
			"id":      tools.Get(fw, "id"),
			"name":    tools.Get(fw, "name"),
			"status":  tools.Get(fw, "status"),
			"message": "Firewall created.",
		}, nil
	})
}

func (a *account) listKubernetesClusters(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/kubernetes/clusters", perPage(100), nil)
		if err != nil {
			return nil, err
		}
		return map[string]any{"clusters": mapEach(data["kubernetes_clusters"], kubernetesSummary)}, nil
	})
}

func (a *account) getKubernetesCluster(ctx context.Context, in idArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/kubernetes/clusters/"+url.PathEscape(in.ID), nil, nil)
		if err != nil {
			return nil, err
		}
		return kubernetesSummary(data["kubernetes_cluster"]), nil
	})
}

func (a *account) listDatabaseClusters(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/databases", perPage(100), nil)
		if err != nil {
			return nil, err
		}
		return map[string]any{"database_clusters": mapEach(data["databases"], databaseSummary)}, nil
	})
}

func (a *account) getDatabaseCluster(ctx context.Context, in idArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/databases/"+url.PathEscape(in.ID), nil, nil)
		if err != nil {
			return nil, err
		}
		db := data["database"]
		out := databaseSummary(db)
		out["connection"] = tools.Get(db, "connection")
		out["private_connection"] = tools.Get(db, "private_connection")
		return out, nil
	})
}

func (a *account) listVolumes(ctx context.Context, in regionArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		q := perPage(maxPerPage)
		if in.Region != "" {
			q.Set("region", in.Region)
		}
		data, err := c.Object(ctx, http.MethodGet, "/volumes", q, nil)
		if err != nil {
			return nil, err
		}
		volumes := mapEach(data["volumes"], func(v any) map[string]any {
			out := tools.Pick(v, "id", "name", "size_gigabytes", "description", "filesystem_type", "filesystem_label", "created_at")
			out["region"] = tools.Str(tools.Get(v, "region", "slug"))
			out["droplet_ids"] = list(tools.Get(v, "droplet_ids"))
			out["tags"] = list(tools.Get(v, "tags"))
			return out
		})
		return map[string]any{"volumes": volumes}, nil
	})
}

func (a *account) listLoadBalancers(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/load_balancers", perPage(100), nil)
		if err != nil {
			return nil, err
		}
		lbs := mapEach(data["load_balancers"], func(lb any) map[string]any {
			out := tools.Pick(lb, "id", "name", "ip", "status", "size", "size_unit", "tag",
				"forwarding_rules", "health_check", "created_at")
			out["region"] = tools.Str(tools.Get(lb, "region", "slug"))
			out["droplet_ids"] = list(tools.Get(lb, "droplet_ids"))
			return out
		})
		return map[string]any{"load_balancers": lbs}, nil
	})
}

func (a *account) listProjects(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/projects", perPage(100), nil)
		if err != nil {
			return nil, err
		}
		projects := mapEach(data["projects"], func(p any) map[string]any {
			return tools.Pick(p, "id", "name", "description", "purpose", "environment", "is_default", "created_at")
		})
		return map[string]any{"projects": projects}, nil
	})
}

func (a *account) listSSHKeys(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/account/keys", perPage(maxPerPage), nil)
		if err != nil {
			return nil, err
		}
		keys := mapEach(data["ssh_keys"], func(k any) map[string]any {
			pub := tools.Str(tools.Get(k, "public_key"))
			return map[string]any{
				"id":          tools.Get(k, "id"),
				"name":        tools.Str(tools.Get(k, "name")),
				"fingerprint": tools.Str(tools.Get(k, "fingerprint")),
				"public_key":  pub[:min(80, len(pub))] + "...",
			}
		})
		return map[string]any{"ssh_keys": keys}, nil
	})
}

func (a *account) listVPCs(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/vpcs", perPage(maxPerPage), nil)
		if err != nil {
			return nil, err
		}
		vpcs := mapEach(data["vpcs"], func(v any) map[string]any {
			return tools.Pick(v, "id", "name", "description", "region", "ip_range", "default", "created_at")
		})
		return map[string]any{"vpcs": vpcs}, nil
	})
}

func (a *account) listSnapshots(ctx context.Context, in snapshotArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		q := url.Values{}
		if in.ResourceType != "" {
			q.Set("resource_type", in.ResourceType)
		}
		items, err := c.Paginate(ctx, "/snapshots", "snapshots", q, maxPerPage, 10)
		if err != nil {
			return nil, err
		}
		snapshots := mapEach(items, func(s any) map[string]any {
			out := tools.Pick(s, "id", "name", "resource_type", "resource_id", "size_gigabytes", "min_disk_size", "created_at")
			out["regions"] = list(tools.Get(s, "regions"))
			return out
		})
		return map[string]any{"total": len(snapshots), "snapshots": snapshots}, nil
	})
}

func (a *account) listTags(ctx context.Context, _ noArgs) string {
	return a.run(ctx, func(c *httpapi.Client) (any, error) {
		data, err := c.Object(ctx, http.MethodGet, "/tags", perPage(maxPerPage), nil)
		if err != nil {
			return nil, err
		}
		tags := mapEach(data["tags"], func(t any) map[string]any {
			return map[string]any{
				"name":      tools.Str(tools.Get(t, "name")),
				"resources": tools.Int(tools.Get(t, "resources", "count")),
			}
		})
		return map[string]any{"tags": tags}, nil
	})
}
