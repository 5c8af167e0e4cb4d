package aws

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/crowdit/crowdmcp/pkg/tools"
)

const accountDesc = "AWS account: prod (default), nonprod or admin"

type (
	accountArgs struct {
		Account string `json:"account,omitempty" jsonschema:"AWS account: prod (default), nonprod or admin"`
	}

	regionArgs struct {
		Account string `json:"account,omitempty" jsonschema:"AWS account: prod (default), nonprod or admin"`
		Region  string `json:"region,omitempty" jsonschema:"AWS region (default ap-southeast-2)"`
	}

	ec2ListArgs struct {
		Account     string `json:"account,omitempty" jsonschema:"AWS account: prod (default), nonprod or admin"`
		Region      string `json:"region,omitempty" jsonschema:"AWS region (default ap-southeast-2)"`
		StateFilter string `json:"state_filter,omitempty" jsonschema:"running, stopped, terminated or all"`
	}

	ec2ActionArgs struct {
		InstanceIDs string `json:"instance_ids" jsonschema:"Comma-separated instance IDs"`
		Action      string `json:"action" jsonschema:"start, stop or reboot"`
		Account     string `json:"account,omitempty" jsonschema:"AWS account: prod (default), nonprod or admin"`
		Region      string `json:"region,omitempty" jsonschema:"AWS region"`
	}

	vpcArgs struct {
		Account        string `json:"account,omitempty" jsonschema:"AWS account: prod (default), nonprod or admin"`
		Region         string `json:"region,omitempty" jsonschema:"AWS region"`
		IncludeSubnets *bool  `json:"include_subnets,omitempty" jsonschema:"Include subnets for each VPC (default true)"`
	}

	securityGroupArgs struct {
		Account string `json:"account,omitempty" jsonschema:"AWS account: prod (default), nonprod or admin"`
		Region  string `json:"region,omitempty" jsonschema:"AWS region"`
		VPCID   string `json:"vpc_id,omitempty" jsonschema:"Filter by VPC ID"`
	}

	costArgs struct {
		Account string `json:"account,omitempty" jsonschema:"AWS account: prod (default), nonprod or admin"`
		Days    int    `json:"days,omitempty" jsonschema:"Number of days to analyze, 1-90 (default 30)"`
		GroupBy string `json:"group_by,omitempty" jsonschema:"SERVICE (default), REGION, LINKED_ACCOUNT or USAGE_TYPE"`
	}
)

// Tools returns the aws_* tools.
func (p *Provider) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("aws_get_caller_identity", "Get AWS Caller Identity",
			"Verify which AWS account and identity is active. "+accountDesc+".",
			tools.ReadOnly, p.callerIdentity),
		tools.New("aws_list_ec2_instances", "List EC2 Instances",
			"List EC2 instances with name, state, type and IPs.",
			tools.ReadOnly, p.listEC2),
		tools.New("aws_ec2_action", "EC2 Instance Action",
			"Start, stop or reboot EC2 instances.",
			tools.Annotations{Idempotent: true, OpenWorld: true}, p.ec2Action),
		tools.New("aws_list_rds_instances", "List RDS Instances",
			"List RDS database instances with engine, status and size.",
			tools.ReadOnly, p.listRDS),
		tools.New("aws_list_s3_buckets", "List S3 Buckets",
			"List all S3 buckets in an account.",
			tools.ReadOnly, p.listBuckets),
		tools.New("aws_list_vpcs", "List VPCs",
			"List VPCs and their subnets.",
			tools.ReadOnly, p.listVPCs),
		tools.New("aws_list_security_groups", "List Security Groups",
			"List security groups with inbound and outbound rules.",
			tools.ReadOnly, p.listSecurityGroups),
		tools.New("aws_list_lambda_functions", "List Lambda Functions",
			"List Lambda functions with runtime, memory and last modified.",
			tools.ReadOnly, p.listFunctions),
		tools.New("aws_get_cost_summary", "Get AWS Cost Summary",
			heredoc.Doc(`
				Get the AWS cost summary for the last N days, grouped by service.
				Cost Explorer must be enabled in the target account.
			`),
			tools.ReadOnly, p.costSummary),
		tools.New("aws_run_command", "Run AWS CLI Command",
			heredoc.Doc(`
				Execute any AWS CLI command, without the leading "aws".

				The command runs with the selected account's credentials; role
				assumption for nonprod and admin is automatic. Examples:
				- ec2 describe-instances --filters Name=tag:Name,Values=web
				- s3 ls s3://my-bucket/prefix/
				- logs filter-log-events --log-group-name /aws/lambda/my-func --limit 20
			`),
			tools.Annotations{Destructive: true, OpenWorld: true}, p.runCommand),
	}
}

func tagName(tags []ec2types.Tag) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == "Name" {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (p *Provider) callerIdentity(ctx context.Context, in accountArgs) string {
	if !p.sessions.Configured(ctx) {
		return notConfigured
	}
	info, err := p.sessions.Account(in.Account)
	if err != nil {
		return tools.Error(err)
	}
	id, err := p.sessions.CallerIdentity(ctx, info.Alias)
	if err != nil {
		return awsError(err)
	}
	return fmt.Sprintf("# AWS Caller Identity — %s\n\n**Account:** %s\n**ARN:** `%s`\n**User ID:** %s\n**Region:** %s",
		info.Label(), aws.ToString(id.Account), aws.ToString(id.Arn), aws.ToString(id.UserId), p.sessions.Region(ctx))
}

func (p *Provider) listEC2(ctx context.Context, in ec2ListArgs) string {
	return p.with(ctx, in.Account, in.Region, func(t target) (string, error) {
		input := &ec2.DescribeInstancesInput{}
		if in.StateFilter != "" && in.StateFilter != "all" {
			input.Filters = []ec2types.Filter{{Name: aws.String("instance-state-name"), Values: []string{in.StateFilter}}}
		}

		var rows [][]string
		pager := ec2.NewDescribeInstancesPaginator(p.clients.EC2(t.cfg), input)
		for pager.HasMorePages() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return "", err
			}
			for _, r := range page.Reservations {
				for _, inst := range r.Instances {
					state, az := "", ""
					if inst.State != nil {
						state = string(inst.State.Name)
					}
					if inst.Placement != nil {
						az = aws.ToString(inst.Placement.AvailabilityZone)
					}
					rows = append(rows, []string{
						orDash(tagName(inst.Tags)), aws.ToString(inst.InstanceId), string(inst.InstanceType), state,
						orDash(aws.ToString(inst.PrivateIpAddress)), orDash(aws.ToString(inst.PublicIpAddress)), az,
					})
				}
			}
		}
		if len(rows) == 0 {
			return fmt.Sprintf("No EC2 instances found in %s (%s)", t.label(), t.region), nil
		}
		return fmt.Sprintf("# EC2 Instances — %s\n**Region:** %s\n\n%s\n\n**Total:** %d instance(s)",
			t.label(), t.region,
			tools.Table([]string{"Name", "Instance ID", "Type", "State", "Private IP", "Public IP", "AZ"}, rows),
			len(rows)), nil
	})
}

func (p *Provider) ec2Action(ctx context.Context, in ec2ActionArgs) string {
	return p.with(ctx, in.Account, in.Region, func(t target) (string, error) {
		ids := tools.SplitCSV(in.InstanceIDs)
		client := p.clients.EC2(t.cfg)
		var (
			verb string
			err  error
		)
		switch strings.ToLower(in.Action) {
		case "start":
			verb = "Starting"
			_, err = client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: ids})
		case "stop":
			verb = "Stopping"
			_, err = client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: ids})
		case "reboot":
			verb = "Rebooting"
			_, err = client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: ids})
		default:
			return tools.Errorf("Invalid action '%s'. Use: start, stop, reboot", in.Action), nil
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %d instance(s) in %s: %s\n\nUse aws_list_ec2_instances to check status.",
			verb, len(ids), t.label(), strings.Join(ids, ", ")), nil
	})
}

func (p *Provider) listRDS(ctx context.Context, in regionArgs) string {
	return p.with(ctx, in.Account, in.Region, func(t target) (string, error) {
		var dbs []rdstypes.DBInstance
		pager := rds.NewDescribeDBInstancesPaginator(p.clients.RDS(t.cfg), &rds.DescribeDBInstancesInput{})
		for pager.HasMorePages() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return "", err
			}
			dbs = append(dbs, page.DBInstances...)
		}
		if len(dbs) == 0 {
			return fmt.Sprintf("No RDS instances found in %s (%s)", t.label(), t.region), nil
		}

		rows := make([][]string, 0, len(dbs))
		for _, db := range dbs {
			endpoint := "-"
			if db.Endpoint != nil && db.Endpoint.Address != nil {
				endpoint = *db.Endpoint.Address
			}
			if len(endpoint) > 40 {
				endpoint = endpoint[:37] + "..."
			}
			multiAZ := "No"
			if aws.ToBool(db.MultiAZ) {
				multiAZ = "Yes"
			}
			rows = append(rows, []string{
				aws.ToString(db.DBInstanceIdentifier),
				strings.TrimSpace(orDash(aws.ToString(db.Engine)) + " " + aws.ToString(db.EngineVersion)),
				orDash(aws.ToString(db.DBInstanceClass)),
				orDash(aws.ToString(db.DBInstanceStatus)),
				fmt.Sprintf("%d GB", aws.ToInt32(db.AllocatedStorage)),
				multiAZ,
				endpoint,
			})
		}
		return fmt.Sprintf("# RDS Instances — %s\n**Region:** %s\n\n%s\n\n**Total:** %d instance(s)",
			t.label(), t.region,
			tools.Table([]string{"DB ID", "Engine", "Class", "Status", "Storage", "Multi-AZ", "Endpoint"}, rows),
			len(dbs)), nil
	})
}

func (p *Provider) listBuckets(ctx context.Context, in accountArgs) string {
	return p.with(ctx, in.Account, "", func(t target) (string, error) {
		out, err := p.clients.S3(t.cfg).ListBuckets(ctx, &s3.ListBucketsInput{})
		if err != nil {
			return "", err
		}
		if len(out.Buckets) == 0 {
			return "No S3 buckets found in " + t.label(), nil
		}
		buckets := slices.Clone(out.Buckets)
		sort.Slice(buckets, func(i, j int) bool { return aws.ToString(buckets[i].Name) < aws.ToString(buckets[j].Name) })

		rows := make([][]string, 0, len(buckets))
		for _, b := range buckets {
			created := "-"
			if b.CreationDate != nil {
				created = b.CreationDate.UTC().Format("2006-01-02 15:04")
			}
			rows = append(rows, []string{aws.ToString(b.Name), created})
		}
		return fmt.Sprintf("# S3 Buckets — %s\n\n%s\n\n**Total:** %d bucket(s)",
			t.label(), tools.Table([]string{"Bucket Name", "Created"}, rows), len(buckets)), nil
	})
}

func (p *Provider) listVPCs(ctx context.Context, in vpcArgs) string {
	return p.with(ctx, in.Account, in.Region, func(t target) (string, error) {
		client := p.clients.EC2(t.cfg)
		out, err := client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{})
		if err != nil {
			return "", err
		}
		if len(out.Vpcs) == 0 {
			return fmt.Sprintf("No VPCs found in %s (%s)", t.label(), t.region), nil
		}

		includeSubnets := in.IncludeSubnets == nil || *in.IncludeSubnets
		byVPC := map[string][]ec2types.Subnet{}
		if includeSubnets {
			subs, err := client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{})
			if err != nil {
				return "", err
			}
			for _, s := range subs.Subnets {
				id := aws.ToString(s.VpcId)
				byVPC[id] = append(byVPC[id], s)
			}
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# VPCs — %s\n**Region:** %s\n\n", t.label(), t.region)
		for _, vpc := range out.Vpcs {
			id := aws.ToString(vpc.VpcId)
			name := tagName(vpc.Tags)
			if name == "" {
				name = id
			}
			isDefault := "No"
			if aws.ToBool(vpc.IsDefault) {
				isDefault = "Yes"
			}
			fmt.Fprintf(&b, "## %s\n- **VPC ID:** `%s`\n- **CIDR:** %s\n- **State:** %s\n- **Default:** %s\n",
				name, id, aws.ToString(vpc.CidrBlock), vpc.State, isDefault)

			subs := byVPC[id]
			if len(subs) > 0 {
				sort.Slice(subs, func(i, j int) bool {
					return aws.ToString(subs[i].AvailabilityZone) < aws.ToString(subs[j].AvailabilityZone)
				})
				fmt.Fprintf(&b, "- **Subnets (%d):**\n", len(subs))
				for _, s := range subs {
					public := ""
					if aws.ToBool(s.MapPublicIpOnLaunch) {
						public = " (public)"
					}
					fmt.Fprintf(&b, "  - `%s` %s — %s (%s, %d IPs free)%s\n",
						aws.ToString(s.SubnetId), tagName(s.Tags), aws.ToString(s.CidrBlock),
						aws.ToString(s.AvailabilityZone), aws.ToInt32(s.AvailableIpAddressCount), public)
				}
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "**Total:** %d VPC(s)", len(out.Vpcs))
		return b.String(), nil
	})
}

// portRange renders a rule's protocol and ports; protocol -1 is all traffic.
func portRange(perm ec2types.IpPermission) (proto, ports string) {
	proto = orDash(aws.ToString(perm.IpProtocol))
	if proto == "-1" {
		return "All", "All"
	}
	from, to := "All", "All"
	if perm.FromPort != nil {
		from = strconv.Itoa(int(*perm.FromPort))
	}
	if perm.ToPort != nil {
		to = strconv.Itoa(int(*perm.ToPort))
	}
	if from == to {
		return proto, from
	}
	return proto, from + "-" + to
}

func (p *Provider) listSecurityGroups(ctx context.Context, in securityGroupArgs) string {
	return p.with(ctx, in.Account, in.Region, func(t target) (string, error) {
		input := &ec2.DescribeSecurityGroupsInput{}
		if in.VPCID != "" {
			input.Filters = []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{in.VPCID}}}
		}
		out, err := p.clients.EC2(t.cfg).DescribeSecurityGroups(ctx, input)
		if err != nil {
			return "", err
		}
		if len(out.SecurityGroups) == 0 {
			return "No security groups found in " + t.label(), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# Security Groups — %s\n\n", t.label())
		for _, sg := range out.SecurityGroups {
			fmt.Fprintf(&b, "## %s (`%s`)\n- **VPC:** %s\n- **Description:** %s\n",
				aws.ToString(sg.GroupName), aws.ToString(sg.GroupId),
				orDash(aws.ToString(sg.VpcId)), orDash(aws.ToString(sg.Description)))

			if len(sg.IpPermissions) > 0 {
				b.WriteString("- **Inbound:**\n")
				for _, rule := range sg.IpPermissions {
					proto, ports := portRange(rule)
					var sources []string
					for _, r := range rule.IpRanges {
						sources = append(sources, aws.ToString(r.CidrIp))
					}
					for _, g := range rule.UserIdGroupPairs {
						sources = append(sources, aws.ToString(g.GroupId))
					}
					from := strings.Join(sources, ", ")
					if from == "" {
						from = "N/A"
					}
					fmt.Fprintf(&b, "  - %s port %s from %s\n", proto, ports, from)
				}
			}
			if len(sg.IpPermissionsEgress) > 0 {
				b.WriteString("- **Outbound:**\n")
				for _, rule := range sg.IpPermissionsEgress {
					proto, ports := portRange(rule)
					var targets []string
					for _, r := range rule.IpRanges {
						targets = append(targets, aws.ToString(r.CidrIp))
					}
					to := strings.Join(targets, ", ")
					if to == "" {
						to = "All"
					}
					fmt.Fprintf(&b, "  - %s port %s to %s\n", proto, ports, to)
				}
			}
			b.WriteString("\n")
		}
		return strings.TrimRight(b.String(), "\n"), nil
	})
}

func (p *Provider) listFunctions(ctx context.Context, in regionArgs) string {
	return p.with(ctx, in.Account, in.Region, func(t target) (string, error) {
		var fns []lambdatypes.FunctionConfiguration
		pager := lambda.NewListFunctionsPaginator(p.clients.Lambda(t.cfg), &lambda.ListFunctionsInput{})
		for pager.HasMorePages() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return "", err
			}
			fns = append(fns, page.Functions...)
		}
		if len(fns) == 0 {
			return fmt.Sprintf("No Lambda functions found in %s (%s)", t.label(), t.region), nil
		}
		sort.Slice(fns, func(i, j int) bool { return aws.ToString(fns[i].FunctionName) < aws.ToString(fns[j].FunctionName) })

		rows := make([][]string, 0, len(fns))
		for _, fn := range fns {
			modified := aws.ToString(fn.LastModified)
			modified = modified[:min(19, len(modified))]
			rows = append(rows, []string{
				aws.ToString(fn.FunctionName), orDash(string(fn.Runtime)),
				strconv.Itoa(int(aws.ToInt32(fn.MemorySize))), strconv.Itoa(int(aws.ToInt32(fn.Timeout))),
				orDash(modified),
			})
		}
		return fmt.Sprintf("# Lambda Functions — %s\n**Region:** %s\n\n%s\n\n**Total:** %d function(s)",
			t.label(), t.region,
			tools.Table([]string{"Function Name", "Runtime", "Memory (MB)", "Timeout (s)", "Last Modified"}, rows),
			len(fns)), nil
	})
}

var usd = message.NewPrinter(language.English)

func (p *Provider) costSummary(ctx context.Context, in costArgs) string {
	return p.with(ctx, in.Account, costRegion, func(t target) (string, error) {
		days := tools.Clamp(tools.Default(in.Days, 30), 1, 90)
		groupBy := strings.ToUpper(in.GroupBy)
		if groupBy == "" {
			groupBy = "SERVICE"
		}
		now := time.Now().UTC()
		start, end := now.AddDate(0, 0, -days).Format(time.DateOnly), now.Format(time.DateOnly)

		out, err := p.clients.Cost(t.cfg).GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
			TimePeriod:  &cetypes.DateInterval{Start: aws.String(start), End: aws.String(end)},
			Granularity: cetypes.GranularityMonthly,
			Metrics:     []string{"UnblendedCost"},
			GroupBy:     []cetypes.GroupDefinition{{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String(groupBy)}},
		})
		if err != nil {
			return "", err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# AWS Cost Summary — %s\n\n**Period:** %s to %s (%d days)\n**Grouped by:** %s\n\n",
			t.label(), start, end, days, groupBy)

		costs := map[string]float64{}
		for _, period := range out.ResultsByTime {
			for _, g := range period.Groups {
				if len(g.Keys) == 0 {
					continue
				}
				amount, _ := strconv.ParseFloat(aws.ToString(g.Metrics["UnblendedCost"].Amount), 64)
				costs[g.Keys[0]] += amount
			}
		}
		if len(costs) == 0 {
			return b.String() + "No cost data available for this period.", nil
		}

		keys := make([]string, 0, len(costs))
		for k := range costs {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return costs[keys[i]] > costs[keys[j]] })

		var rows [][]string
		total := 0.0
		for _, k := range keys {
			if costs[k] < 0.01 {
				continue
			}
			total += costs[k]
			rows = append(rows, []string{k, usd.Sprintf("$%.2f", costs[k])})
		}
		rows = append(rows, []string{"**TOTAL**", usd.Sprintf("**$%.2f**", total)})
		header := cases.Title(language.English).String(strings.ReplaceAll(groupBy, "_", " "))
		b.WriteString(tools.Table([]string{header, "Cost (USD)"}, rows))
		return b.String(), nil
	})
}
