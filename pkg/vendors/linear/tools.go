package linear

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/crowdit/crowdmcp/pkg/tools"
)

var stateTypes = []string{"triage", "backlog", "unstarted", "started", "completed", "cancelled"}

type (
	noArgs struct{}

	teamFilterArgs struct {
		TeamID string `json:"team_id,omitempty" jsonschema:"Only return entries for this team ID"`
	}

	searchArgs struct {
		Query      string `json:"query,omitempty" jsonschema:"Full-text search over issue title and description"`
		TeamID     string `json:"team_id,omitempty" jsonschema:"Filter by team ID"`
		AssigneeID string `json:"assignee_id,omitempty" jsonschema:"Filter by assignee user ID, or 'me' for the authenticated user"`
		StateName  string `json:"state_name,omitempty" jsonschema:"Filter by workflow state name, e.g. In Progress"`
		StateType  string `json:"state_type,omitempty" jsonschema:"Filter by state type: triage, backlog, unstarted, started, completed, cancelled"`
		Priority   *int   `json:"priority,omitempty" jsonschema:"Filter by priority: 0 none, 1 urgent, 2 high, 3 medium, 4 low"`
		LabelName  string `json:"label_name,omitempty" jsonschema:"Filter by label name"`
		ProjectID  string `json:"project_id,omitempty" jsonschema:"Filter by project ID"`
		First      int    `json:"first,omitempty" jsonschema:"Number of results, max 50 (default 25)"`
	}

	getIssueArgs struct {
		IssueID         string `json:"issue_id" jsonschema:"Issue UUID or identifier such as ENG-123"`
		IncludeComments bool   `json:"include_comments,omitempty" jsonschema:"Include the issue's comments"`
	}

	createIssueArgs struct {
		Title       string `json:"title" jsonschema:"Issue title"`
		TeamID      string `json:"team_id" jsonschema:"Team ID, from linear_list_teams"`
		Description string `json:"description,omitempty" jsonschema:"Markdown description"`
		AssigneeID  string `json:"assignee_id,omitempty" jsonschema:"User ID to assign"`
		StateID     string `json:"state_id,omitempty" jsonschema:"Workflow state ID, from linear_list_workflow_states"`
		Priority    *int   `json:"priority,omitempty" jsonschema:"Priority: 0 none, 1 urgent, 2 high, 3 medium, 4 low"`
		LabelIDs    string `json:"label_ids,omitempty" jsonschema:"Comma-separated label IDs"`
		ProjectID   string `json:"project_id,omitempty" jsonschema:"Project ID"`
		CycleID     string `json:"cycle_id,omitempty" jsonschema:"Cycle ID"`
		DueDate     string `json:"due_date,omitempty" jsonschema:"Due date (YYYY-MM-DD)"`
		Estimate    *int   `json:"estimate,omitempty" jsonschema:"Story point estimate"`
		ParentID    string `json:"parent_id,omitempty" jsonschema:"Parent issue ID, to create a sub-issue"`
	}

	updateIssueArgs struct {
		IssueID     string  `json:"issue_id" jsonschema:"Issue UUID or identifier such as ENG-123"`
		Title       *string `json:"title,omitempty" jsonschema:"New title"`
		Description *string `json:"description,omitempty" jsonschema:"New markdown description"`
		AssigneeID  *string `json:"assignee_id,omitempty" jsonschema:"New assignee user ID"`
		StateID     *string `json:"state_id,omitempty" jsonschema:"New workflow state ID"`
		Priority    *int    `json:"priority,omitempty" jsonschema:"New priority: 0 none, 1 urgent, 2 high, 3 medium, 4 low"`
		LabelIDs    *string `json:"label_ids,omitempty" jsonschema:"Comma-separated label IDs, replacing the existing labels"`
		ProjectID   *string `json:"project_id,omitempty" jsonschema:"Project ID"`
		CycleID     *string `json:"cycle_id,omitempty" jsonschema:"Cycle ID"`
		DueDate     *string `json:"due_date,omitempty" jsonschema:"Due date (YYYY-MM-DD)"`
		Estimate    *int    `json:"estimate,omitempty" jsonschema:"Story point estimate"`
	}

	commentArgs struct {
		IssueID string `json:"issue_id" jsonschema:"Issue UUID or identifier such as ENG-123"`
		Body    string `json:"body" jsonschema:"Markdown comment body"`
	}

	projectsArgs struct {
		First            int  `json:"first,omitempty" jsonschema:"Number of projects, max 50 (default 25)"`
		IncludeCompleted bool `json:"include_completed,omitempty" jsonschema:"Include completed and cancelled projects"`
	}

	cyclesArgs struct {
		TeamID           string `json:"team_id,omitempty" jsonschema:"Only return cycles for this team ID"`
		IncludeCompleted bool   `json:"include_completed,omitempty" jsonschema:"Include completed cycles"`
		First            int    `json:"first,omitempty" jsonschema:"Number of cycles, max 50 (default 10)"`
	}

	usersArgs struct {
		IncludeDisabled bool `json:"include_disabled,omitempty" jsonschema:"Include deactivated users"`
	}

	issueIDArgs struct {
		IssueID string `json:"issue_id" jsonschema:"Issue UUID or identifier such as ENG-123"`
	}
)

// Tools returns the linear_* tools.
func (p *Provider) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("linear_get_viewer", "Get Linear Authenticated User",
			"Get the authenticated Linear user and organization. Useful to verify the connection.",
			tools.ReadOnly, p.getViewer),
		tools.New("linear_list_teams", "List Linear Teams",
			"List teams with keys, members and workflow states. Team IDs are needed to create issues.",
			tools.ReadOnly, p.listTeams),
		tools.New("linear_list_workflow_states", "List Linear Workflow States",
			"List workflow states, optionally for one team. State IDs are needed to create or update issues.",
			tools.ReadOnly, p.listStates),
		tools.New("linear_search_issues", "Search Linear Issues",
			"Search issues by text, or filter by team, assignee, state, priority, label or project.",
			tools.ReadOnly, p.searchIssues),
		tools.New("linear_get_issue", "Get Linear Issue Details",
			"Get full details of an issue by UUID or identifier, optionally with comments.",
			tools.ReadOnly, p.getIssue),
		tools.New("linear_create_issue", "Create Linear Issue",
			"Create an issue in a team.",
			tools.Mutating, p.createIssue),
		tools.New("linear_update_issue", "Update Linear Issue",
			"Update fields of an existing issue. Only the fields given are changed.",
			tools.Annotations{Idempotent: true, OpenWorld: true}, p.updateIssue),
		tools.New("linear_add_comment", "Add Comment to Linear Issue",
			"Add a markdown comment to an issue.",
			tools.Mutating, p.addComment),
		tools.New("linear_list_projects", "List Linear Projects",
			"List projects with state, progress and lead. Completed and cancelled projects are hidden by default.",
			tools.ReadOnly, p.listProjects),
		tools.New("linear_list_cycles", "List Linear Cycles",
			"List cycles (sprints), active only by default.",
			tools.ReadOnly, p.listCycles),
		tools.New("linear_list_labels", "List Linear Labels",
			"List issue labels. Label IDs are needed to label issues.",
			tools.ReadOnly, p.listLabels),
		tools.New("linear_list_users", "List Linear Users",
			"List workspace users. User IDs are needed to assign issues.",
			tools.ReadOnly, p.listUsers),
		tools.New("linear_archive_issue", "Archive Linear Issue",
			"Archive an issue.",
			tools.Destructive, p.archiveIssue),
	}
}

func (p *Provider) getViewer(ctx context.Context, _ noArgs) string {
	var data struct {
		Viewer struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			Email        string `json:"email"`
			DisplayName  string `json:"displayName"`
			Active       bool   `json:"active"`
			Admin        bool   `json:"admin"`
			CreatedAt    string `json:"createdAt"`
			Organization ref    `json:"organization"`
		} `json:"viewer"`
	}
	return p.query(ctx, "getting Linear viewer", viewerQuery, nil, &data, func() string {
		v := data.Viewer
		return tools.JSON(map[string]any{
			"user": map[string]any{
				"id": v.ID, "name": v.Name, "email": v.Email, "displayName": v.DisplayName,
				"active": v.Active, "admin": v.Admin, "createdAt": v.CreatedAt,
			},
			"organization": map[string]any{
				"id": v.Organization.ID, "name": v.Organization.Name, "urlKey": v.Organization.URLKey,
			},
		})
	})
}

type stateNode struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Position float64 `json:"position"`
	Team     *ref    `json:"team,omitempty"`
}

func (p *Provider) listTeams(ctx context.Context, _ noArgs) string {
	var data struct {
		Teams nodes[struct {
			ID          string           `json:"id"`
			Name        string           `json:"name"`
			Key         string           `json:"key"`
			Description string           `json:"description"`
			Private     bool             `json:"private"`
			Members     nodes[ref]       `json:"members"`
			States      nodes[stateNode] `json:"states"`
		}] `json:"teams"`
	}
	return p.query(ctx, "listing Linear teams", teamsQuery, nil, &data, func() string {
		type teamState struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		}
		type team struct {
			ID          string      `json:"id"`
			Name        string      `json:"name"`
			Key         string      `json:"key"`
			Description string      `json:"description"`
			Private     bool        `json:"private"`
			MemberCount int         `json:"memberCount"`
			Members     []string    `json:"members"`
			States      []teamState `json:"states"`
		}
		teams := []team{}
		for _, t := range data.Teams.Nodes {
			out := team{ID: t.ID, Name: t.Name, Key: t.Key, Description: t.Description, Private: t.Private,
				MemberCount: len(t.Members.Nodes), Members: []string{}, States: []teamState{}}
			for _, m := range t.Members.Nodes {
				out.Members = append(out.Members, m.Name)
			}
			states := slices.Clone(t.States.Nodes)
			slices.SortStableFunc(states, func(a, b stateNode) int { return cmp.Compare(a.Position, b.Position) })
			for _, s := range states {
				out.States = append(out.States, teamState{ID: s.ID, Name: s.Name, Type: s.Type})
			}
			teams = append(teams, out)
		}
		return tools.JSON(map[string]any{"total": len(teams), "teams": teams})
	})
}

func (p *Provider) listStates(ctx context.Context, in teamFilterArgs) string {
	var data struct {
		WorkflowStates nodes[stateNode] `json:"workflowStates"`
	}
	return p.query(ctx, "listing workflow states", statesQuery, teamFilter(in.TeamID), &data, func() string {
		type state struct {
			ID       string  `json:"id"`
			Name     string  `json:"name"`
			Type     string  `json:"type"`
			Position float64 `json:"position"`
			Team     string  `json:"team"`
			TeamKey  string  `json:"teamKey"`
		}
		states := []state{}
		for _, s := range data.WorkflowStates.Nodes {
			out := state{ID: s.ID, Name: s.Name, Type: s.Type, Position: s.Position}
			if s.Team != nil {
				out.Team, out.TeamKey = s.Team.Name, s.Team.Key
			}
			states = append(states, out)
		}
		slices.SortStableFunc(states, func(a, b state) int {
			return cmp.Or(cmp.Compare(a.Team, b.Team), cmp.Compare(a.Position, b.Position))
		})
		return tools.JSON(map[string]any{"total": len(states), "states": states})
	})
}

// teamFilter returns {"filter": {"team": {"id": {"eq": id}}}}, or nil.
func teamFilter(teamID string) map[string]any {
	if teamID == "" {
		return nil
	}
	return map[string]any{"filter": map[string]any{"team": eq("id", teamID)}}
}

func eq(field string, v any) map[string]any {
	return map[string]any{field: map[string]any{"eq": v}}
}

func (p *Provider) searchIssues(ctx context.Context, in searchArgs) string {
	if in.StateType != "" && !slices.Contains(stateTypes, in.StateType) {
		return tools.Errorf("Invalid state_type '%s'. Use: %s", in.StateType, strings.Join(stateTypes, ", "))
	}
	first := tools.Clamp(tools.Default(in.First, 25), 1, 50)

	var data struct {
		SearchIssues nodes[issueNode] `json:"searchIssues"`
		Issues       nodes[issueNode] `json:"issues"`
	}
	doc := filterIssuesQuery
	vars := map[string]any{"first": first}
	if in.Query != "" {
		doc = searchIssuesQuery
		vars["query"] = in.Query
	} else if f := issueFilter(in); len(f) > 0 {
		vars["filter"] = f
	}

	return p.query(ctx, "searching Linear issues", doc, vars, &data, func() string {
		issues := []issueSummary{}
		for _, n := range append(data.SearchIssues.Nodes, data.Issues.Nodes...) {
			issues = append(issues, n.summary())
		}
		return tools.JSON(map[string]any{"total": len(issues), "issues": issues})
	})
}

func issueFilter(in searchArgs) map[string]any {
	f := map[string]any{}
	if in.TeamID != "" {
		f["team"] = eq("id", in.TeamID)
	}
	switch {
	case strings.EqualFold(in.AssigneeID, "me"):
		f["assignee"] = map[string]any{"isMe": map[string]any{"eq": true}}
	case in.AssigneeID != "":
		f["assignee"] = eq("id", in.AssigneeID)
	}
	switch {
	case in.StateName != "":
		f["state"] = map[string]any{"name": map[string]any{"eqIgnoreCase": in.StateName}}
	case in.StateType != "":
		f["state"] = eq("type", in.StateType)
	}
	if in.Priority != nil {
		f["priority"] = map[string]any{"eq": *in.Priority}
	}
	if in.LabelName != "" {
		f["labels"] = map[string]any{"name": map[string]any{"eqIgnoreCase": in.LabelName}}
	}
	if in.ProjectID != "" {
		f["project"] = eq("id", in.ProjectID)
	}
	return f
}

func (p *Provider) getIssue(ctx context.Context, in getIssueArgs) string {
	if in.IssueID == "" {
		return tools.Errorf("issue_id is required.")
	}
	doc := issueQuery
	if in.IncludeComments {
		doc = issueWithCommentsQuery
	}
	var data struct {
		Issue *issueNode `json:"issue"`
	}
	return p.query(ctx, "getting Linear issue", doc, map[string]any{"id": in.IssueID}, &data, func() string {
		if data.Issue == nil {
			return tools.Errorf("Issue '%s' not found.", in.IssueID)
		}
		return tools.JSON(data.Issue.detail())
	})
}

func (p *Provider) createIssue(ctx context.Context, in createIssueArgs) string {
	if in.Title == "" || in.TeamID == "" {
		return tools.Errorf("title and team_id are required.")
	}
	input := map[string]any{"title": in.Title, "teamId": in.TeamID}
	setString(input, "description", in.Description)
	setString(input, "assigneeId", in.AssigneeID)
	setString(input, "stateId", in.StateID)
	setString(input, "projectId", in.ProjectID)
	setString(input, "cycleId", in.CycleID)
	setString(input, "dueDate", in.DueDate)
	setString(input, "parentId", in.ParentID)
	if in.Priority != nil {
		input["priority"] = *in.Priority
	}
	if in.Estimate != nil {
		input["estimate"] = *in.Estimate
	}
	if ids := tools.SplitCSV(in.LabelIDs); len(ids) > 0 {
		input["labelIds"] = ids
	}

	var data struct {
		IssueCreate struct {
			Success bool      `json:"success"`
			Issue   issueNode `json:"issue"`
		} `json:"issueCreate"`
	}
	return p.query(ctx, "creating Linear issue", createIssueMutation, map[string]any{"input": input}, &data, func() string {
		if !data.IssueCreate.Success {
			return tools.Errorf("Failed to create issue.")
		}
		d := data.IssueCreate.Issue.detail()
		d.Status = "created"
		return tools.JSON(d)
	})
}

func (p *Provider) updateIssue(ctx context.Context, in updateIssueArgs) string {
	if in.IssueID == "" {
		return tools.Errorf("issue_id is required.")
	}
	input := map[string]any{}
	for key, v := range map[string]*string{
		"title":       in.Title,
		"description": in.Description,
		"assigneeId":  in.AssigneeID,
		"stateId":     in.StateID,
		"projectId":   in.ProjectID,
		"cycleId":     in.CycleID,
		"dueDate":     in.DueDate,
	} {
		if v != nil {
			input[key] = *v
		}
	}
	if in.Priority != nil {
		input["priority"] = *in.Priority
	}
	if in.Estimate != nil {
		input["estimate"] = *in.Estimate
	}
	if in.LabelIDs != nil {
		input["labelIds"] = append([]string{}, tools.SplitCSV(*in.LabelIDs)...)
	}
	if len(input) == 0 {
		return tools.Errorf("No fields provided to update.")
	}

	var data struct {
		IssueUpdate struct {
			Success bool      `json:"success"`
			Issue   issueNode `json:"issue"`
		} `json:"issueUpdate"`
	}
	vars := map[string]any{"id": in.IssueID, "input": input}
	return p.query(ctx, "updating Linear issue", updateIssueMutation, vars, &data, func() string {
		if !data.IssueUpdate.Success {
			return tools.Errorf("Failed to update issue '%s'.", in.IssueID)
		}
		d := data.IssueUpdate.Issue.detail()
		d.Status = "updated"
		return tools.JSON(d)
	})
}

func (p *Provider) addComment(ctx context.Context, in commentArgs) string {
	if in.IssueID == "" || strings.TrimSpace(in.Body) == "" {
		return tools.Errorf("issue_id and body are required.")
	}
	var data struct {
		CommentCreate struct {
			Success bool `json:"success"`
			Comment struct {
				ID        string `json:"id"`
				Body      string `json:"body"`
				CreatedAt string `json:"createdAt"`
				User      *ref   `json:"user"`
				Issue     struct {
					Identifier string `json:"identifier"`
					Title      string `json:"title"`
				} `json:"issue"`
			} `json:"comment"`
		} `json:"commentCreate"`
	}
	vars := map[string]any{"input": map[string]any{"issueId": in.IssueID, "body": in.Body}}
	return p.query(ctx, "adding comment to Linear issue", commentMutation, vars, &data, func() string {
		res := data.CommentCreate
		if !res.Success {
			return tools.Errorf("Failed to add comment to issue '%s'.", in.IssueID)
		}
		author := ""
		if res.Comment.User != nil {
			author = res.Comment.User.Name
		}
		return tools.JSON(map[string]any{
			"_status":   "comment_added",
			"commentId": res.Comment.ID,
			"body":      res.Comment.Body,
			"author":    author,
			"createdAt": res.Comment.CreatedAt,
			"issue":     res.Comment.Issue,
		})
	})
}

func (p *Provider) listProjects(ctx context.Context, in projectsArgs) string {
	vars := map[string]any{"first": tools.Clamp(tools.Default(in.First, 25), 1, 50)}
	if !in.IncludeCompleted {
		vars["filter"] = map[string]any{"state": map[string]any{"nin": []string{"completed", "cancelled"}}}
	}
	var data struct {
		Projects nodes[struct {
			ID          string     `json:"id"`
			Name        string     `json:"name"`
			Description string     `json:"description"`
			URL         string     `json:"url"`
			State       string     `json:"state"`
			Progress    float64    `json:"progress"`
			StartDate   string     `json:"startDate"`
			TargetDate  string     `json:"targetDate"`
			CreatedAt   string     `json:"createdAt"`
			UpdatedAt   string     `json:"updatedAt"`
			Lead        *ref       `json:"lead"`
			Teams       nodes[ref] `json:"teams"`
		}] `json:"projects"`
	}
	return p.query(ctx, "listing Linear projects", projectsQuery, vars, &data, func() string {
		type project struct {
			ID          string   `json:"id"`
			Name        string   `json:"name"`
			URL         string   `json:"url"`
			State       string   `json:"state"`
			Progress    float64  `json:"progress"`
			CreatedAt   string   `json:"createdAt"`
			UpdatedAt   string   `json:"updatedAt"`
			Description string   `json:"description,omitempty"`
			Lead        string   `json:"lead,omitempty"`
			StartDate   string   `json:"startDate,omitempty"`
			TargetDate  string   `json:"targetDate,omitempty"`
			Teams       []string `json:"teams,omitempty"`
		}
		projects := []project{}
		for _, n := range data.Projects.Nodes {
			out := project{ID: n.ID, Name: n.Name, URL: n.URL, State: n.State, Progress: n.Progress,
				CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt, Description: n.Description,
				StartDate: n.StartDate, TargetDate: n.TargetDate, Teams: labelNames(n.Teams)}
			if n.Lead != nil {
				out.Lead = n.Lead.Name
			}
			projects = append(projects, out)
		}
		return tools.JSON(map[string]any{"total": len(projects), "projects": projects})
	})
}

func (p *Provider) listCycles(ctx context.Context, in cyclesArgs) string {
	vars := map[string]any{"first": tools.Clamp(tools.Default(in.First, 10), 1, 50)}
	filter := map[string]any{}
	if in.TeamID != "" {
		filter["team"] = eq("id", in.TeamID)
	}
	if !in.IncludeCompleted {
		filter["isActive"] = map[string]any{"eq": true}
	}
	if len(filter) > 0 {
		vars["filter"] = filter
	}
	var data struct {
		Cycles nodes[struct {
			ID          string  `json:"id"`
			Name        string  `json:"name"`
			Number      float64 `json:"number"`
			StartsAt    string  `json:"startsAt"`
			EndsAt      string  `json:"endsAt"`
			CompletedAt string  `json:"completedAt"`
			Progress    float64 `json:"progress"`
			Team        *ref    `json:"team"`
		}] `json:"cycles"`
	}
	return p.query(ctx, "listing Linear cycles", cyclesQuery, vars, &data, func() string {
		type cycle struct {
			ID          string  `json:"id"`
			Name        string  `json:"name"`
			Number      float64 `json:"number"`
			StartsAt    string  `json:"startsAt"`
			EndsAt      string  `json:"endsAt"`
			Progress    float64 `json:"progress"`
			Team        string  `json:"team"`
			CompletedAt string  `json:"completedAt,omitempty"`
		}
		cycles := []cycle{}
		for _, c := range data.Cycles.Nodes {
			out := cycle{ID: c.ID, Name: c.Name, Number: c.Number, StartsAt: c.StartsAt, EndsAt: c.EndsAt,
				Progress: c.Progress, CompletedAt: c.CompletedAt}
			if out.Name == "" {
				out.Name = fmt.Sprintf("Cycle %g", c.Number)
			}
			if c.Team != nil {
				out.Team = c.Team.Name
			}
			cycles = append(cycles, out)
		}
		return tools.JSON(map[string]any{"total": len(cycles), "cycles": cycles})
	})
}

func (p *Provider) listLabels(ctx context.Context, in teamFilterArgs) string {
	var data struct {
		IssueLabels nodes[struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Color       string `json:"color"`
			Description string `json:"description"`
			Parent      *ref   `json:"parent"`
			Team        *ref   `json:"team"`
		}] `json:"issueLabels"`
	}
	return p.query(ctx, "listing Linear labels", labelsQuery, teamFilter(in.TeamID), &data, func() string {
		type label struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Color       string `json:"color"`
			Description string `json:"description,omitempty"`
			ParentGroup string `json:"parentGroup,omitempty"`
			Team        string `json:"team,omitempty"`
		}
		labels := []label{}
		for _, l := range data.IssueLabels.Nodes {
			out := label{ID: l.ID, Name: l.Name, Color: l.Color, Description: l.Description}
			if l.Parent != nil {
				out.ParentGroup = l.Parent.Name
			}
			if l.Team != nil {
				out.Team = l.Team.Name
			}
			labels = append(labels, out)
		}
		return tools.JSON(map[string]any{"total": len(labels), "labels": labels})
	})
}

func (p *Provider) listUsers(ctx context.Context, in usersArgs) string {
	var vars map[string]any
	if !in.IncludeDisabled {
		vars = map[string]any{"filter": map[string]any{"active": map[string]any{"eq": true}}}
	}
	type user struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		Active      bool   `json:"active"`
		Admin       bool   `json:"admin,omitempty"`
		Guest       bool   `json:"guest,omitempty"`
	}
	var data struct {
		Users nodes[user] `json:"users"`
	}
	return p.query(ctx, "listing Linear users", usersQuery, vars, &data, func() string {
		users := append([]user{}, data.Users.Nodes...)
		return tools.JSON(map[string]any{"total": len(users), "users": users})
	})
}

func (p *Provider) archiveIssue(ctx context.Context, in issueIDArgs) string {
	if in.IssueID == "" {
		return tools.Errorf("issue_id is required.")
	}
	var data struct {
		IssueArchive struct {
			Success bool `json:"success"`
		} `json:"issueArchive"`
	}
	return p.query(ctx, "archiving Linear issue", archiveMutation, map[string]any{"id": in.IssueID}, &data, func() string {
		if !data.IssueArchive.Success {
			return tools.Errorf("Failed to archive issue '%s'.", in.IssueID)
		}
		return tools.JSON(map[string]any{
			"_status": "archived",
			"issueId": in.IssueID,
			"message": fmt.Sprintf("Issue '%s' has been archived.", in.IssueID),
		})
	})
}

func setString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}
