package linear

import "strconv"

const issueFields = `
	id identifier title url priority priorityLabel createdAt updatedAt
	dueDate estimate description
	state { id name type }
	assignee { id name email }
	team { id name key }
	project { id name }
	cycle { id name number }
	labels { nodes { id name } }`

const issueFieldsBrief = `
	id identifier title url priority priorityLabel createdAt updatedAt
	state { name type }
	assignee { name }
	team { name key }
	labels { nodes { name } }`

const (
	viewerQuery = `query Viewer {
	viewer {
		id name email displayName active admin createdAt
		organization { id name urlKey }
	}
}`

	teamsQuery = `query Teams {
	teams {
		nodes {
			id name key description private createdAt
			members { nodes { id name } }
			states { nodes { id name type position } }
		}
	}
}`

	statesQuery = `query WorkflowStates($filter: WorkflowStateFilter) {
	workflowStates(filter: $filter) {
		nodes { id name type position team { id name key } }
	}
}`

	searchIssuesQuery = `query SearchIssues($query: String!, $first: Int) {
	searchIssues(term: $query, first: $first) {
		nodes {` + issueFieldsBrief + `
		}
	}
}`

	filterIssuesQuery = `query Issues($filter: IssueFilter, $first: Int) {
	issues(filter: $filter, first: $first, orderBy: updatedAt) {
		nodes {` + issueFieldsBrief + `
		}
		pageInfo { hasNextPage endCursor }
	}
}`

	issueQuery = `query Issue($id: String!) {
	issue(id: $id) {` + issueFields + `
	}
}`

	issueWithCommentsQuery = `query Issue($id: String!) {
	issue(id: $id) {` + issueFields + `
		comments { nodes { id body createdAt updatedAt user { id name } } }
	}
}`

	createIssueMutation = `mutation IssueCreate($input: IssueCreateInput!) {
	issueCreate(input: $input) {
		success
		issue {` + issueFields + `
		}
	}
}`

	updateIssueMutation = `mutation IssueUpdate($id: String!, $input: IssueUpdateInput!) {
	issueUpdate(id: $id, input: $input) {
		success
		issue {` + issueFields + `
		}
	}
}`

	commentMutation = `mutation CommentCreate($input: CommentCreateInput!) {
	commentCreate(input: $input) {
		success
		comment {
			id body createdAt
			user { id name }
			issue { id identifier title }
		}
	}
}`

	projectsQuery = `query Projects($first: Int, $filter: ProjectFilter) {
	projects(first: $first, filter: $filter, orderBy: updatedAt) {
		nodes {
			id name description url state progress startDate targetDate createdAt updatedAt
			lead { id name }
			teams { nodes { id name key } }
		}
		pageInfo { hasNextPage endCursor }
	}
}`

	cyclesQuery = `query Cycles($first: Int, $filter: CycleFilter) {
	cycles(first: $first, filter: $filter, orderBy: createdAt) {
		nodes {
			id name number startsAt endsAt completedAt progress
			team { id name key }
		}
	}
}`

	labelsQuery = `query Labels($filter: IssueLabelFilter) {
	issueLabels(filter: $filter) {
		nodes {
			id name color description
			parent { id name }
			team { id name key }
		}
	}
}`

	usersQuery = `query Users($filter: UserFilter) {
	users(filter: $filter) {
		nodes { id name email displayName active admin guest }
	}
}`

	archiveMutation = `mutation IssueArchive($id: String!) {
	issueArchive(id: $id) { success }
}`
)

// ref is the shape of every nested object Linear returns here.
type ref struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Key    string `json:"key"`
	Type   string `json:"type"`
	Email  string `json:"email"`
	URLKey string `json:"urlKey"`
}

type nodes[T any] struct {
	Nodes []T `json:"nodes"`
}

type issueNode struct {
	ID            string   `json:"id"`
	Identifier    string   `json:"identifier"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Priority      int      `json:"priority"`
	PriorityLabel string   `json:"priorityLabel"`
	CreatedAt     string   `json:"createdAt"`
	UpdatedAt     string   `json:"updatedAt"`
	DueDate       string   `json:"dueDate"`
	Estimate      *float64 `json:"estimate"`
	Description   string   `json:"description"`
	State         *ref     `json:"state"`
	Assignee      *ref     `json:"assignee"`
	Team          *ref     `json:"team"`
	Project       *ref     `json:"project"`
	Cycle         *struct {
		Name   string  `json:"name"`
		Number float64 `json:"number"`
	} `json:"cycle"`
	Labels   nodes[ref] `json:"labels"`
	Comments *nodes[struct {
		ID        string `json:"id"`
		Body      string `json:"body"`
		CreatedAt string `json:"createdAt"`
		UpdatedAt string `json:"updatedAt"`
		User      *ref   `json:"user"`
	}] `json:"comments"`
}

type issueDetail struct {
	Status        string    `json:"_status,omitempty"`
	ID            string    `json:"id"`
	Identifier    string    `json:"identifier"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Priority      int       `json:"priority"`
	PriorityLabel string    `json:"priorityLabel"`
	CreatedAt     string    `json:"createdAt"`
	UpdatedAt     string    `json:"updatedAt"`
	State         string    `json:"state,omitempty"`
	StateType     string    `json:"stateType,omitempty"`
	Assignee      string    `json:"assignee"`
	Team          string    `json:"team,omitempty"`
	Project       string    `json:"project,omitempty"`
	Cycle         string    `json:"cycle,omitempty"`
	Labels        []string  `json:"labels,omitempty"`
	Description   string    `json:"description,omitempty"`
	DueDate       string    `json:"dueDate,omitempty"`
	Estimate      *float64  `json:"estimate,omitempty"`
	Comments      []comment `json:"comments,omitempty"`
}

type comment struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	Author    string `json:"author"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (n issueNode) detail() issueDetail {
	d := issueDetail{
		ID:            n.ID,
		Identifier:    n.Identifier,
		Title:         n.Title,
		URL:           n.URL,
		Priority:      n.Priority,
		PriorityLabel: n.PriorityLabel,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
		Assignee:      assignee(n.Assignee),
		Labels:        labelNames(n.Labels),
		Description:   n.Description,
		DueDate:       n.DueDate,
		Estimate:      n.Estimate,
	}
	if n.State != nil {
		d.State, d.StateType = n.State.Name, n.State.Type
	}
	if n.Team != nil {
		d.Team = n.Team.Name
	}
	if n.Project != nil {
		d.Project = n.Project.Name
	}
	if n.Cycle != nil {
		d.Cycle = n.Cycle.Name
		if d.Cycle == "" {
			d.Cycle = strconv.FormatFloat(n.Cycle.Number, 'f', -1, 64)
		}
	}
	if n.Comments != nil {
		d.Comments = []comment{}
		for _, c := range n.Comments.Nodes {
			out := comment{ID: c.ID, Body: c.Body, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
			if c.User != nil {
				out.Author = c.User.Name
			}
			d.Comments = append(d.Comments, out)
		}
	}
	return d
}

type issueSummary struct {
	Identifier string   `json:"identifier"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Priority   string   `json:"priority"`
	State      string   `json:"state"`
	Assignee   string   `json:"assignee"`
	Team       string   `json:"team"`
	UpdatedAt  string   `json:"updatedAt"`
	Labels     []string `json:"labels,omitempty"`
}

func (n issueNode) summary() issueSummary {
	s := issueSummary{
		Identifier: n.Identifier,
		Title:      n.Title,
		URL:        n.URL,
		Priority:   n.PriorityLabel,
		Assignee:   assignee(n.Assignee),
		UpdatedAt:  n.UpdatedAt,
		Labels:     labelNames(n.Labels),
	}
	if n.State != nil {
		s.State = n.State.Name
	}
	if n.Team != nil {
		s.Team = n.Team.Key
	}
	return s
}

func assignee(r *ref) string {
	if r == nil || r.Name == "" {
		return "Unassigned"
	}
	return r.Name
}

func labelNames(l nodes[ref]) []string {
	var out []string
	for _, n := range l.Nodes {
		out = append(out, n.Name)
	}
	return out
}
