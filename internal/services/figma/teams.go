package figma

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ListTeams returns the teams visible to the token. The /me profile is read
// first; the legacy /me/teams endpoint is used when /me is refused or lists no teams.
func (c *Client) ListTeams(ctx context.Context, token string) ([]Team, error) {
	var me meResponse
	meErr := c.getJSON(ctx, token, "/me", nil, &me)
	if meErr != nil {
		code := StatusCodeOf(meErr)
		if code != http.StatusForbidden && code != http.StatusNotFound {
			return nil, fmt.Errorf("failed to read profile: %w", meErr)
		}
	}

	teams := newTeamSet()
	if meErr == nil {
		for _, t := range me.Teams {
			teams.add(t.toTeam())
		}
		for _, org := range me.Organizations {
			for _, t := range org.Teams {
				teams.add(t.toTeam())
			}
		}
		for _, id := range me.TeamIDs {
			teams.add(Team{ID: string(id)})
		}
		for _, id := range me.TeamIDsV2 {
			teams.add(Team{ID: string(id)})
		}
	}

	if teams.len() > 0 {
		return teams.list(), nil
	}

	var legacy teamsResponse
	if err := c.getJSON(ctx, token, "/me/teams", nil, &legacy); err != nil {
		if meErr != nil {
			return nil, fmt.Errorf("failed to list teams: %w", meErr)
		}
		if code := StatusCodeOf(err); code == http.StatusForbidden || code == http.StatusNotFound {
			c.logger.Warn().Int("status", code).Msg("Legacy team listing unavailable")
			return []Team{}, nil
		}
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	for _, t := range legacy.Teams {
		teams.add(t.toTeam())
	}
	return teams.list(), nil
}

// ListTeamProjects returns the projects of one team
func (c *Client) ListTeamProjects(ctx context.Context, token, teamID string) ([]Project, error) {
	var resp projectsResponse
	if err := c.getJSON(ctx, token, "/teams/"+url.PathEscape(teamID)+"/projects", nil, &resp); err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(resp.Projects))
	for _, p := range resp.Projects {
		id := string(p.ID)
		if id == "" {
			id = string(p.ProjectID)
		}
		if id == "" {
			continue
		}
		projects = append(projects, Project{ID: id, Name: p.Name})
	}
	return projects, nil
}

// ListProjectFiles returns the files of one project
func (c *Client) ListProjectFiles(ctx context.Context, token, projectID string) ([]File, error) {
	var resp filesResponse
	if err := c.getJSON(ctx, token, "/projects/"+url.PathEscape(projectID)+"/files", nil, &resp); err != nil {
		return nil, err
	}
	files := make([]File, 0, len(resp.Files))
	for _, f := range resp.Files {
		if f.Key != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

// ListAccessibleFiles walks teams -> projects -> files. A team or project that
// cannot be listed adds a message to Errors and the walk continues.
func (c *Client) ListAccessibleFiles(ctx context.Context, token string) (*AccessibleFiles, error) {
	teams, err := c.ListTeams(ctx, token)
	if err != nil {
		return nil, err
	}

	result := &AccessibleFiles{
		Teams:  teams,
		Files:  []AccessibleFile{},
		Errors: []string{},
	}

	for _, team := range teams {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		projects, err := c.ListTeamProjects(ctx, token, team.ID)
		if err != nil {
			result.Errors = append(result.Errors, listingError("Equipo", displayName(team.Name, team.ID), err))
			continue
		}
		for _, project := range projects {
			files, err := c.ListProjectFiles(ctx, token, project.ID)
			if err != nil {
				result.Errors = append(result.Errors, listingError("Proyecto", displayName(project.Name, project.ID), err))
				continue
			}
			for _, f := range files {
				result.Files = append(result.Files, AccessibleFile{Team: team, Project: project, File: f})
			}
		}
	}

	c.logger.Info().
		Int("teams", len(result.Teams)).
		Int("files", len(result.Files)).
		Int("errors", len(result.Errors)).
		Msg("Accessible files listed")

	return result, nil
}

func listingError(kind, name string, err error) string {
	switch code := StatusCodeOf(err); code {
	case http.StatusForbidden:
		return fmt.Sprintf("%s %s: token sin permisos (HTTP 403)", kind, name)
	case http.StatusNotFound:
		return fmt.Sprintf("%s %s: recurso no encontrado o sin acceso (HTTP 404)", kind, name)
	case 0:
		return fmt.Sprintf("%s %s: %v", kind, name, err)
	default:
		return fmt.Sprintf("%s %s: error HTTP %d", kind, name, code)
	}
}

func displayName(name, id string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return id
}

// teamSet dedupes teams by id, keeping first-seen order and filling in names
type teamSet struct {
	order []string
	byID  map[string]Team
}

func newTeamSet() *teamSet {
	return &teamSet{byID: map[string]Team{}}
}

func (s *teamSet) add(t Team) {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return
	}
	existing, ok := s.byID[t.ID]
	if !ok {
		s.order = append(s.order, t.ID)
		s.byID[t.ID] = t
		return
	}
	if existing.Name == "" {
		existing.Name = t.Name
	}
	if existing.Role == "" {
		existing.Role = t.Role
	}
	s.byID[t.ID] = existing
}

func (s *teamSet) len() int { return len(s.order) }

func (s *teamSet) list() []Team {
	out := make([]Team, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
