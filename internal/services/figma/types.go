package figma

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ternarybob/figmaqa/internal/models"
)

// flexID accepts ids the API sends either as strings or as numbers
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type fileResponse struct {
	Name         string            `json:"name"`
	LastModified string            `json:"lastModified"`
	Document     *models.SceneNode `json:"document"`
}

type nodesResponse struct {
	Nodes map[string]*struct {
		Document *models.SceneNode `json:"document"`
	} `json:"nodes"`
}

type imagesResponse struct {
	Err    *string            `json:"err"`
	Images map[string]*string `json:"images"`
}

// Page is a page (canvas) of a design file
type Page struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Team is a team the token can see
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

type rawTeam struct {
	ID     flexID `json:"id"`
	TeamID flexID `json:"team_id"`
	Alt    flexID `json:"teamId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// teamRef decodes either a team object or a bare id
type teamRef struct {
	rawTeam
}

func (t *teamRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var id flexID
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		t.rawTeam = rawTeam{ID: id}
		return nil
	}
	return json.Unmarshal(data, &t.rawTeam)
}

func (t teamRef) toTeam() Team {
	id := strings.TrimSpace(string(t.ID))
	if id == "" {
		id = string(t.TeamID)
	}
	if id == "" {
		id = string(t.Alt)
	}
	return Team{ID: id, Name: t.Name, Role: t.Role}
}

type meResponse struct {
	ID            flexID    `json:"id"`
	Email         string    `json:"email"`
	Handle        string    `json:"handle"`
	Teams         []teamRef `json:"teams"`
	Organizations []struct {
		Teams []teamRef `json:"teams"`
	} `json:"organizations"`
	TeamIDs   []flexID `json:"teamIds"`
	TeamIDsV2 []flexID `json:"team_ids"`
}

type teamsResponse struct {
	Teams []teamRef `json:"teams"`
}

// Project is a project inside a team
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type rawProject struct {
	ID        flexID `json:"id"`
	ProjectID flexID `json:"project_id"`
	Name      string `json:"name"`
}

type projectsResponse struct {
	Projects []rawProject `json:"projects"`
}

// File is a design file entry in a project listing
type File struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

type filesResponse struct {
	Files []File `json:"files"`
}

// AccessibleFile is a file with the team and project it was found under
type AccessibleFile struct {
	Team    Team    `json:"team"`
	Project Project `json:"project"`
	File    File    `json:"file"`
}

// AccessibleFiles is the result of walking teams -> projects -> files.
// Errors holds one readable message per team or project that could not be listed.
type AccessibleFiles struct {
	Teams  []Team           `json:"teams"`
	Files  []AccessibleFile `json:"files"`
	Errors []string         `json:"errors"`
}
