package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONMap custom type for JSONB storage of free-form metadata
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(JSONMap{})
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = make(JSONMap)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, m)
}

// StringSlice custom type for JSONB storage of string lists (e.g. project tags)
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, s)
}

// Contains reports whether the slice holds the given value.
func (s StringSlice) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// CollaboratorRole represents collaborator role types
type CollaboratorRole string

const (
	RoleOwner  CollaboratorRole = "owner"
	RoleEditor CollaboratorRole = "editor"
	RoleViewer CollaboratorRole = "viewer"
)

// Collaborator represents a user with access to a project
type Collaborator struct {
	UserID      string           `json:"userId"`
	Role        CollaboratorRole `json:"role"`
	Permissions []string         `json:"permissions"`
	AddedAt     time.Time        `json:"addedAt"`
}

// Collaborators custom type for JSONB storage of the collaborator list
type Collaborators []Collaborator

func (c Collaborators) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal([]Collaborator{})
	}
	return json.Marshal(c)
}

func (c *Collaborators) Scan(value interface{}) error {
	if value == nil {
		*c = Collaborators{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, c)
}

// FindByUser returns the collaborator entry for a user, if any.
func (c Collaborators) FindByUser(userID string) (Collaborator, bool) {
	for _, collab := range c {
		if collab.UserID == userID {
			return collab, true
		}
	}
	return Collaborator{}, false
}

// Version represents one entry in a project's version history
type Version struct {
	Version     string    `json:"version"` // semantic: major.minor.patch
	Description string    `json:"description"`
	Changes     JSONMap   `json:"changes"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy"`
}

// Versions custom type for JSONB storage of the version history
type Versions []Version

func (v Versions) Value() (driver.Value, error) {
	if v == nil {
		return json.Marshal([]Version{})
	}
	return json.Marshal(v)
}

func (v *Versions) Scan(value interface{}) error {
	if value == nil {
		*v = Versions{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, v)
}

// ShareLink represents a signed, expiring link granting scoped project access
type ShareLink struct {
	ID        string           `json:"id"`
	Token     string           `json:"token"`
	Role      CollaboratorRole `json:"role"`
	ExpiresAt time.Time        `json:"expiresAt"`
	CreatedAt time.Time        `json:"createdAt"`
	CreatedBy string           `json:"createdBy"`
}

// ShareLinks custom type for JSONB storage of share links
type ShareLinks []ShareLink

func (s ShareLinks) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]ShareLink{})
	}
	return json.Marshal(s)
}

func (s *ShareLinks) Scan(value interface{}) error {
	if value == nil {
		*s = ShareLinks{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, s)
}

// StageRef tracks one pipeline stage on a project.
// ID is a pointer so an untouched stage round-trips as {"id":null,"completed":false}.
type StageRef struct {
	ID        *string `json:"id"`
	Completed bool    `json:"completed"`
}

// VideoStageRef tracks the video stage, which additionally carries the
// generation job id and the resulting video URL.
type VideoStageRef struct {
	ID        *string `json:"id"`
	JobID     string  `json:"jobId,omitempty"`
	VideoURL  string  `json:"videoUrl,omitempty"`
	Completed bool    `json:"completed"`
}

// PipelineStages is the per-project pipeline stage tracking state.
// The shape must round-trip unchanged through create/update cycles.
type PipelineStages struct {
	Story    StageRef      `json:"story"`
	Scenario StageRef      `json:"scenario"`
	Prompt   StageRef      `json:"prompt"`
	Video    VideoStageRef `json:"video"`
}

func (p PipelineStages) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *PipelineStages) Scan(value interface{}) error {
	if value == nil {
		*p = PipelineStages{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, p)
}
