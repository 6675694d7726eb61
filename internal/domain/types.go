package domain

import (
	"encoding/json"
	"time"
)

// UnknownAuthorName is shown for comments that carry no author descriptor.
const UnknownAuthorName = "Unknown User"

// ViewerFallbackName is used for optimistic comments when the viewer is only known by id.
const ViewerFallbackName = "You"

// ActorRole represents the role of an actor in the console
type ActorRole string

const (
	ActorRoleEmployee       ActorRole = "employee"
	ActorRoleHR             ActorRole = "hr"
	ActorRoleManager        ActorRole = "manager"
	ActorRoleDepartmentHead ActorRole = "department_head"
	ActorRoleSuperAdmin     ActorRole = "super_admin"
	ActorRoleSystem         ActorRole = "system"
)

// Author describes who wrote a comment
type Author struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Role   string `json:"role,omitempty" yaml:"role,omitempty"`
	Avatar string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
}

// Viewer is the identity acting on a discussion
type Viewer struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// AsAuthor converts the viewer into an author descriptor for optimistic records.
func (v Viewer) AsAuthor() *Author {
	name := v.Name
	if name == "" {
		name = ViewerFallbackName
	}
	return &Author{ID: v.ID, Name: name, Role: v.Role, Avatar: v.Avatar}
}

// Comment is a single record in a task discussion. Replies reference their
// parent through ParentID; the collection itself is flat.
type Comment struct {
	ID          string            `json:"id" yaml:"id"`
	TaskID      string            `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Body        string            `json:"body" yaml:"body"`
	ParentID    string            `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Author      *Author           `json:"author,omitempty" yaml:"author,omitempty"`
	CreatedAt   time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	EditedAt    *time.Time        `json:"edited_at,omitempty" yaml:"edited_at,omitempty"`
	Edited      bool              `json:"edited,omitempty" yaml:"edited,omitempty"`
	ClientToken string            `json:"client_token,omitempty" yaml:"client_token,omitempty"`
	Attachments []json.RawMessage `json:"attachments,omitempty" yaml:"-"`
	ETag        int64             `json:"etag,omitempty" yaml:"etag,omitempty"`
}

// NewComment carries the fields a client submits when adding a comment.
type NewComment struct {
	Body        string
	ParentID    string
	ClientToken string
}

// CanonicalID returns the single identifier used to compare records.
func (c *Comment) CanonicalID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.ClientToken
}

// SameRecord reports whether two records describe the same comment, either by
// canonical id or by a shared client correlation token.
func (c *Comment) SameRecord(other *Comment) bool {
	if c == nil || other == nil {
		return false
	}
	if id := c.CanonicalID(); id != "" && id == other.CanonicalID() {
		return true
	}
	return c.ClientToken != "" && c.ClientToken == other.ClientToken
}

// AuthorName returns the display name, falling back for malformed records.
func (c *Comment) AuthorName() string {
	if c.Author == nil || c.Author.Name == "" {
		return UnknownAuthorName
	}
	return c.Author.Name
}

// AuthorID returns the author's id or "" when the record has no author.
func (c *Comment) AuthorID() string {
	if c.Author == nil {
		return ""
	}
	return c.Author.ID
}

// IsEdited reports whether the UI should show an "edited" marker.
func (c *Comment) IsEdited() bool {
	return c.Edited || c.EditedAt != nil
}

// IsUsable reports whether a store response can be reconciled into the cache.
func (c *Comment) IsUsable() bool {
	return c != nil && c.ID != ""
}

// Clone returns a deep copy so snapshots never alias live records.
func (c Comment) Clone() Comment {
	out := c
	if c.Author != nil {
		a := *c.Author
		out.Author = &a
	}
	if c.UpdatedAt != nil {
		t := *c.UpdatedAt
		out.UpdatedAt = &t
	}
	if c.EditedAt != nil {
		t := *c.EditedAt
		out.EditedAt = &t
	}
	if c.Attachments != nil {
		out.Attachments = make([]json.RawMessage, len(c.Attachments))
		for i, raw := range c.Attachments {
			out.Attachments[i] = append(json.RawMessage(nil), raw...)
		}
	}
	return out
}

// Merge overlays the fields present in update onto base. Fields the server
// omitted keep their previous values.
func Merge(base Comment, update *Comment) Comment {
	out := base.Clone()
	if update == nil {
		return out
	}
	if update.ID != "" {
		out.ID = update.ID
	}
	if update.TaskID != "" {
		out.TaskID = update.TaskID
	}
	if update.Body != "" {
		out.Body = update.Body
	}
	if update.ParentID != "" {
		out.ParentID = update.ParentID
	}
	if update.Author != nil && update.Author.ID != "" {
		a := *update.Author
		if a.Name == "" && out.Author != nil && out.Author.ID == a.ID {
			a.Name = out.Author.Name
		}
		out.Author = &a
	}
	if !update.CreatedAt.IsZero() {
		out.CreatedAt = update.CreatedAt
	}
	if update.UpdatedAt != nil {
		t := *update.UpdatedAt
		out.UpdatedAt = &t
	}
	if update.EditedAt != nil {
		t := *update.EditedAt
		out.EditedAt = &t
	}
	if update.Edited {
		out.Edited = true
	}
	if update.ClientToken != "" {
		out.ClientToken = update.ClientToken
	}
	if update.Attachments != nil {
		out.Attachments = update.Clone().Attachments
	}
	if update.ETag != 0 {
		out.ETag = update.ETag
	}
	return out
}

// Actor is a stored identity in the reference backend
type Actor struct {
	UUID        string    `json:"uuid" db:"uuid"`
	ID          string    `json:"id" db:"id"`
	Slug        string    `json:"slug" db:"slug"`
	DisplayName *string   `json:"display_name,omitempty" db:"display_name"`
	Role        string    `json:"role" db:"role"`
	AvatarURL   *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Viewer returns the actor as an acting identity.
func (a *Actor) Viewer() Viewer {
	v := Viewer{ID: a.ID, Role: a.Role, Name: a.Slug}
	if a.DisplayName != nil && *a.DisplayName != "" {
		v.Name = *a.DisplayName
	}
	if a.AvatarURL != nil {
		v.Avatar = *a.AvatarURL
	}
	return v
}

// Task is the owner of a discussion in the reference backend
type Task struct {
	UUID        string    `json:"uuid" db:"uuid"`
	ID          string    `json:"id" db:"id"`
	Slug        string    `json:"slug" db:"slug"`
	Title       string    `json:"title" db:"title"`
	WebhookURLs *string   `json:"webhook_urls,omitempty" db:"webhook_urls"` // JSON array
	ETag        int64     `json:"etag" db:"etag"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// GetWebhookURLs parses the webhook URL JSON into a string slice
func (t *Task) GetWebhookURLs() ([]string, error) {
	if t.WebhookURLs == nil || *t.WebhookURLs == "" {
		return []string{}, nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(*t.WebhookURLs), &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

// Event represents an event in the event log
type Event struct {
	ID           int64     `json:"id" db:"id"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	ActorUUID    *string   `json:"actor_uuid,omitempty" db:"actor_uuid"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	ResourceUUID *string   `json:"resource_uuid,omitempty" db:"resource_uuid"`
	EventType    string    `json:"event_type" db:"event_type"`
	ETag         *int64    `json:"etag,omitempty" db:"etag"`
	Payload      *string   `json:"payload,omitempty" db:"payload"` // JSON
}
