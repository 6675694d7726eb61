package client

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/lherron/discuss/internal/domain"
)

// wireAuthor accepts both the nested author object and the looser shapes
// older backends send.
type wireAuthor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	Avatar    string `json:"avatar"`
	AvatarURL string `json:"avatar_url"`
}

// wireComment is the lenient decoding target for a comment. Fields are
// accepted in snake_case and camelCase; timestamps stay strings until
// normalize so a malformed value degrades instead of failing the decode.
type wireComment struct {
	ID               string            `json:"id"`
	TaskID           string            `json:"task_id"`
	TaskIDCamel      string            `json:"taskId"`
	Body             string            `json:"body"`
	Text             string            `json:"text"`
	ParentID         string            `json:"parent_id"`
	ParentIDCamel    string            `json:"parentId"`
	Author           *wireAuthor       `json:"author"`
	AuthorID         string            `json:"author_id"`
	AuthorName       string            `json:"author_name"`
	AuthorRole       string            `json:"author_role"`
	CreatedAt        string            `json:"created_at"`
	CreatedAtCamel   string            `json:"createdAt"`
	UpdatedAt        string            `json:"updated_at"`
	UpdatedAtCamel   string            `json:"updatedAt"`
	EditedAt         string            `json:"edited_at"`
	EditedAtCamel    string            `json:"editedAt"`
	Edited           bool              `json:"edited"`
	ClientToken      string            `json:"client_token"`
	ClientTokenCamel string            `json:"clientToken"`
	Attachments      []json.RawMessage `json:"attachments"`
	ETag             int64             `json:"etag"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func optionalTime(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t := domain.ParseTimestampOrEpoch(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

// normalize converts the wire shape into a domain comment. A nil receiver
// yields nil so callers can pass the result straight to the coordinator,
// which treats it as an unusable response.
func (w *wireComment) normalize() *domain.Comment {
	if w == nil {
		return nil
	}
	c := &domain.Comment{
		ID:          strings.TrimSpace(w.ID),
		TaskID:      firstNonEmpty(w.TaskID, w.TaskIDCamel),
		Body:        w.Body,
		ParentID:    firstNonEmpty(w.ParentID, w.ParentIDCamel),
		CreatedAt:   domain.ParseTimestampOrEpoch(firstNonEmpty(w.CreatedAt, w.CreatedAtCamel)),
		UpdatedAt:   optionalTime(firstNonEmpty(w.UpdatedAt, w.UpdatedAtCamel)),
		EditedAt:    optionalTime(firstNonEmpty(w.EditedAt, w.EditedAtCamel)),
		Edited:      w.Edited,
		ClientToken: firstNonEmpty(w.ClientToken, w.ClientTokenCamel),
		Attachments: w.Attachments,
		ETag:        w.ETag,
	}
	if c.Body == "" {
		c.Body = w.Text
	}

	switch {
	case w.Author != nil:
		c.Author = &domain.Author{
			ID:     w.Author.ID,
			Name:   firstNonEmpty(w.Author.Name, w.Author.FullName),
			Role:   w.Author.Role,
			Avatar: firstNonEmpty(w.Author.Avatar, w.Author.AvatarURL),
		}
	case w.AuthorID != "" || w.AuthorName != "":
		c.Author = &domain.Author{ID: w.AuthorID, Name: w.AuthorName, Role: w.AuthorRole}
	}
	return c
}

func normalizeAll(in []wireComment) []domain.Comment {
	out := make([]domain.Comment, 0, len(in))
	for i := range in {
		out = append(out, *in[i].normalize())
	}
	return out
}
