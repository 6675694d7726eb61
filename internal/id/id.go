package id

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// PlaceholderPrefix marks locally generated ids. Server ids never use it.
const PlaceholderPrefix = "tmp-"

var (
	actorIDPattern   = regexp.MustCompile(`^A-\d{5,}$`)
	taskIDPattern    = regexp.MustCompile(`^T-\d{5,}$`)
	commentIDPattern = regexp.MustCompile(`^C-\d{5,}$`)
	uuidPattern      = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// Type represents the type of resource
type Type string

const (
	TypeActor   Type = "actor"
	TypeTask    Type = "task"
	TypeComment Type = "comment"
)

// FormatActor formats an actor friendly ID
func FormatActor(seq int) string {
	return fmt.Sprintf("A-%05d", seq)
}

// FormatTask formats a task friendly ID
func FormatTask(seq int) string {
	return fmt.Sprintf("T-%05d", seq)
}

// FormatComment formats a comment friendly ID
func FormatComment(seq int) string {
	return fmt.Sprintf("C-%05d", seq)
}

// Parse parses an ID string and returns the type and sequence number
func Parse(id string) (Type, int, error) {
	id = strings.TrimSpace(id)

	switch {
	case actorIDPattern.MatchString(id):
		seq, _ := strconv.Atoi(id[2:])
		return TypeActor, seq, nil
	case taskIDPattern.MatchString(id):
		seq, _ := strconv.Atoi(id[2:])
		return TypeTask, seq, nil
	case commentIDPattern.MatchString(id):
		seq, _ := strconv.Atoi(id[2:])
		return TypeComment, seq, nil
	default:
		return "", 0, fmt.Errorf("invalid friendly ID format: %s", id)
	}
}

// IsUUID checks if a string is a valid UUID
func IsUUID(s string) bool {
	return uuidPattern.MatchString(strings.ToLower(s))
}

// IsFriendlyID checks if a string is a valid friendly ID
func IsFriendlyID(s string) bool {
	_, _, err := Parse(s)
	return err == nil
}

var placeholderSeq atomic.Uint64

// NewPlaceholder returns a process-unique id for a record the server has not
// confirmed. The monotonic counter keeps ids ordered within a session and the
// uuid suffix keeps them unique across sessions.
func NewPlaceholder() string {
	seq := placeholderSeq.Add(1)
	return fmt.Sprintf("%s%d-%s", PlaceholderPrefix, seq, uuid.NewString()[:8])
}

// IsPlaceholder reports whether id was produced by NewPlaceholder.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// StripPrefix removes an optional typed selector prefix such as "c:" or "t:".
func StripPrefix(ref, prefix string) string {
	return strings.TrimPrefix(ref, prefix)
}
