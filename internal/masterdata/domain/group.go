package masterdata

import (
	"errors"
	"strings"
	"time"
)

// GroupType classifies a group.
type GroupType string

const (
	GroupType1 GroupType = "GROUP1"
	GroupType2 GroupType = "GROUP2"
	GroupType3 GroupType = "GROUP3"
)

// ParseGroupType accepts any letter case ("group3" and "GROUP3" are equal).
func ParseGroupType(value string) (GroupType, bool) {
	switch GroupType(strings.ToUpper(strings.TrimSpace(value))) {
	case GroupType1:
		return GroupType1, true
	case GroupType2:
		return GroupType2, true
	case GroupType3:
		return GroupType3, true
	default:
		return "", false
	}
}

// Group is a named category sites may belong to.
type Group struct {
	ID        int64
	Name      string
	Type      GroupType
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks group invariants.
func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("group: empty name")
	}
	if _, ok := ParseGroupType(string(g.Type)); !ok {
		return errors.New("group: unknown type " + string(g.Type))
	}
	if g.ID < 0 {
		return errors.New("group: negative id")
	}
	return nil
}
