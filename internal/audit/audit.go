package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Actions recorded for registry writes and exports.
const (
	ActionSiteCreate      = "site.create"
	ActionSiteUpdate      = "site.update"
	ActionSiteDelete      = "site.delete"
	ActionSiteExport      = "site.export"
	ActionGroupCreate     = "group.create"
	ActionGroupBulkCreate = "group.bulk_create"
	ActionGroupUpdate     = "group.update"
	ActionGroupDelete     = "group.delete"
)

// Entry is one row of the audit trail.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// NewEntry builds an entry for action on one resource. metadata may be nil;
// otherwise it is stored as JSON together with its digest.
func NewEntry(action, resourceType, resourceID string, metadata any) (Entry, error) {
	entry := Entry{
		ID:           NewID(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CreatedAt:    time.Now().UTC(),
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return Entry{}, fmt.Errorf("audit: encode metadata: %w", err)
		}
		entry.Metadata = raw
		entry.PayloadDigest = DigestJSON(raw)
	}
	return entry, nil
}

// Logger persists audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID returns a unique audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON is the hex SHA-256 of a metadata payload, or "" when empty.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
