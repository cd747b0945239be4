package journal

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindEnrollmentIssued Kind = "enrollment_issued"
	KindDeviceRegistered Kind = "device_registered"
)

const DefaultListLimit = 50

type Entry struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	Username   string
	Kind       Kind
	DeviceName string
	DeviceID   int64
	LocationID int64
	TokenHash  string
	CreatedAt  time.Time
}

// Store persists enrollment outcomes. Enrollment tokens are only ever stored
// hashed.
type Store interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, username string, limit int) ([]Entry, error)
}

// HashToken computes the SHA-256 hex digest of an enrollment token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", hash)
}

func normalize(e Entry) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultListLimit
	}
	return limit
}
