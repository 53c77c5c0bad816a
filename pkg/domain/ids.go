// Package domain holds typed identifiers and small value types shared across modules.
//
// Typed IDs prevent passing a user ID where an entity ID is expected.
// Construct them from external input with the Parse functions; direct conversion
// from uuid.UUID is reserved for code that minted the UUID itself.
package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"

	dErrors "grievance/pkg/domain-errors"
)

type (
	UserID         uuid.UUID
	EntityID       uuid.UUID
	ComplaintID    uuid.UUID
	AttachmentID   uuid.UUID
	NotificationID uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}

// ParseUserID parses a non-nil UUID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

// ParseEntityID parses a non-nil UUID from external input.
func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID("entity id", s)
	return EntityID(u), err
}

// ParseComplaintID parses a non-nil complaint UUID.
func ParseComplaintID(s string) (ComplaintID, error) {
	u, err := parseUUID("complaint id", s)
	return ComplaintID(u), err
}

func ParseAttachmentID(s string) (AttachmentID, error) {
	u, err := parseUUID("attachment id", s)
	return AttachmentID(u), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID("notification id", s)
	return NotificationID(u), err
}

// String returns the canonical hyphenated form.
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id EntityID) String() string       { return uuid.UUID(id).String() }
func (id ComplaintID) String() string    { return uuid.UUID(id).String() }
func (id AttachmentID) String() string   { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id EntityID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ComplaintID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AttachmentID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// JSON renders IDs as canonical UUID strings.

// MarshalText and UnmarshalText let IDs appear as JSON strings and map keys.
func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id EntityID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id ComplaintID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id AttachmentID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id NotificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error         { return unmarshalID((*uuid.UUID)(id), b) }
func (id *EntityID) UnmarshalText(b []byte) error       { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ComplaintID) UnmarshalText(b []byte) error    { return unmarshalID((*uuid.UUID)(id), b) }
func (id *AttachmentID) UnmarshalText(b []byte) error   { return unmarshalID((*uuid.UUID)(id), b) }
func (id *NotificationID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func unmarshalID(dst *uuid.UUID, b []byte) error {
	if err := dst.UnmarshalText(b); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid id")
	}
	return nil
}

// SQL support so postgres stores can scan and bind typed IDs directly.

// Value and Scan store IDs as UUID columns.
func (id UserID) Value() (driver.Value, error)         { return uuid.UUID(id).String(), nil }
func (id EntityID) Value() (driver.Value, error)       { return uuid.UUID(id).String(), nil }
func (id ComplaintID) Value() (driver.Value, error)    { return uuid.UUID(id).String(), nil }
func (id AttachmentID) Value() (driver.Value, error)   { return uuid.UUID(id).String(), nil }
func (id NotificationID) Value() (driver.Value, error) { return uuid.UUID(id).String(), nil }

func (id *UserID) Scan(src any) error         { return scanID((*uuid.UUID)(id), src) }
func (id *EntityID) Scan(src any) error       { return scanID((*uuid.UUID)(id), src) }
func (id *ComplaintID) Scan(src any) error    { return scanID((*uuid.UUID)(id), src) }
func (id *AttachmentID) Scan(src any) error   { return scanID((*uuid.UUID)(id), src) }
func (id *NotificationID) Scan(src any) error { return scanID((*uuid.UUID)(id), src) }

func scanID(dst *uuid.UUID, src any) error {
	if err := dst.Scan(src); err != nil {
		return fmt.Errorf("scan id: %w", err)
	}
	return nil
}
