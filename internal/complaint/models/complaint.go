// Package models holds the complaint aggregate and its status policy.
package models

import (
	"fmt"
	"strings"
	"time"

	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
)

const (
	MaxKindLength        = 255
	MinDescriptionLength = 20
	MaxLocationLength    = 500
	MinResolutionLength  = 20
	MinDeclineLength     = 20
	MinInfoRequestLength = 10
)

// Complaint is a citizen grievance filed against one entity.
//
// Invariants:
//   - Status only moves along AllowedTransitions
//   - AssignedTo is set whenever a lock is held
//   - Every applied change bumps Version
type Complaint struct {
	ID                 id.ComplaintID
	TrackingNumber     string
	CitizenID          id.UserID
	EntityID           id.EntityID
	Kind               string
	Description        string
	Location           string
	Status             Status
	AssignedTo         *id.UserID
	LockedAt           *time.Time
	LockExpiresAt      *time.Time
	InfoRequested      bool
	InfoRequestMessage string
	InfoRequestedAt    *time.Time
	AdminNotes         string
	Resolution         string
	ReviewedAt         *time.Time
	ResolvedAt         *time.Time
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Attachments []Attachment
}

// NewComplaint validates and trims the content and returns a complaint in the new status.
func NewComplaint(complaintID id.ComplaintID, trackingNumber string, citizenID id.UserID, entityID id.EntityID,
	kind, description, location string, now time.Time) (*Complaint, error) {
	if complaintID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "complaint id cannot be nil")
	}
	if trackingNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tracking number cannot be empty")
	}
	if citizenID.IsNil() || entityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "complaint requires a citizen and an entity")
	}
	c := &Complaint{
		ID:             complaintID,
		TrackingNumber: trackingNumber,
		CitizenID:      citizenID,
		EntityID:       entityID,
		Status:         StatusNew,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.setContent(kind, description, location); err != nil {
		return nil, err
	}
	return c, nil
}

// ValidateContent checks new complaint content before any files are stored.
func ValidateContent(kind, description, location string) error {
	return validateContent(trimContent(kind, description, location))
}

func trimContent(kind, description, location string) (string, string, string) {
	return strings.TrimSpace(kind), strings.TrimSpace(description), strings.TrimSpace(location)
}

func validateContent(kind, description, location string) error {
	if kind == "" || len(kind) > MaxKindLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "complaint kind must be between 1 and 255 characters")
	}
	if len([]rune(description)) < MinDescriptionLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "description must be at least 20 characters")
	}
	if len(location) > MaxLocationLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "location must be at most 500 characters")
	}
	return nil
}

func (c *Complaint) setContent(kind, description, location string) error {
	kind, description, location = trimContent(kind, description, location)
	if err := validateContent(kind, description, location); err != nil {
		return err
	}
	c.Kind, c.Description, c.Location = kind, description, location
	return nil
}

// IsLocked reports whether an assignment lock is still running at now.
func (c *Complaint) IsLocked(now time.Time) bool {
	return c.LockExpiresAt != nil && now.Before(*c.LockExpiresAt)
}

// IsAssignedTo reports whether userID is the current assignee.
func (c *Complaint) IsAssignedTo(userID id.UserID) bool {
	return c.AssignedTo != nil && *c.AssignedTo == userID
}

// lockedAgainst reports whether a running lock keeps actor out.
func (c *Complaint) lockedAgainst(actor Actor, now time.Time) bool {
	return c.IsLocked(now) && !actor.IsAdmin() && !c.IsAssignedTo(actor.ID)
}

// CanView reports whether actor may see the full complaint.
func (c *Complaint) CanView(actor Actor) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsCitizen():
		return c.CitizenID == actor.ID
	case actor.IsEmployee():
		return actor.IsEmployeeOf(c.EntityID)
	}
	return false
}

// CanBeUpdatedByCitizen reports whether the owner may still edit content.
// New and declined complaints are editable, and in-progress ones only while
// an information request is open.
func (c *Complaint) CanBeUpdatedByCitizen() bool {
	switch c.Status {
	case StatusNew, StatusDeclined:
		return true
	case StatusInProgress:
		return c.InfoRequested
	}
	return false
}

// CanBeAcceptedByEmployee reports whether the complaint is waiting for an assignee.
func (c *Complaint) CanBeAcceptedByEmployee() bool {
	return c.Status == StatusNew
}

// CanChangeStatus applies the per-status authorization table for a move to to.
func (c *Complaint) CanChangeStatus(to Status, actor Actor) bool {
	if !c.Status.CanTransitionTo(to) {
		return false
	}
	switch c.Status {
	case StatusNew:
		return actor.IsEmployeeOf(c.EntityID) || actor.IsAdmin()
	case StatusInProgress:
		return (actor.IsEmployee() && c.IsAssignedTo(actor.ID)) || actor.IsAdmin()
	case StatusFinished:
		return actor.IsAdmin()
	case StatusDeclined:
		if actor.IsCitizen() && actor.ID == c.CitizenID && to == StatusNew {
			return true
		}
		return actor.IsEmployeeOf(c.EntityID) || actor.IsAdmin()
	}
	return false
}

func errTransition(from, to Status) error {
	return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("cannot change status from %s to %s", from, to))
}

var (
	errLocked       = dErrors.New(dErrors.CodeLocked, "complaint is locked by another employee")
	errOtherEntity  = dErrors.New(dErrors.CodeForbidden, "complaint belongs to another entity")
	errNotAssigned  = dErrors.New(dErrors.CodeForbidden, "only the assigned employee or an admin can do this")
	errNotOwner     = dErrors.New(dErrors.CodeForbidden, "you can only change your own complaints")
	errNotUpdatable = dErrors.New(dErrors.CodeConflict, "complaint cannot be updated in its current status")
)

// guard runs the shared checks for an employee or admin moving the complaint to to.
func (c *Complaint) guard(to Status, actor Actor, now time.Time) error {
	if !c.Status.CanTransitionTo(to) {
		return errTransition(c.Status, to)
	}
	if c.lockedAgainst(actor, now) {
		return errLocked
	}
	if !c.CanChangeStatus(to, actor) {
		if c.Status == StatusNew || c.Status == StatusDeclined {
			return errOtherEntity
		}
		return errNotAssigned
	}
	return nil
}

// CanAccept checks that an employee of the owning entity may take a new complaint.
func (c *Complaint) CanAccept(actor Actor, now time.Time) error {
	if !actor.IsEmployeeOf(c.EntityID) {
		return errOtherEntity
	}
	if c.lockedAgainst(actor, now) {
		return errLocked
	}
	if !c.CanBeAcceptedByEmployee() {
		return dErrors.New(dErrors.CodeConflict, "only new complaints can be accepted")
	}
	return c.guard(StatusInProgress, actor, now)
}

// ApplyAccept assigns actor and locks the complaint for lockTTL.
func (c *Complaint) ApplyAccept(actor Actor, lockTTL time.Duration, now time.Time) {
	c.Status = StatusInProgress
	c.lockFor(actor.ID, lockTTL, now)
	if c.ReviewedAt == nil {
		c.ReviewedAt = &now
	}
	c.touch(now)
}

// CanFinish checks that an in-progress complaint may be resolved by actor.
func (c *Complaint) CanFinish(actor Actor, now time.Time) error {
	if c.Status != StatusInProgress {
		return dErrors.New(dErrors.CodeConflict, "only in-progress complaints can be finished")
	}
	return c.guard(StatusFinished, actor, now)
}

// ApplyFinish resolves the complaint. Callers must check CanFinish first.
func (c *Complaint) ApplyFinish(resolution string, now time.Time) {
	c.Status = StatusFinished
	c.Resolution = strings.TrimSpace(resolution)
	c.ResolvedAt = &now
	c.releaseLock()
	c.clearInfoRequest()
	c.touch(now)
}

// CanDecline checks that a new or in-progress complaint may be declined by actor.
func (c *Complaint) CanDecline(actor Actor, now time.Time) error {
	if c.Status != StatusNew && c.Status != StatusInProgress {
		return dErrors.New(dErrors.CodeConflict, "only new or in-progress complaints can be declined")
	}
	return c.guard(StatusDeclined, actor, now)
}

// ApplyDecline records the reason as the resolution and keeps any assignment.
func (c *Complaint) ApplyDecline(reason string, now time.Time) {
	c.Status = StatusDeclined
	c.Resolution = strings.TrimSpace(reason)
	c.ResolvedAt = &now
	c.releaseLock()
	c.clearInfoRequest()
	c.touch(now)
}

// CanRequestInfo allows the assignee or an admin to ask the citizen for more detail.
func (c *Complaint) CanRequestInfo(actor Actor, now time.Time) error {
	if c.Status != StatusInProgress {
		return dErrors.New(dErrors.CodeConflict, "information can only be requested on in-progress complaints")
	}
	if c.lockedAgainst(actor, now) {
		return errLocked
	}
	if !actor.IsAdmin() && !(actor.IsEmployee() && c.IsAssignedTo(actor.ID)) {
		return errNotAssigned
	}
	return nil
}

// ApplyRequestInfo opens an information request, which makes content editable again.
func (c *Complaint) ApplyRequestInfo(message string, now time.Time) {
	c.InfoRequested = true
	c.InfoRequestMessage = strings.TrimSpace(message)
	c.InfoRequestedAt = &now
	c.touch(now)
}

// CitizenChanges is a partial content update; nil fields are unchanged.
type CitizenChanges struct {
	Kind        *string
	Description *string
	Location    *string
}

// CanCitizenUpdate checks ownership and the editable statuses.
func (c *Complaint) CanCitizenUpdate(actor Actor) error {
	if !actor.IsCitizen() || actor.ID != c.CitizenID {
		return errNotOwner
	}
	if !c.CanBeUpdatedByCitizen() {
		return errNotUpdatable
	}
	return nil
}

// ValidateCitizenChanges checks ch against the content rules without applying it.
func (c *Complaint) ValidateCitizenChanges(ch CitizenChanges) error {
	return validateContent(c.mergedContent(ch))
}

// mergedContent is the trimmed content after ch replaces the fields it sets.
func (c *Complaint) mergedContent(ch CitizenChanges) (kind, description, location string) {
	kind, description, location = c.Kind, c.Description, c.Location
	if ch.Kind != nil {
		kind = *ch.Kind
	}
	if ch.Description != nil {
		description = *ch.Description
	}
	if ch.Location != nil {
		location = *ch.Location
	}
	return trimContent(kind, description, location)
}

// ApplyCitizenUpdate answers a pending info request, and resubmits a declined
// complaint as new with its assignment, lock and resolution cleared. Callers
// validate ch first. It returns the status held before the update.
func (c *Complaint) ApplyCitizenUpdate(ch CitizenChanges, now time.Time) Status {
	from := c.Status
	c.Kind, c.Description, c.Location = c.mergedContent(ch)
	if c.InfoRequested {
		c.clearInfoRequest()
	}
	if c.Status == StatusDeclined {
		c.Status = StatusNew
		c.AssignedTo = nil
		c.releaseLock()
		c.Resolution = ""
		c.ResolvedAt = nil
		c.ReviewedAt = nil
	}
	c.touch(now)
	return from
}

func (c *Complaint) CanUnlock(actor Actor) error {
	if !actor.IsAdmin() && !(actor.IsEmployee() && c.IsAssignedTo(actor.ID)) {
		return errNotAssigned
	}
	if c.LockedAt == nil && c.LockExpiresAt == nil {
		return dErrors.New(dErrors.CodeConflict, "complaint is not locked")
	}
	return nil
}

// ApplyReleaseLock drops the lock and keeps the assignment.
func (c *Complaint) ApplyReleaseLock(now time.Time) {
	c.releaseLock()
	c.touch(now)
}

// LockExpired reports whether the sweeper should return the complaint to new.
// Complaints waiting on citizen information keep their assignee.
func (c *Complaint) LockExpired(now time.Time) bool {
	return c.Status == StatusInProgress && !c.InfoRequested &&
		c.LockExpiresAt != nil && !now.Before(*c.LockExpiresAt)
}

// CanReleaseExpiredLock rechecks LockExpired under the row lock the sweeper holds.
func (c *Complaint) CanReleaseExpiredLock(now time.Time) error {
	if !c.LockExpired(now) {
		return dErrors.New(dErrors.CodeConflict, "complaint lock has not expired")
	}
	return nil
}

// ApplyReleaseExpiredLock returns the complaint to new and clears the assignee.
func (c *Complaint) ApplyReleaseExpiredLock(now time.Time) {
	c.Status = StatusNew
	c.AssignedTo = nil
	c.releaseLock()
	c.touch(now)
}

// CanReopen allows declined complaints to be reopened by staff. Finished
// complaints need an admin.
func (c *Complaint) CanReopen(actor Actor, now time.Time) error {
	if c.Status != StatusDeclined && c.Status != StatusFinished {
		return dErrors.New(dErrors.CodeConflict, "only declined or finished complaints can be reopened")
	}
	if c.Status == StatusFinished && !actor.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "only an admin can reopen a finished complaint")
	}
	return c.guard(StatusInProgress, actor, now)
}

// ApplyReopen moves the complaint back to in_progress. An employee reopening
// takes the assignment and a fresh lock; an admin keeps the current assignee.
func (c *Complaint) ApplyReopen(actor Actor, lockTTL time.Duration, now time.Time) {
	c.Status = StatusInProgress
	c.Resolution = ""
	c.ResolvedAt = nil
	switch {
	case actor.IsEmployee():
		c.lockFor(actor.ID, lockTTL, now)
	case c.AssignedTo != nil:
		c.lockFor(*c.AssignedTo, lockTTL, now)
	}
	c.touch(now)
}

// CanChangeStatusTo is the guarded generic transition used by admins.
func (c *Complaint) CanChangeStatusTo(to Status, actor Actor, now time.Time) error {
	if !to.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid status")
	}
	return c.guard(to, actor, now)
}

// ApplyStatus performs the bookkeeping of a generic transition. A non-empty
// note replaces the admin notes.
func (c *Complaint) ApplyStatus(to Status, note string, now time.Time) {
	switch to {
	case StatusNew:
		c.AssignedTo = nil
		c.releaseLock()
		c.Resolution = ""
		c.ResolvedAt = nil
	case StatusInProgress:
		c.Resolution = ""
		c.ResolvedAt = nil
		if c.ReviewedAt == nil {
			c.ReviewedAt = &now
		}
	case StatusFinished, StatusDeclined:
		c.ResolvedAt = &now
		c.releaseLock()
		c.clearInfoRequest()
	}
	c.Status = to
	if note = strings.TrimSpace(note); note != "" {
		c.AdminNotes = note
	}
	c.touch(now)
}

func (c *Complaint) lockFor(userID id.UserID, ttl time.Duration, now time.Time) {
	assignee := userID
	expires := now.Add(ttl)
	c.AssignedTo = &assignee
	c.LockedAt = &now
	c.LockExpiresAt = &expires
}

func (c *Complaint) releaseLock() {
	c.LockedAt = nil
	c.LockExpiresAt = nil
}

func (c *Complaint) clearInfoRequest() {
	c.InfoRequested = false
	c.InfoRequestMessage = ""
	c.InfoRequestedAt = nil
}

func (c *Complaint) touch(now time.Time) {
	c.Version++
	c.UpdatedAt = now
}

// CountAttachments returns how many images and PDFs are attached.
func (c *Complaint) CountAttachments() (images, pdfs int) {
	for _, a := range c.Attachments {
		switch a.FileType {
		case FileTypeImage:
			images++
		case FileTypePDF:
			pdfs++
		}
	}
	return images, pdfs
}

// FindAttachment looks up an attachment by ID.
func (c *Complaint) FindAttachment(attachmentID id.AttachmentID) (Attachment, bool) {
	for _, a := range c.Attachments {
		if a.ID == attachmentID {
			return a, true
		}
	}
	return Attachment{}, false
}
