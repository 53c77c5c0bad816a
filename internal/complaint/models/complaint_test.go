package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
)

var (
	now     = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	lockTTL = 30 * time.Minute
)

type fixture struct {
	entity   id.EntityID
	citizen  Actor
	employee Actor
	coworker Actor
	outsider Actor
	admin    Actor
}

func newFixture() fixture {
	entity := id.EntityID(uuid.New())
	other := id.EntityID(uuid.New())
	return fixture{
		entity:   entity,
		citizen:  Actor{ID: id.UserID(uuid.New()), Role: id.RoleCitizen},
		employee: Actor{ID: id.UserID(uuid.New()), Role: id.RoleEmployee, EntityID: &entity},
		coworker: Actor{ID: id.UserID(uuid.New()), Role: id.RoleEmployee, EntityID: &entity},
		outsider: Actor{ID: id.UserID(uuid.New()), Role: id.RoleEmployee, EntityID: &other},
		admin:    Actor{ID: id.UserID(uuid.New()), Role: id.RoleAdmin},
	}
}

func (f fixture) complaint(t *testing.T) *Complaint {
	t.Helper()
	c, err := NewComplaint(id.ComplaintID(uuid.New()), "CMP-2025-000001", f.citizen.ID, f.entity,
		"Road damage", "A large pothole on the main street near the school.", "Main St", now)
	require.NoError(t, err)
	return c
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" In_Progress ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s)

	_, err = ParseStatus("closed")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestAllowedTransitions(t *testing.T) {
	assert.ElementsMatch(t, []Status{StatusInProgress, StatusDeclined}, AllowedTransitions(StatusNew))
	assert.ElementsMatch(t, []Status{StatusFinished, StatusDeclined}, AllowedTransitions(StatusInProgress))
	assert.ElementsMatch(t, []Status{StatusInProgress}, AllowedTransitions(StatusFinished))
	assert.ElementsMatch(t, []Status{StatusNew, StatusInProgress}, AllowedTransitions(StatusDeclined))
	assert.Empty(t, AllowedTransitions(Status("archived")))
}

func TestNewComplaintInvariants(t *testing.T) {
	f := newFixture()
	_, err := NewComplaint(id.ComplaintID(uuid.New()), "CMP-2025-000001", f.citizen.ID, f.entity,
		"Road damage", "too short", "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	c := f.complaint(t)
	assert.Equal(t, StatusNew, c.Status)
	assert.Equal(t, 1, c.Version)
	assert.False(t, c.IsLocked(now))
}

func TestCanChangeStatus(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name   string
		status Status
		assign *Actor
		to     Status
		actor  Actor
		want   bool
	}{
		{name: "new: entity employee may accept", status: StatusNew, to: StatusInProgress, actor: f.employee, want: true},
		{name: "new: other entity employee may not", status: StatusNew, to: StatusInProgress, actor: f.outsider},
		{name: "new: admin may decline", status: StatusNew, to: StatusDeclined, actor: f.admin, want: true},
		{name: "new: citizen may not", status: StatusNew, to: StatusDeclined, actor: f.citizen},
		{name: "new: finished is not a target", status: StatusNew, to: StatusFinished, actor: f.admin},
		{name: "in progress: assignee may finish", status: StatusInProgress, assign: &f.employee, to: StatusFinished, actor: f.employee, want: true},
		{name: "in progress: coworker may not", status: StatusInProgress, assign: &f.employee, to: StatusFinished, actor: f.coworker},
		{name: "in progress: admin may decline", status: StatusInProgress, assign: &f.employee, to: StatusDeclined, actor: f.admin, want: true},
		{name: "finished: admin may reopen", status: StatusFinished, to: StatusInProgress, actor: f.admin, want: true},
		{name: "finished: employee may not", status: StatusFinished, assign: &f.employee, to: StatusInProgress, actor: f.employee},
		{name: "declined: owner may resubmit", status: StatusDeclined, to: StatusNew, actor: f.citizen, want: true},
		{name: "declined: owner may not reopen", status: StatusDeclined, to: StatusInProgress, actor: f.citizen},
		{name: "declined: entity employee may reopen", status: StatusDeclined, to: StatusInProgress, actor: f.employee, want: true},
		{name: "declined: outsider may not", status: StatusDeclined, to: StatusInProgress, actor: f.outsider},
		{name: "unknown status grants nothing", status: Status("archived"), to: StatusNew, actor: f.admin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := f.complaint(t)
			c.Status = tt.status
			if tt.assign != nil {
				c.AssignedTo = &tt.assign.ID
			}
			assert.Equal(t, tt.want, c.CanChangeStatus(tt.to, tt.actor))
		})
	}
}

func TestCanBeUpdatedByCitizen(t *testing.T) {
	f := newFixture()
	c := f.complaint(t)
	assert.True(t, c.CanBeUpdatedByCitizen())

	c.Status = StatusInProgress
	assert.False(t, c.CanBeUpdatedByCitizen())
	c.InfoRequested = true
	assert.True(t, c.CanBeUpdatedByCitizen())

	c.Status = StatusFinished
	assert.False(t, c.CanBeUpdatedByCitizen())
	c.Status = StatusDeclined
	assert.True(t, c.CanBeUpdatedByCitizen())
}

func TestAcceptLocksAndAssigns(t *testing.T) {
	f := newFixture()
	c := f.complaint(t)

	require.NoError(t, c.CanAccept(f.employee, now))
	c.ApplyAccept(f.employee, lockTTL, now)

	assert.Equal(t, StatusInProgress, c.Status)
	assert.True(t, c.IsAssignedTo(f.employee.ID))
	assert.True(t, c.IsLocked(now.Add(lockTTL-time.Second)))
	assert.False(t, c.IsLocked(now.Add(lockTTL)))
	assert.Equal(t, 2, c.Version)

	t.Run("cannot be accepted twice", func(t *testing.T) {
		err := c.CanAccept(f.employee, now)
		assert.ErrorIs(t, err, dErrors.New(dErrors.CodeConflict, "only new complaints can be accepted"))
	})
	t.Run("coworker is locked out", func(t *testing.T) {
		assert.ErrorIs(t, c.CanFinish(f.coworker, now), errLocked)
		assert.ErrorIs(t, c.CanDecline(f.coworker, now), errLocked)
		assert.ErrorIs(t, c.CanRequestInfo(f.coworker, now), errLocked)
	})
	t.Run("admin bypasses the lock", func(t *testing.T) {
		assert.NoError(t, c.CanFinish(f.admin, now))
	})
	t.Run("outsider cannot accept", func(t *testing.T) {
		fresh := f.complaint(t)
		assert.ErrorIs(t, fresh.CanAccept(f.outsider, now), errOtherEntity)
	})
}

func TestFinishReleasesLockKeepsAssignment(t *testing.T) {
	f := newFixture()
	c := f.complaint(t)
	c.ApplyAccept(f.employee, lockTTL, now)
	c.ApplyRequestInfo("Please attach a photo of the area.", now)

	require.NoError(t, c.CanFinish(f.employee, now))
	c.ApplyFinish("Pothole was filled by the road crew today.", now.Add(time.Minute))

	assert.Equal(t, StatusFinished, c.Status)
	assert.Nil(t, c.LockExpiresAt)
	assert.True(t, c.IsAssignedTo(f.employee.ID))
	assert.False(t, c.InfoRequested)
	require.NotNil(t, c.ResolvedAt)
}

func TestDecline(t *testing.T) {
	f := newFixture()
	c := f.complaint(t)
	require.NoError(t, c.CanDecline(f.employee, now))
	c.ApplyDecline("This is outside of our jurisdiction entirely.", now)
	assert.Equal(t, StatusDeclined, c.Status)
	assert.Equal(t, "This is outside of our jurisdiction entirely.", c.Resolution)

	assert.Error(t, c.CanDecline(f.employee, now), "declined complaints cannot be declined again")
}

func TestCitizenUpdate(t *testing.T) {
	f := newFixture()

	t.Run("answering an info request clears it", func(t *testing.T) {
		c := f.complaint(t)
		c.ApplyAccept(f.employee, lockTTL, now)
		require.Error(t, c.CanCitizenUpdate(f.citizen))

		c.ApplyRequestInfo("Which side of the street?", now)
		require.NoError(t, c.CanCitizenUpdate(f.citizen))
		loc := "North side of Main St"
		from := c.ApplyCitizenUpdate(CitizenChanges{Location: &loc}, now)

		assert.Equal(t, StatusInProgress, from)
		assert.Equal(t, StatusInProgress, c.Status)
		assert.False(t, c.InfoRequested)
		assert.Equal(t, loc, c.Location)
		assert.True(t, c.IsAssignedTo(f.employee.ID))
	})

	t.Run("updating a declined complaint resubmits it", func(t *testing.T) {
		c := f.complaint(t)
		c.ApplyAccept(f.employee, lockTTL, now)
		c.ApplyDecline("Insufficient detail to act on this report.", now)

		require.NoError(t, c.CanCitizenUpdate(f.citizen))
		from := c.ApplyCitizenUpdate(CitizenChanges{}, now)

		assert.Equal(t, StatusDeclined, from)
		assert.Equal(t, StatusNew, c.Status)
		assert.Nil(t, c.AssignedTo)
		assert.Nil(t, c.LockExpiresAt)
		assert.Empty(t, c.Resolution)
	})

	t.Run("only the owner", func(t *testing.T) {
		c := f.complaint(t)
		stranger := Actor{ID: id.UserID(uuid.New()), Role: id.RoleCitizen}
		assert.ErrorIs(t, c.CanCitizenUpdate(stranger), errNotOwner)
	})

	t.Run("invalid content is rejected", func(t *testing.T) {
		c := f.complaint(t)
		short := "short"
		assert.Error(t, c.ValidateCitizenChanges(CitizenChanges{Description: &short}))
		assert.NotEqual(t, short, c.Description, "validation does not mutate")
	})

	t.Run("applied changes are trimmed and keep unset fields", func(t *testing.T) {
		c := f.complaint(t)
		c.ApplyAccept(f.employee, lockTTL, now)
		c.ApplyDecline("Insufficient detail to act on this report.", now)
		kind, description := c.Kind, "  The pothole is now half a metre wide.  "
		require.NoError(t, c.ValidateCitizenChanges(CitizenChanges{Description: &description}))

		c.ApplyCitizenUpdate(CitizenChanges{Description: &description}, now)

		assert.Equal(t, "The pothole is now half a metre wide.", c.Description)
		assert.Equal(t, kind, c.Kind)
	})

	t.Run("finished is frozen", func(t *testing.T) {
		c := f.complaint(t)
		c.Status = StatusFinished
		assert.ErrorIs(t, c.CanCitizenUpdate(f.citizen), errNotUpdatable)
	})
}

func TestExpiredLockRelease(t *testing.T) {
	f := newFixture()
	c := f.complaint(t)
	c.ApplyAccept(f.employee, lockTTL, now)

	assert.False(t, c.LockExpired(now))
	later := now.Add(lockTTL)
	require.True(t, c.LockExpired(later))
	require.NoError(t, c.CanReleaseExpiredLock(later))
	c.ApplyReleaseExpiredLock(later)
	assert.Equal(t, StatusNew, c.Status)
	assert.Nil(t, c.AssignedTo)

	t.Run("info requested keeps the lock", func(t *testing.T) {
		c := f.complaint(t)
		c.ApplyAccept(f.employee, lockTTL, now)
		c.ApplyRequestInfo("Send a photo please.", now)
		assert.False(t, c.LockExpired(later))
	})
}

func TestUnlock(t *testing.T) {
	f := newFixture()
	c := f.complaint(t)
	c.ApplyAccept(f.employee, lockTTL, now)

	assert.ErrorIs(t, c.CanUnlock(f.coworker), errNotAssigned)
	require.NoError(t, c.CanUnlock(f.employee))
	c.ApplyReleaseLock(now)
	assert.False(t, c.IsLocked(now))
	assert.True(t, c.IsAssignedTo(f.employee.ID))
	assert.NoError(t, c.CanFinish(f.employee, now))
	assert.True(t, dErrors.HasCode(c.CanUnlock(f.employee), dErrors.CodeConflict))
}

func TestReopen(t *testing.T) {
	f := newFixture()

	t.Run("entity employee reopens a declined complaint", func(t *testing.T) {
		c := f.complaint(t)
		c.ApplyDecline("Duplicate of an earlier complaint filed.", now)
		require.NoError(t, c.CanReopen(f.coworker, now))
		c.ApplyReopen(f.coworker, lockTTL, now)
		assert.Equal(t, StatusInProgress, c.Status)
		assert.True(t, c.IsAssignedTo(f.coworker.ID))
		assert.True(t, c.IsLocked(now))
		assert.Empty(t, c.Resolution)
	})

	t.Run("finished needs an admin", func(t *testing.T) {
		c := f.complaint(t)
		c.ApplyAccept(f.employee, lockTTL, now)
		c.ApplyFinish("Resolved the issue with a full repair.", now)
		assert.True(t, dErrors.HasCode(c.CanReopen(f.employee, now), dErrors.CodeForbidden))
		require.NoError(t, c.CanReopen(f.admin, now))
		c.ApplyReopen(f.admin, lockTTL, now)
		assert.True(t, c.IsAssignedTo(f.employee.ID), "admin keeps the previous assignee")
	})

	t.Run("new cannot be reopened", func(t *testing.T) {
		assert.True(t, dErrors.HasCode(f.complaint(t).CanReopen(f.admin, now), dErrors.CodeConflict))
	})
}

func TestAdminChangeStatus(t *testing.T) {
	f := newFixture()
	c := f.complaint(t)

	err := c.CanChangeStatusTo(StatusFinished, f.admin, now)
	assert.ErrorIs(t, err, errTransition(StatusNew, StatusFinished))

	require.NoError(t, c.CanChangeStatusTo(StatusDeclined, f.admin, now))
	c.ApplyStatus(StatusDeclined, "Escalated and closed by admin", now)
	assert.Equal(t, StatusDeclined, c.Status)
	assert.Equal(t, "Escalated and closed by admin", c.AdminNotes)

	require.NoError(t, c.CanChangeStatusTo(StatusNew, f.admin, now))
	c.ApplyStatus(StatusNew, "", now)
	assert.Equal(t, "Escalated and closed by admin", c.AdminNotes, "empty note keeps previous notes")
	assert.Nil(t, c.ResolvedAt)
}
