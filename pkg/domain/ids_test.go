package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "grievance/pkg/domain-errors"
)

func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

func TestParseID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE users;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEntityID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errUser := ParseUserID(validUUID)
		_, errEntity := ParseEntityID(validUUID)
		_, errComplaint := ParseComplaintID(validUUID)
		_, errAttachment := ParseAttachmentID(validUUID)
		_, errNotification := ParseNotificationID(validUUID)

		require.NoError(t, errUser)
		require.NoError(t, errEntity)
		require.NoError(t, errComplaint)
		require.NoError(t, errAttachment)
		require.NoError(t, errNotification)
	})

	for _, input := range []string{"", "invalid", uuid.Nil.String()} {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errUser := ParseUserID(input)
			_, errEntity := ParseEntityID(input)
			_, errComplaint := ParseComplaintID(input)
			_, errAttachment := ParseAttachmentID(input)
			_, errNotification := ParseNotificationID(input)

			require.Error(t, errUser)
			require.Error(t, errEntity)
			require.Error(t, errComplaint)
			require.Error(t, errAttachment)
			require.Error(t, errNotification)
		})
	}
}

func TestIDJSON(t *testing.T) {
	raw := uuid.New()
	payload := struct {
		UserID   UserID    `json:"user_id"`
		EntityID *EntityID `json:"entity_id,omitempty"`
	}{UserID: UserID(raw)}

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"`+raw.String()+`"}`, string(body))

	var decoded struct {
		UserID UserID `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, UserID(raw), decoded.UserID)
}

func TestRole(t *testing.T) {
	for _, r := range []string{"citizen", "employee", "admin"} {
		role, err := ParseRole(r)
		require.NoError(t, err)
		assert.True(t, role.IsValid())
	}

	_, err := ParseRole("superuser")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestPagination(t *testing.T) {
	t.Run("clamps requests", func(t *testing.T) {
		assert.Equal(t, PageRequest{Page: 1, PerPage: DefaultPerPage}, NewPageRequest(0, 0))
		assert.Equal(t, PageRequest{Page: 3, PerPage: MaxPerPage}, NewPageRequest(3, 500))
	})

	t.Run("slices in-memory items", func(t *testing.T) {
		items := []int{1, 2, 3, 4, 5}
		page := Paginate(items, NewPageRequest(2, 2))
		assert.Equal(t, []int{3, 4}, page.Items)
		assert.Equal(t, 5, page.Total)
		assert.Equal(t, 3, page.LastPage())

		beyond := Paginate(items, NewPageRequest(9, 2))
		assert.Empty(t, beyond.Items)
	})

	t.Run("empty result still has one page", func(t *testing.T) {
		assert.Equal(t, 1, Paginate([]int{}, NewPageRequest(1, 15)).LastPage())
	})
}
