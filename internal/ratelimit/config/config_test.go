package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grievance/internal/ratelimit/models"
)

func TestDefaultPolicies(t *testing.T) {
	policies, err := Default()
	require.NoError(t, err)

	assert.Len(t, policies, 11)
	want := []models.Limit{
		{Max: 5, Window: 5 * time.Minute, By: models.ScopeEmail},
		{Max: 20, Window: 5 * time.Minute, By: models.ScopeIP},
	}
	if diff := cmp.Diff(want, policies["login"].Limits); diff != "" {
		t.Errorf("login limits mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 24*time.Hour, policies["create-complaint"].Limits[1].Window)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("login:\n  - {max: 1, window: 10s, by: ip}\n"), 0o600))

	policies, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []models.Limit{{Max: 1, Window: 10 * time.Second, By: models.ScopeIP}}, policies["login"].Limits)
	assert.Contains(t, policies, "register")
}

func TestParseRejectsInvalidPolicies(t *testing.T) {
	_, err := Parse([]byte("api:\n  - {max: 0, window: 1m, by: ip}\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("api:\n  - {max: 1, window: 1m, by: tenant}\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("api: []\n"))
	assert.Error(t, err)
}
