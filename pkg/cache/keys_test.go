package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/govee-light-management-sub000/message"
)

func newTestDomain(t *testing.T) *Domain {
	t.Helper()
	store, err := New[any](context.Background(), Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewDomain(store, DefaultTTLs())
}

func TestAPIKeyValidation(t *testing.T) {
	domain := newTestDomain(t)

	assert.False(t, domain.APIKeyValid("abc123valid"))
	require.NoError(t, domain.SetAPIKeyValid("abc123valid"))
	assert.True(t, domain.APIKeyValid("abc123valid"))
	assert.False(t, domain.APIKeyValid("other"))
}

func TestLightsRoundTrip(t *testing.T) {
	domain := newTestDomain(t)

	lights := []message.Light{
		{DeviceID: "AA:BB", Model: "H6159", Name: "Desk"},
		{DeviceID: "CC:DD", Model: "H6003", Name: "Shelf"},
	}
	require.NoError(t, domain.SetLights("abc", lights))

	got, ok := domain.Lights("abc")
	require.True(t, ok)
	assert.Equal(t, lights, got)

	_, ok = domain.Lights("unknown")
	assert.False(t, ok)

	domain.InvalidateLights("abc")
	_, ok = domain.Lights("abc")
	assert.False(t, ok)
}

func TestGroupsRoundTripAndInvalidate(t *testing.T) {
	domain := newTestDomain(t)

	groups := []message.Group{{ID: "g1", Name: "Office", LightIDs: []string{"AA:BB"}}}
	require.NoError(t, domain.SetGroups("abc", groups))

	got, ok := domain.Groups("abc")
	require.True(t, ok)
	assert.Equal(t, groups, got)

	domain.InvalidateGroups("abc")
	_, ok = domain.Groups("abc")
	assert.False(t, ok)
}

func TestInvalidateAPIKeyDropsWholeCredential(t *testing.T) {
	domain := newTestDomain(t)

	require.NoError(t, domain.SetAPIKeyValid("abc"))
	require.NoError(t, domain.SetLights("abc", []message.Light{{DeviceID: "AA:BB"}}))
	require.NoError(t, domain.SetGroups("abc", []message.Group{{ID: "g1"}}))
	require.NoError(t, domain.SetAPIKeyValid("other"))

	removed := domain.InvalidateAPIKey("abc")
	assert.Equal(t, 3, removed)
	assert.False(t, domain.APIKeyValid("abc"))
	assert.True(t, domain.APIKeyValid("other"), "other credentials must be untouched")
}
