package api_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treasurehunt/server/internal/api"
	"github.com/treasurehunt/server/internal/model"
)

func newClientServer(t *testing.T) (*testServer, *api.Client) {
	t.Helper()
	ts := newTestServer(t, testConfig())
	srv := httptest.NewServer(ts.handler)
	t.Cleanup(srv.Close)
	return ts, api.NewClient(srv.URL)
}

func TestClient_Healthcheck(t *testing.T) {
	_, client := newClientServer(t)
	require.NoError(t, client.Healthcheck(t.Context()))
}

func TestClient_NearbyAndDiscover(t *testing.T) {
	ts, client := newClientServer(t)
	tr := ts.createTreasure(t, model.Treasure{
		Name: "Idol", Latitude: 40.0, Longitude: -74.0,
		DiscoveryRadius: 50, Points: 100, IsActive: true,
	})

	nearby, err := client.Nearby(t.Context(), 40.0001, -74.0)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, tr.ID, nearby[0].ID)

	// Nearby issued a guest session key; the claim reuses it
	require.NotEmpty(t, client.SessionKey())

	result, err := client.Discover(t.Context(), tr.ID, 40.0001, -74.0)
	require.NoError(t, err)
	assert.Equal(t, 100, result.PointsEarned)
	assert.Equal(t, 1, result.TreasuresFound)

	// Same client, same identity: second claim conflicts
	_, err = client.Discover(t.Context(), tr.ID, 40.0001, -74.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), api.CodeAlreadyDiscovered)
}

func TestClient_Leaderboard(t *testing.T) {
	ts, client := newClientServer(t)
	tr := ts.createTreasure(t, model.Treasure{
		Name: "Idol", Latitude: 40.0, Longitude: -74.0,
		DiscoveryRadius: 50, Points: 100, IsActive: true,
	})

	_, err := client.Discover(t.Context(), tr.ID, 40.0, -74.0)
	require.NoError(t, err)

	standings, err := client.Leaderboard(t.Context(), 5)
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.Equal(t, 100, standings[0].TotalScore)
}

func TestClient_StatsRequiresAdminKey(t *testing.T) {
	_, client := newClientServer(t)

	_, err := client.Stats(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), api.CodeUnauthorized)

	_, err = client.WithAdminKey(testAdminKey).Stats(t.Context())
	require.NoError(t, err)
}
