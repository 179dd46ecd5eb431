package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-watch/internal/domain"
)

func sampleZones() []domain.Zone {
	fetched := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)
	return []domain.Zone{
		{
			ID: 1, Name: "Pitangueiras", Lat: -23.9930, Lon: -46.2564, Votes: 2,
			Weather:   &domain.WeatherSnapshot{PrecipitationMM: 3.2, WeatherCode: 61, FetchedAt: fetched},
			Status:    domain.StatusAttention,
			RiskLevel: domain.RiskMedium,
			Score:     20,
			Severity:  domain.RiskMedium,
			UpdatedAt: fetched,
		},
		{ID: 2, Name: "Enseada", Lat: -23.9785, Lon: -46.2289, Status: domain.StatusNormal, RiskLevel: domain.RiskLow, Severity: domain.RiskLow},
	}
}

func TestRepository_LoadMissingFile(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "zones.json"))
	zones, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, zones)
}

func TestRepository_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")
	repo := NewRepository(path)
	want := sampleZones()

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("zones mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestRepository_SaveOverwrites(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "zones.json"))
	require.NoError(t, repo.Save(context.Background(), sampleZones()))
	require.NoError(t, repo.Save(context.Background(), sampleZones()[:1]))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRepository_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")
	repo := NewRepository(path)
	require.NoError(t, repo.Save(context.Background(), sampleZones()[1:]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "\n    {\n        \"id\": 2,")
	assert.Contains(t, s, `"weather": null`)
	assert.Contains(t, s, `"status": "Normal"`)
}

func TestRepository_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewRepository(path).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode zones")
}

func TestRepository_SaveMissingDirectory(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "missing", "zones.json"))
	err := repo.Save(context.Background(), sampleZones())
	require.Error(t, err)
}

func TestRepository_SaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewRepository(filepath.Join(t.TempDir(), "zones.json")).Save(ctx, sampleZones())
	require.ErrorIs(t, err, context.Canceled)
}

func TestEncode_NilIsEmptyArray(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}
