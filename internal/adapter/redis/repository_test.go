package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-watch/internal/domain"
)

func sampleZones() []domain.Zone {
	fetched := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)
	return []domain.Zone{
		{ID: 10, Name: "Jardim Boa Esperança", Lat: -23.9420, Lon: -46.3050, Status: domain.StatusNormal},
		{
			ID: 2, Name: "Enseada", Lat: -23.9785, Lon: -46.2289, Votes: 1,
			Weather:   &domain.WeatherSnapshot{HourlyProbabilityPct: 85, FetchedAt: fetched},
			Status:    domain.StatusAttention,
			RiskLevel: domain.RiskMedium,
			UpdatedAt: fetched,
		},
	}
}

func TestEncodeDecodeFields(t *testing.T) {
	zones := sampleZones()
	values, err := encodeFields(zones)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Contains(t, values, "10")
	assert.Contains(t, values, "2")

	fields := make(map[string]string, len(values))
	for k, v := range values {
		fields[k] = v.(string)
	}
	got, err := decodeFields(fields)
	require.NoError(t, err)

	want := []domain.Zone{zones[1], zones[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("zones mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeFields_Empty(t *testing.T) {
	got, err := decodeFields(map[string]string{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeFields_Corrupt(t *testing.T) {
	_, err := decodeFields(map[string]string{"1": "{"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode zone field 1")
}

func TestDecodeFields_MismatchedID(t *testing.T) {
	_, err := decodeFields(map[string]string{"1": `{"id": 3, "name": "x"}`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds zone id 3")
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-url", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis URL")
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := Connect(ctx, "redis://127.0.0.1:1/0", "k")
	require.Error(t, err)
}

func TestNewRepository(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()
	repo := NewRepository(rdb, "floodwatch:zones")
	assert.Equal(t, "floodwatch:zones", repo.key)
}
