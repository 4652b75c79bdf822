package bootstrap

import (
	"context"
	"database/sql"
	"testing"

	"github.com/alicebob/miniredis/v2"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRegistersEveryPlatform(t *testing.T) {
	cfg := *config.LoadConfig()
	cfg.SecretKey = "0123456789abcdef0123456789abcdef"

	deps, err := Build(context.Background(), cfg, &sql.DB{}, nil)
	require.NoError(t, err)

	for _, p := range []models.Platform{models.PlatformTwitter, models.PlatformYoutube, models.PlatformInstagram, models.PlatformLinkedIn} {
		assert.True(t, deps.Registry.Supports(p), p)
	}
	assert.NotNil(t, deps.Coordinator)
	assert.NotNil(t, deps.Trigger)
	assert.NotNil(t, deps.Syncer)
}

func TestBuildRejectsShortSecret(t *testing.T) {
	cfg := *config.LoadConfig()
	cfg.SecretKey = "short"

	_, err := Build(context.Background(), cfg, &sql.DB{}, nil)
	assert.Error(t, err)
}

func TestOpenRedis(t *testing.T) {
	rdb, err := OpenRedis(context.Background(), config.Config{})
	require.NoError(t, err)
	assert.Nil(t, rdb)

	mr := miniredis.RunT(t)
	rdb, err = OpenRedis(context.Background(), config.Config{RedisURI: mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, rdb)
	rdb.Close()
}
