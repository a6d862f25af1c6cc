package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/priority-appointment-scheduling/internal/config"
)

func TestOpen_InMemory(t *testing.T) {
	a, err := Open(context.Background(), config.Config{ShutdownTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.PgPool)
	assert.Nil(t, a.Redis)
	require.NotNil(t, a.Service)

	info, err := a.Service.CreateCalendar(context.Background(), "Dr. Memory")
	require.NoError(t, err)
	require.NoError(t, a.Service.Save(context.Background(), info.ID))
	require.NoError(t, a.Service.Load(context.Background(), info.ID))
}

func TestOpen_BadPostgresDSN(t *testing.T) {
	_, err := Open(context.Background(), config.Config{PostgresDSN: "not a dsn ::"}, zerolog.Nop())
	assert.Error(t, err)
}
