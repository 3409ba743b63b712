package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceworks/billing-core/internal/models"
)

func testCaches(t *testing.T) map[string]Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	redis, err := NewRedis(mr.Addr(), "", 0, time.Minute, time.Hour)
	require.NoError(t, err)
	return map[string]Cache{
		"redis":  redis,
		"memory": NewMemory(time.Hour),
	}
}

func TestSetGetDelete(t *testing.T) {
	for name, c := range testCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, c.Set(ctx, "k1", "v1", time.Minute))
			got, err := c.Get(ctx, "k1")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			// Structs round-trip as JSON.
			require.NoError(t, c.Set(ctx, "k2", map[string]int{"n": 7}, time.Minute))
			got, err = c.Get(ctx, "k2")
			require.NoError(t, err)
			assert.JSONEq(t, `{"n":7}`, string(got))

			require.NoError(t, c.Delete(ctx, "k1"))
			_, err = c.Get(ctx, "k1")
			assert.Error(t, err)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	for name, c := range testCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			session := &models.UserSession{
				ID:             "tok-1",
				UserID:         "u1",
				OrganizationID: "org-1",
				Role:           "admin",
			}

			require.NoError(t, c.SetSession(ctx, session))
			got, err := c.GetSession(ctx, "tok-1")
			require.NoError(t, err)
			assert.Equal(t, "u1", got.UserID)
			assert.Equal(t, "org-1", got.OrganizationID)
			assert.False(t, got.LastActivity.IsZero())

			require.NoError(t, c.InvalidateSession(ctx, "tok-1"))
			_, err = c.GetSession(ctx, "tok-1")
			assert.Error(t, err)
		})
	}
}

func TestPushAuditEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedis(mr.Addr(), "", 0, time.Minute, time.Hour)
	require.NoError(t, err)

	require.NoError(t, c.PushAuditEvent(context.Background(), []byte(`{"a":1}`)))
	require.NoError(t, c.PushAuditEvent(context.Background(), []byte(`{"a":2}`)))

	items, err := mr.List("audit:events")
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, items)
}

func TestHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedis(mr.Addr(), "", 0, time.Minute, time.Hour)
	require.NoError(t, err)

	assert.NoError(t, c.HealthCheck(context.Background()))
	assert.NoError(t, NewMemory(time.Hour).HealthCheck(context.Background()))
}
