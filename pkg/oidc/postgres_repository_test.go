package oidc

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresBindingRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewPostgresBindingRepository(pool)
	_, err = pool.Exec(ctx, repo.Schema())
	require.NoError(t, err)

	t.Run("GetBindingWhenUnbound", func(t *testing.T) {
		binding, err := repo.GetBinding(ctx)
		require.NoError(t, err)
		assert.Nil(t, binding)
	})

	t.Run("FirstBindWins", func(t *testing.T) {
		first, err := repo.BindIdentity(ctx, "https://idp.example.com", "abc")
		require.NoError(t, err)
		assert.Equal(t, "abc", first.Subject)
		assert.False(t, first.BoundAt.IsZero())

		second, err := repo.BindIdentity(ctx, "https://idp.example.com", "xyz")
		require.NoError(t, err)
		assert.Equal(t, "abc", second.Subject, "later binds return the original binding")

		binding, err := repo.GetBinding(ctx)
		require.NoError(t, err)
		require.NotNil(t, binding)
		assert.Equal(t, "https://idp.example.com", binding.Issuer)
		assert.Equal(t, "abc", binding.Subject)
	})

	t.Run("ClearBinding", func(t *testing.T) {
		require.NoError(t, repo.ClearBinding(ctx))

		binding, err := repo.GetBinding(ctx)
		require.NoError(t, err)
		assert.Nil(t, binding)

		rebound, err := repo.BindIdentity(ctx, "https://idp.example.com", "new-admin")
		require.NoError(t, err)
		assert.Equal(t, "new-admin", rebound.Subject)
	})
}
