package refreshrepofake_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-clinic-auth/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-clinic-auth/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

func TestFakeRefreshTokenRepo(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	iat := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(&refresh.StoredRefreshToken{Token: "b", UserID: "u-1", Iat: iat.Add(time.Minute), ExpiresAt: iat.Add(time.Hour)}))
	require.NoError(t, repo.Upsert(&refresh.StoredRefreshToken{Token: "a", UserID: "u-1", Iat: iat, ExpiresAt: iat.Add(time.Hour)}))
	require.NoError(t, repo.Upsert(&refresh.StoredRefreshToken{Token: "c", UserID: "u-2", Iat: iat, ExpiresAt: iat.Add(time.Hour)}))

	list, err := repo.ListByUserID("u-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].Token)

	require.NoError(t, repo.Delete("a"))
	require.ErrorIs(t, repo.Delete("a"), refresh.ErrNotFound)

	n, err := repo.DeleteAllForUser("u-1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = repo.Get("b")
	require.ErrorIs(t, err, refresh.ErrNotFound)

	got, err := repo.Get("c")
	require.NoError(t, err)
	require.Equal(t, "u-2", got.UserID)
}
