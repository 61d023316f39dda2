package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestParseRole(t *testing.T) {
	role, err := domain.ParseRole(" Admin ")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, role)

	_, err = domain.ParseRole("superuser")
	require.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestNormalizeEmail(t *testing.T) {
	email, err := domain.NormalizeEmail("  Jane@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", email)

	for _, raw := range []string{"", "jane", "Jane <jane@example.com>"} {
		_, err := domain.NormalizeEmail(raw)
		require.ErrorIs(t, err, domain.ErrEmailInvalid, raw)
	}
}

func TestCallerOrderScope(t *testing.T) {
	require.Empty(t, domain.Caller{UserID: "admin-1", Role: domain.RoleAdmin}.OrderScope())
	require.Equal(t, "user-1", domain.Caller{UserID: "user-1", Role: domain.RoleCustomer}.OrderScope())
}
