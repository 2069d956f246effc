package admin

import (
	"strings"
	"testing"

	"github.com/sparcky/panel-api/internal/apperror"
	"github.com/sparcky/panel-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabled(t *testing.T) {
	cases := []struct {
		flag, env string
		want      bool
	}{
		{"", "production", false},
		{"", "PRODUCTION", false},
		{"", "development", true},
		{"", "", true},
		{"true", "production", true},
		{"YES", "production", true},
		{"on", "production", true},
		{"1", "production", true},
		{"false", "production", false},
		{"nope", "staging", true},
	}
	for _, tc := range cases {
		g := NewGuard(config.AdminConfig{EnableFlag: tc.flag, Environment: tc.env})
		assert.Equal(t, tc.want, g.Enabled(), "flag=%q env=%q", tc.flag, tc.env)
	}
}

func TestAssertEnabled_ProductionLockedOut(t *testing.T) {
	g := NewGuard(config.AdminConfig{Environment: "production"})
	err := g.AssertEnabled()
	require.Error(t, err)
	require.True(t, apperror.Is(err, apperror.TypeForbidden))

	_, err = g.AllowedCollections()
	require.True(t, apperror.Is(err, apperror.TypeForbidden))
}

func TestAllowedCollections_FallbackInDevelopment(t *testing.T) {
	g := NewGuard(config.AdminConfig{Environment: "development"})
	got, err := g.AllowedCollections()
	require.NoError(t, err)
	require.Equal(t, []string{"botconfigs", "botconfigurations", "guildconfigurations", "logs"}, got)
}

func TestAllowedCollections_FallbackUsesConfiguredGuildCollectionAndDedupes(t *testing.T) {
	g := NewGuard(config.AdminConfig{GuildConfigCollection: "logs"})
	got, err := g.AllowedCollections()
	require.NoError(t, err)
	require.Equal(t, []string{"botconfigs", "botconfigurations", "logs"}, got)

	g = NewGuard(config.AdminConfig{GuildConfigCollection: "GuildSettings"})
	got, err = g.AllowedCollections()
	require.NoError(t, err)
	require.Contains(t, got, "GuildSettings")
}

func TestAllowedCollections_CSV(t *testing.T) {
	g := NewGuard(config.AdminConfig{AllowedCollections: " warns, logs ,,warns,economy "})
	got, err := g.AllowedCollections()
	require.NoError(t, err)
	require.Equal(t, []string{"economy", "logs", "warns"}, got)

	// a CSV of blanks falls back instead of allowing everything
	g = NewGuard(config.AdminConfig{AllowedCollections: " , ,"})
	got, err = g.AllowedCollections()
	require.NoError(t, err)
	require.Len(t, got, 4)
}

func TestAssertCollectionAllowed(t *testing.T) {
	g := NewGuard(config.AdminConfig{AllowedCollections: "logs,warns"})

	name, err := g.AssertCollectionAllowed(" logs ")
	require.NoError(t, err)
	require.Equal(t, "logs", name)

	_, err = g.AssertCollectionAllowed("")
	require.True(t, apperror.Is(err, apperror.TypeBadRequest))

	_, err = g.AssertCollectionAllowed("system.users;drop")
	require.True(t, apperror.Is(err, apperror.TypeBadRequest))

	_, err = g.AssertCollectionAllowed(strings.Repeat("a", 121))
	require.True(t, apperror.Is(err, apperror.TypeBadRequest))

	_, err = g.AssertCollectionAllowed("users")
	require.True(t, apperror.Is(err, apperror.TypeForbidden))
	require.Equal(t, []string{"logs", "warns"}, apperror.As(err).Meta["allowed"])
}

func TestAssertCollectionAllowed_DisabledBeforeNameChecks(t *testing.T) {
	g := NewGuard(config.AdminConfig{Environment: "production", AllowedCollections: "logs"})
	_, err := g.AssertCollectionAllowed("logs")
	require.True(t, apperror.Is(err, apperror.TypeForbidden))
	_, err = g.AssertCollectionAllowed("")
	require.True(t, apperror.Is(err, apperror.TypeForbidden))
}
