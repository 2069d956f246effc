// Package admin decides whether the dev-db admin surface is reachable at all
// and which collections it may touch.
package admin

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sparcky/panel-api/internal/apperror"
	"github.com/sparcky/panel-api/internal/config"
)

// DefaultGuildConfigCollection is the collection the bot's guild configuration
// model lives in when BOT_GUILD_CONFIG_COLLECTION is unset.
const DefaultGuildConfigCollection = "guildconfigurations"

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,120}$`)

// Guard holds the raw admin settings. Nothing is cached: every call re-derives
// its answer from the settings.
type Guard struct {
	settings config.AdminConfig
}

func NewGuard(settings config.AdminConfig) *Guard {
	return &Guard{settings: settings}
}

// Enabled is true when ENABLE_DEV_DB_ADMIN is affirmative or the deployment
// environment is anything but production.
func (g *Guard) Enabled() bool {
	switch strings.ToLower(strings.TrimSpace(g.settings.EnableFlag)) {
	case "1", "true", "yes", "on":
		return true
	}
	env := strings.ToLower(strings.TrimSpace(g.settings.Environment))
	if env == "" {
		env = "development"
	}
	return env != "production"
}

func (g *Guard) AssertEnabled() error {
	if !g.Enabled() {
		return apperror.Forbidden("Dev DB admin is disabled")
	}
	return nil
}

// AllowedCollections returns the sorted allowlist. An explicit CSV wins;
// otherwise a small fixed set is returned. Existing collections are never
// enumerated here.
func (g *Guard) AllowedCollections() ([]string, error) {
	if err := g.AssertEnabled(); err != nil {
		return nil, err
	}
	if allowed := parseCSV(g.settings.AllowedCollections); len(allowed) > 0 {
		return allowed, nil
	}
	return g.fallbackCollections(), nil
}

func (g *Guard) fallbackCollections() []string {
	guildCfg := strings.TrimSpace(g.settings.GuildConfigCollection)
	if guildCfg == "" {
		guildCfg = DefaultGuildConfigCollection
	}
	return dedupeSorted([]string{guildCfg, "logs", "botconfigurations", "botconfigs"})
}

// AssertCollectionAllowed validates name and checks it against the allowlist.
// The Forbidden error carries the allowlist as "allowed" metadata.
func (g *Guard) AssertCollectionAllowed(name string) (string, error) {
	if err := g.AssertEnabled(); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.BadRequest("Missing collection")
	}
	if !ValidCollectionName(name) {
		return "", apperror.BadRequest("Invalid collection name")
	}
	allowed, err := g.AllowedCollections()
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if a == name {
			return name, nil
		}
	}
	return "", apperror.Forbidden("Collection not allowed").WithMeta("allowed", allowed)
}

// ValidCollectionName reports whether name matches [A-Za-z0-9._-]{1,120}.
func ValidCollectionName(name string) bool {
	return collectionNamePattern.MatchString(name)
}

func parseCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return dedupeSorted(out)
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
