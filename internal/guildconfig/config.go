// Package guildconfig stores the per-guild bot configuration: a fixed-shape,
// defaulted record keyed by guild id.
package guildconfig

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sparcky/panel-api/internal/document"
	"github.com/sparcky/panel-api/internal/document/query"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	MaxBadWords       = 200
	maxLanguageLength = 8
	DefaultLanguage   = "fr"
)

var (
	SupportedLanguages = []string{"fr", "en", "es"}
	languageStrip      = regexp.MustCompile(`[^a-zA-Z-]`)
)

// Config is the guild configuration as served to the panel. Channel and role
// ids are null until set.
type Config struct {
	GuildID        *string  `json:"guildId"`
	WelcomeChannel *string  `json:"welcomeChannel"`
	LeaveChannel   *string  `json:"leaveChannel"`
	AutoRole       *string  `json:"autoRole"`
	Antispam       bool     `json:"antispam"`
	Antilink       bool     `json:"antilink"`
	ModLogChannel  *string  `json:"modLogChannel"`
	AntiBadWords   bool     `json:"antiBadWords"`
	BadWords       []string `json:"badWords"`
	AutoSanction   bool     `json:"autoSanction"`
	AntiRaid       bool     `json:"antiRaid"`
	Language       string   `json:"language"`
	VocChannelID   *string  `json:"vocChannelId"`
}

// Default returns a fresh default record.
func Default() *Config {
	return &Config{BadWords: []string{}, Language: DefaultLanguage}
}

// FromDocument merges a stored, possibly partial document over the defaults.
// Fields of an unexpected type keep their default.
func FromDocument(doc document.Document, guildID string) *Config {
	cfg := Default()
	if doc != nil {
		cfg.GuildID = stringField(doc, "guildId")
		cfg.WelcomeChannel = stringField(doc, "welcomeChannel")
		cfg.LeaveChannel = stringField(doc, "leaveChannel")
		cfg.AutoRole = stringField(doc, "autoRole")
		cfg.ModLogChannel = stringField(doc, "modLogChannel")
		cfg.VocChannelID = stringField(doc, "vocChannelId")
		cfg.Antispam = boolField(doc, "antispam", cfg.Antispam)
		cfg.Antilink = boolField(doc, "antilink", cfg.Antilink)
		cfg.AntiBadWords = boolField(doc, "antiBadWords", cfg.AntiBadWords)
		cfg.AutoSanction = boolField(doc, "autoSanction", cfg.AutoSanction)
		cfg.AntiRaid = boolField(doc, "antiRaid", cfg.AntiRaid)
		if lang, ok := doc["language"].(string); ok {
			cfg.Language = lang
		}
		if words, ok := asSlice(doc["badWords"]); ok {
			cfg.BadWords = make([]string, 0, len(words))
			for _, w := range words {
				if s, ok := w.(string); ok {
					cfg.BadWords = append(cfg.BadWords, s)
				}
			}
		}
	}
	if guildID != "" {
		cfg.GuildID = &guildID
	}
	return cfg
}

// Patch is a caller update narrowed to the typed fields. Channel fields are
// always applied (nil clears them); nil booleans, Language and BadWords are
// left untouched.
type Patch struct {
	WelcomeChannel *string
	LeaveChannel   *string
	AutoRole       *string
	ModLogChannel  *string
	VocChannelID   *string

	Antispam     *bool
	Antilink     *bool
	AntiBadWords *bool
	AutoSanction *bool
	AntiRaid     *bool

	Language *string
	BadWords []string
	// HasBadWords distinguishes "clear the list" from "not supplied".
	HasBadWords bool
}

// Narrow builds a Patch from an untyped body. Nothing is rejected: values of
// the wrong type become null (channels) or are dropped (everything else).
func Narrow(raw any) Patch {
	body, _ := query.Plain(raw).(bson.M)
	if body == nil {
		body = bson.M{}
	}
	p := Patch{
		WelcomeChannel: stringField(body, "welcomeChannel"),
		LeaveChannel:   stringField(body, "leaveChannel"),
		AutoRole:       stringField(body, "autoRole"),
		ModLogChannel:  stringField(body, "modLogChannel"),
		VocChannelID:   stringField(body, "vocChannelId"),
		Antispam:       boolPtr(body, "antispam"),
		Antilink:       boolPtr(body, "antilink"),
		AntiBadWords:   boolPtr(body, "antiBadWords"),
		AutoSanction:   boolPtr(body, "autoSanction"),
		AntiRaid:       boolPtr(body, "antiRaid"),
	}
	if s, ok := body["language"].(string); ok {
		if lang := NormalizeLanguage(s); lang != "" {
			p.Language = &lang
		}
	}
	if words, ok := asSlice(body["badWords"]); ok {
		p.BadWords = CleanBadWords(words)
		p.HasBadWords = true
	}
	return p
}

// NormalizeLanguage strips everything but letters and dashes, lowercases and
// truncates the code. It returns "" unless the result is supported.
func NormalizeLanguage(s string) string {
	s = strings.ToLower(languageStrip.ReplaceAllString(s, ""))
	if len(s) > maxLanguageLength {
		s = s[:maxLanguageLength]
	}
	for _, l := range SupportedLanguages {
		if s == l {
			return s
		}
	}
	return ""
}

// CleanBadWords stringifies scalar entries, trims them, drops empties and
// keeps at most MaxBadWords.
func CleanBadWords(words []any) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		var s string
		switch v := w.(type) {
		case string:
			s = v
		case bool, int, int32, int64, float64:
			s = fmt.Sprint(v)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == MaxBadWords {
			break
		}
	}
	return out
}

// Apply returns a copy of c with p applied.
func (c *Config) Apply(p Patch) *Config {
	next := *c
	next.WelcomeChannel = p.WelcomeChannel
	next.LeaveChannel = p.LeaveChannel
	next.AutoRole = p.AutoRole
	next.ModLogChannel = p.ModLogChannel
	next.VocChannelID = p.VocChannelID
	applyBool(&next.Antispam, p.Antispam)
	applyBool(&next.Antilink, p.Antilink)
	applyBool(&next.AntiBadWords, p.AntiBadWords)
	applyBool(&next.AutoSanction, p.AutoSanction)
	applyBool(&next.AntiRaid, p.AntiRaid)
	if p.Language != nil {
		next.Language = *p.Language
	}
	if p.HasBadWords {
		next.BadWords = append([]string{}, p.BadWords...)
	} else {
		next.BadWords = append([]string{}, c.BadWords...)
	}
	return &next
}

// fields is the $set payload for every typed field.
func (c *Config) fields() bson.D {
	return bson.D{
		{Key: "guildId", Value: nullable(c.GuildID)},
		{Key: "welcomeChannel", Value: nullable(c.WelcomeChannel)},
		{Key: "leaveChannel", Value: nullable(c.LeaveChannel)},
		{Key: "autoRole", Value: nullable(c.AutoRole)},
		{Key: "antispam", Value: c.Antispam},
		{Key: "antilink", Value: c.Antilink},
		{Key: "modLogChannel", Value: nullable(c.ModLogChannel)},
		{Key: "antiBadWords", Value: c.AntiBadWords},
		{Key: "badWords", Value: c.BadWords},
		{Key: "autoSanction", Value: c.AutoSanction},
		{Key: "antiRaid", Value: c.AntiRaid},
		{Key: "language", Value: c.Language},
		{Key: "vocChannelId", Value: nullable(c.VocChannelID)},
	}
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func applyBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func stringField(m bson.M, key string) *string {
	if s, ok := m[key].(string); ok {
		return &s
	}
	return nil
}

func boolField(m bson.M, key string, def bool) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return def
}

func boolPtr(m bson.M, key string) *bool {
	if b, ok := m[key].(bool); ok {
		return &b
	}
	return nil
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case bson.A:
		return []any(t), true
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
