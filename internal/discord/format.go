package discord

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
)

// GuildIconURL returns nil when the guild has no icon.
func GuildIconURL(guildID, icon string, size int) *string {
	if guildID == "" || icon == "" {
		return nil
	}
	u := fmt.Sprintf("%s?size=%d", discordgo.EndpointGuildIcon(guildID, icon), size)
	return &u
}

// AvatarURL falls back to the default embed avatar when avatar is empty and
// returns nil only without a user id.
func AvatarURL(userID, avatar string, size int) *string {
	if userID == "" {
		return nil
	}
	base := discordgo.EndpointCDN + "embed/avatars/0.png"
	if avatar != "" {
		base = discordgo.EndpointUserAvatar(userID, avatar)
	}
	u := fmt.Sprintf("%s?size=%d", base, size)
	return &u
}

// InviteURL builds the bot invite link, preselecting guildID when given.
// It returns nil without a client id.
func InviteURL(clientID, permissions, guildID string) *string {
	if clientID == "" {
		return nil
	}
	if permissions == "" {
		permissions = "0"
	}
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("scope", "bot applications.commands")
	q.Set("permissions", permissions)
	q.Set("disable_guild_select", "true")
	if guildID != "" {
		q.Set("guild_id", guildID)
	}
	u := "https://discord.com/oauth2/authorize?" + q.Encode()
	return &u
}

type Channel struct {
	ID       string  `json:"id"`
	Name     *string `json:"name"`
	Type     int     `json:"type"`
	ParentID *string `json:"parent_id"`
	Position int     `json:"position"`
}

// NormalizeChannels flattens channels and orders them categories first, then
// by position, then by name.
func NormalizeChannels(in []*discordgo.Channel) []Channel {
	out := make([]Channel, 0, len(in))
	for _, ch := range in {
		if ch == nil {
			continue
		}
		out = append(out, Channel{
			ID:       ch.ID,
			Name:     optional(ch.Name),
			Type:     int(ch.Type),
			ParentID: optional(ch.ParentID),
			Position: ch.Position,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ca, cb := a.Type == int(discordgo.ChannelTypeGuildCategory), b.Type == int(discordgo.ChannelTypeGuildCategory)
		if ca != cb {
			return ca
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return deref(a.Name) < deref(b.Name)
	})
	return out
}

type Author struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	GlobalName *string `json:"global_name"`
	Avatar     *string `json:"avatar"`
}

type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Author    *Author   `json:"author"`
}

func SimplifyMessages(in []*discordgo.Message) []Message {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		if m == nil {
			continue
		}
		msg := Message{ID: m.ID, ChannelID: m.ChannelID, Timestamp: m.Timestamp, Content: m.Content}
		if m.Author != nil {
			msg.Author = &Author{
				ID:         m.Author.ID,
				Username:   m.Author.Username,
				GlobalName: optional(m.Author.GlobalName),
				Avatar:     optional(m.Author.Avatar),
			}
		}
		out = append(out, msg)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
