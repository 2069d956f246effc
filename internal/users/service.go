package users

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/sparcky/panel-api/internal/models"
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// UpsertFromDiscord records a login of the given Discord account. A nil user
// or one without id yields (nil, nil).
func (s *Service) UpsertFromDiscord(ctx context.Context, du *discordgo.User) (*models.User, error) {
	if du == nil || du.ID == "" {
		return nil, nil
	}
	return s.repo.UpsertByDiscordID(ctx, &models.User{
		DiscordID:  du.ID,
		Username:   du.Username,
		GlobalName: du.GlobalName,
		Avatar:     du.Avatar,
	})
}

func (s *Service) GetByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	return s.repo.GetByDiscordID(ctx, discordID)
}
