package services

import (
	"context"
	"strings"

	"fintrack/internal/core"
)

// ProfileService reads and updates per-user preferences.
type ProfileService struct {
	profiles ProfileStore
}

func NewProfileService(profiles ProfileStore) *ProfileService {
	return &ProfileService{profiles: profiles}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (core.Profile, error) {
	return s.profiles.GetProfile(ctx, userID)
}

// Update validates and stores p for userID. The id in p is ignored.
func (s *ProfileService) Update(ctx context.Context, userID string, p core.Profile) (core.Profile, error) {
	p.UserID = userID
	p.Email = strings.TrimSpace(p.Email)
	p.FullName = strings.TrimSpace(p.FullName)
	p.Timezone = strings.TrimSpace(p.Timezone)
	if p.CurrencyPreference != "" {
		cur, err := core.ParseCurrency(string(p.CurrencyPreference))
		if err != nil {
			return core.Profile{}, core.NewValidationError("currency_preference", err)
		}
		p.CurrencyPreference = cur
	}
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	return s.profiles.UpsertProfile(ctx, p)
}
