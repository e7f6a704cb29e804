package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmaft/dmaft-server/internal/common"
	"github.com/dmaft/dmaft-server/internal/logging"
	"github.com/dmaft/dmaft-server/internal/server/models"
	"github.com/dmaft/dmaft-server/internal/server/protocol"
	"github.com/dmaft/dmaft-server/internal/server/repositories/users"
)

// ProfileService serves user search and profile updates.
type ProfileService struct {
	users  users.Repository
	logger logging.Logger
}

// NewProfileService constructs the service.
func NewProfileService(u users.Repository, logger logging.Logger) *ProfileService {
	return &ProfileService{
		users:  u,
		logger: logger.With("module", "profile"),
	}
}

// Search looks up users by exact ID or by name substring. Only IDs and
// names come back; the rest of the profile is not exposed through search.
func (s *ProfileService) Search(ctx context.Context, searchBy string, term string) ([]protocol.UserSummary, error) {
	var (
		matched []*models.User
		err     error
	)
	switch strings.ToUpper(searchBy) {
	case "USERID":
		matched, err = s.users.SearchByID(ctx, term)
	case "USERNAME":
		matched, err = s.users.SearchByName(ctx, term)
	default:
		return nil, fmt.Errorf("%w: SearchBy must be UserId or UserName", common.ErrInvalidArgument)
	}
	if err != nil {
		return nil, fmt.Errorf("executing search: %w", common.ErrTransient)
	}

	results := make([]protocol.UserSummary, 0, len(matched))
	for _, u := range matched {
		results = append(results, protocol.UserSummary{UserID: u.UserID, UserName: u.UserName})
	}
	return results, nil
}

// UpdateProfile replaces the caller's own profile. Users can never edit
// anyone else's record; the dispatcher passes the authenticated ID here.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, p *protocol.Profile) error {
	if p == nil {
		return fmt.Errorf("%w: NewProfile is required", common.ErrInvalidArgument)
	}

	err := s.users.UpdateProfile(ctx, userID, &models.Profile{
		UserName:   p.UserName,
		Status:     p.UserStatus,
		Bio:        p.UserBio,
		ProfilePic: []byte(p.UserProfilePic),
	})
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrInvalidUser
	}
	if err != nil {
		return fmt.Errorf("updating profile: %w", common.ErrTransient)
	}
	s.logger.Debug(ctx, "profile updated", "user_id", userID)
	return nil
}
