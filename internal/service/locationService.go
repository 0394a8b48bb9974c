package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ds124wfegd/ewm/internal/database"
	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/sirupsen/logrus"
)

var errLikesDisabled = errors.New("likes are disabled")

type locationService struct {
	repos *database.Repositories
	likes LocationLikesClient
}

// NewLocationService creates the location likes service. likes may be nil
// when Redis is off; every call then fails.
func NewLocationService(repos *database.Repositories, likes LocationLikesClient) LocationService {
	return &locationService{repos: repos, likes: likes}
}

func (s *locationService) LikeLocation(ctx context.Context, userID, locationID int64) (*entity.LocationLikes, error) {
	location, err := s.check(ctx, userID, locationID)
	if err != nil {
		return nil, err
	}
	if err := s.likes.Like(ctx, userID, locationID); err != nil {
		return nil, fmt.Errorf("failed to add like: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"location_id": locationID,
	}).Debug("Location liked")

	result := s.withLikes(ctx, []*entity.Location{location})
	return result[0], nil
}

func (s *locationService) UnlikeLocation(ctx context.Context, userID, locationID int64) error {
	if _, err := s.check(ctx, userID, locationID); err != nil {
		return err
	}

	liked, err := s.likes.Liked(ctx, userID, locationID)
	if err != nil {
		return err
	}
	if !liked {
		return entity.NotFoundf("like from user id=%d for location id=%d not found", userID, locationID)
	}
	if err := s.likes.Unlike(ctx, userID, locationID); err != nil {
		return fmt.Errorf("failed to remove like: %w", err)
	}
	return nil
}

func (s *locationService) TopLocations(ctx context.Context, userID int64, count int) ([]*entity.LocationLikes, error) {
	if err := s.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	if count <= 0 {
		count = defaultPageSize
	}
	if s.likes == nil {
		return []*entity.LocationLikes{}, nil
	}

	ids, err := s.likes.Top(ctx, count)
	if err != nil {
		logrus.WithError(err).Warn("Likes collaborator unavailable, top is empty")
		return []*entity.LocationLikes{}, nil
	}

	locations := make([]*entity.Location, 0, len(ids))
	for _, id := range ids {
		location, err := s.repos.Locations.GetByID(ctx, id)
		if errors.Is(err, entity.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get location: %w", err)
		}
		locations = append(locations, location)
	}
	return s.withLikes(ctx, locations), nil
}

func (s *locationService) check(ctx context.Context, userID, locationID int64) (*entity.Location, error) {
	if err := s.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	location, err := s.repos.Locations.GetByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if s.likes == nil {
		return nil, errLikesDisabled
	}
	return location, nil
}

func (s *locationService) checkUser(ctx context.Context, userID int64) error {
	ok, err := s.repos.Users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !ok {
		return entity.NotFoundf("user with id=%d was not found", userID)
	}
	return nil
}

func (s *locationService) withLikes(ctx context.Context, locations []*entity.Location) []*entity.LocationLikes {
	ids := make([]int64, len(locations))
	for i, location := range locations {
		ids[i] = location.ID
	}

	counts, err := s.likes.Counts(ctx, ids)
	if err != nil {
		logrus.WithError(err).WithField("location_ids", ids).Warn("Likes collaborator unavailable, likes set to zero")
	}

	result := make([]*entity.LocationLikes, 0, len(locations))
	for _, location := range locations {
		result = append(result, &entity.LocationLikes{
			ID:    location.ID,
			Lat:   location.Lat,
			Lon:   location.Lon,
			Likes: counts[location.ID],
		})
	}
	return result
}
