package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/ewm/internal/database"
	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/sirupsen/logrus"
)

// eventReader builds the full read model of events. Every service that
// hands events out goes through it.
type eventReader struct {
	repos *database.Repositories
	stats StatsClient
	likes LikesClient
	now   func() time.Time
}

func newEventReader(repos *database.Repositories, stats StatsClient, likes LikesClient) *eventReader {
	return &eventReader{repos: repos, stats: stats, likes: likes, now: time.Now}
}

// enrich attaches initiator, category, location and collaborator counters.
// Collaborator failures degrade to zero, a missing related row to null.
func (r *eventReader) enrich(ctx context.Context, events []*entity.Event) []*entity.EventFull {
	result := make([]*entity.EventFull, 0, len(events))
	if len(events) == 0 {
		return result
	}

	ids := make([]int64, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}

	var views, likes map[int64]int64
	if r.stats != nil {
		var err error
		if views, err = r.stats.ViewCounts(ctx, ids, time.Time{}, r.now()); err != nil {
			logrus.WithError(err).WithField("event_ids", ids).Warn("Stats collaborator unavailable, views set to zero")
		}
	}
	if r.likes != nil {
		var err error
		if likes, err = r.likes.Counts(ctx, ids); err != nil {
			logrus.WithError(err).WithField("event_ids", ids).Warn("Likes collaborator unavailable, likes set to zero")
		}
	}

	var (
		initiators = make(map[int64]*entity.UserShort)
		categories = make(map[int64]*entity.Category)
		locations  = make(map[int64]*entity.Location)
	)
	for _, event := range events {
		initiator, ok := initiators[event.InitiatorID]
		if !ok {
			initiator = r.loadInitiator(ctx, event.InitiatorID)
			initiators[event.InitiatorID] = initiator
		}
		category, ok := categories[event.CategoryID]
		if !ok {
			category = r.loadCategory(ctx, event.CategoryID)
			categories[event.CategoryID] = category
		}
		location, ok := locations[event.LocationID]
		if !ok {
			location = r.loadLocation(ctx, event.LocationID)
			locations[event.LocationID] = location
		}

		result = append(result, &entity.EventFull{
			Event:     event,
			Initiator: initiator,
			Category:  category,
			Location:  location,
			Views:     views[event.ID],
			Likes:     likes[event.ID],
		})
	}
	return result
}

func (r *eventReader) loadInitiator(ctx context.Context, id int64) *entity.UserShort {
	user, err := r.repos.Users.GetByID(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("user_id", id).Warn("Failed to load event initiator")
		return nil
	}
	return user.Short()
}

func (r *eventReader) loadCategory(ctx context.Context, id int64) *entity.Category {
	category, err := r.repos.Categories.GetByID(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("category_id", id).Warn("Failed to load event category")
		return nil
	}
	return category
}

func (r *eventReader) loadLocation(ctx context.Context, id int64) *entity.Location {
	location, err := r.repos.Locations.GetByID(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("location_id", id).Warn("Failed to load event location")
		return nil
	}
	return location
}
