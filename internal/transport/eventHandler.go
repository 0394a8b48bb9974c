package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/ds124wfegd/ewm/internal/service"
	"github.com/ds124wfegd/ewm/pkg/stats"
	"github.com/gin-gonic/gin"
)

// StatsReader answers the public statistics endpoint.
type StatsReader interface {
	Stats(ctx context.Context, uris []string, since, until time.Time, unique bool) ([]stats.ViewStats, error)
}

// EventHandler serves the public API: published events, categories and
// view statistics.
type EventHandler struct {
	eventService    service.EventService
	categoryService service.CategoryService
	stats           StatsReader
	app             string
}

func NewEventHandler(eventService service.EventService, categoryService service.CategoryService, stats StatsReader, app string) *EventHandler {
	return &EventHandler{
		eventService:    eventService,
		categoryService: categoryService,
		stats:           stats,
		app:             app,
	}
}

func (h *EventHandler) SearchEvents(c *gin.Context) {
	params := &service.PublicSearchParams{
		Text:          c.Query("text"),
		OnlyAvailable: c.Query("onlyAvailable") == "true",
		Sort:          c.Query("sort"),
	}

	var ok bool
	if params.Categories, ok = queryIDs(c, "categories"); !ok {
		return
	}
	if params.Paid, ok = queryBool(c, "paid"); !ok {
		return
	}
	if params.RangeStart, ok = queryTime(c, "rangeStart"); !ok {
		return
	}
	if params.RangeEnd, ok = queryTime(c, "rangeEnd"); !ok {
		return
	}
	if params.From, ok = queryInt(c, "from", 0); !ok {
		return
	}
	if params.Size, ok = queryInt(c, "size", 10); !ok {
		return
	}

	events, err := h.eventService.SearchPublished(c.Request.Context(), params, newHit(c, h.app))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	event, err := h.eventService.GetPublishedEvent(c.Request.Context(), id, newHit(c, h.app))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *EventHandler) TopEvents(c *gin.Context) {
	count, ok := queryInt(c, "count", 10)
	if !ok {
		return
	}

	events, err := h.eventService.TopLiked(c.Request.Context(), count)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) GetCategories(c *gin.Context) {
	from, ok := queryInt(c, "from", 0)
	if !ok {
		return
	}
	size, ok := queryInt(c, "size", 10)
	if !ok {
		return
	}

	categories, err := h.categoryService.GetCategories(c.Request.Context(), from, size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, categories)
}

func (h *EventHandler) GetCategory(c *gin.Context) {
	id, ok := pathID(c, "catId")
	if !ok {
		return
	}

	category, err := h.categoryService.GetCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, category)
}

// GetStats reports hits per URI between start and end.
func (h *EventHandler) GetStats(c *gin.Context) {
	start, ok := queryTime(c, "start")
	if !ok {
		return
	}
	end, ok := queryTime(c, "end")
	if !ok {
		return
	}

	var since, until time.Time
	if start != nil {
		since = *start
	}
	if end != nil {
		until = *end
	}
	if start != nil && end != nil && since.After(until) {
		badRequest(c, "start must not be after end")
		return
	}

	if h.stats == nil {
		c.JSON(http.StatusOK, []stats.ViewStats{})
		return
	}

	result, err := h.stats.Stats(c.Request.Context(), queryStrings(c, "uris"), since, until, c.Query("unique") == "true")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
