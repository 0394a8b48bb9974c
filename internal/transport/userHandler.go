package transport

import (
	"net/http"

	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/ds124wfegd/ewm/internal/service"
	"github.com/gin-gonic/gin"
)

// UserHandler serves the private API where the acting user is in the path.
type UserHandler struct {
	eventService    service.EventService
	requestService  service.RequestService
	locationService service.LocationService
}

func NewUserHandler(
	eventService service.EventService,
	requestService service.RequestService,
	locationService service.LocationService,
) *UserHandler {
	return &UserHandler{
		eventService:    eventService,
		requestService:  requestService,
		locationService: locationService,
	}
}

func (h *UserHandler) CreateEvent(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	var req service.NewEventRequest
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.eventService.CreateEvent(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

func (h *UserHandler) GetEvents(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	from, ok := queryInt(c, "from", 0)
	if !ok {
		return
	}
	size, ok := queryInt(c, "size", 10)
	if !ok {
		return
	}

	events, err := h.eventService.GetUserEvents(c.Request.Context(), userID, from, size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *UserHandler) GetEvent(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}

	event, err := h.eventService.GetUserEvent(c.Request.Context(), userID, eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *UserHandler) UpdateEvent(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}

	var req service.UpdateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.eventService.UpdateEventFields(c.Request.Context(), eventID, entity.Owner(userID), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *UserHandler) GetEventRequests(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}

	requests, err := h.requestService.GetEventRequests(c.Request.Context(), userID, eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *UserHandler) UpdateEventRequests(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}

	var req service.StatusUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.requestService.UpdateRequestStatuses(c.Request.Context(), userID, eventID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *UserHandler) GetRequests(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	requests, err := h.requestService.GetUserRequests(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *UserHandler) CreateRequest(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	eventIDs, ok := queryIDs(c, "eventId")
	if !ok {
		return
	}
	if len(eventIDs) != 1 {
		badRequest(c, "query parameter eventId is required")
		return
	}

	request, err := h.requestService.CreateRequest(c.Request.Context(), userID, eventIDs[0])
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

func (h *UserHandler) CancelRequest(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	requestID, ok := pathID(c, "requestId")
	if !ok {
		return
	}

	request, err := h.requestService.CancelRequest(c.Request.Context(), userID, requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *UserHandler) LikeEvent(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}

	if err := h.eventService.Like(c.Request.Context(), userID, eventID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

func (h *UserHandler) UnlikeEvent(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}

	if err := h.eventService.Unlike(c.Request.Context(), userID, eventID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *UserHandler) LikeLocation(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	locationID, ok := pathID(c, "locationId")
	if !ok {
		return
	}

	location, err := h.locationService.LikeLocation(c.Request.Context(), userID, locationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, location)
}

func (h *UserHandler) UnlikeLocation(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	locationID, ok := pathID(c, "locationId")
	if !ok {
		return
	}

	if err := h.locationService.UnlikeLocation(c.Request.Context(), userID, locationID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *UserHandler) TopLocations(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	count, ok := queryInt(c, "count", 10)
	if !ok {
		return
	}

	locations, err := h.locationService.TopLocations(c.Request.Context(), userID, count)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, locations)
}
