package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/ds124wfegd/ewm/internal/service"
	"github.com/ds124wfegd/ewm/pkg/queue"
	"github.com/gin-gonic/gin"
)

// QueueInspector exposes the notification queue to administrators.
type QueueInspector interface {
	GetQueueStats(ctx context.Context) (*queue.QueueStats, error)
	DLQ() queue.DLQHandler
}

// QueueStatus объединяет статистику очереди и DLQ
type QueueStatus struct {
	Queue  *queue.QueueStats   `json:"queue"`
	DLQ    *queue.DLQStats     `json:"dlq"`
	Failed []*queue.FailedTask `json:"failed"`
}

type AdminHandler struct {
	eventService    service.EventService
	userService     service.UserService
	categoryService service.CategoryService
	queue           QueueInspector
}

// NewAdminHandler creates the admin API handler. inspector may be nil when
// no queue is configured.
func NewAdminHandler(
	eventService service.EventService,
	userService service.UserService,
	categoryService service.CategoryService,
	inspector QueueInspector,
) *AdminHandler {
	return &AdminHandler{
		eventService:    eventService,
		userService:     userService,
		categoryService: categoryService,
		queue:           inspector,
	}
}

func (h *AdminHandler) SearchEvents(c *gin.Context) {
	params := &service.AdminSearchParams{}

	var ok bool
	if params.Users, ok = queryIDs(c, "users"); !ok {
		return
	}
	if params.Categories, ok = queryIDs(c, "categories"); !ok {
		return
	}
	for _, raw := range queryStrings(c, "states") {
		state := entity.EventState(strings.ToUpper(raw))
		if !state.Valid() {
			badRequest(c, "unknown state: "+raw)
			return
		}
		params.States = append(params.States, state)
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

	events, err := h.eventService.SearchAdmin(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *AdminHandler) UpdateEvent(c *gin.Context) {
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}

	var req service.UpdateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.eventService.UpdateEventFields(c.Request.Context(), eventID, entity.Admin(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *AdminHandler) RegisterUser(c *gin.Context) {
	var req service.NewUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.RegisterUser(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *AdminHandler) GetUsers(c *gin.Context) {
	ids, ok := queryIDs(c, "ids")
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

	users, err := h.userService.GetUsers(c.Request.Context(), ids, from, size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.categoryService.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *AdminHandler) UpdateCategory(c *gin.Context) {
	id, ok := pathID(c, "catId")
	if !ok {
		return
	}

	var req service.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.categoryService.UpdateCategory(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, category)
}

func (h *AdminHandler) DeleteCategory(c *gin.Context) {
	id, ok := pathID(c, "catId")
	if !ok {
		return
	}

	if err := h.categoryService.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) GetQueue(c *gin.Context) {
	if !h.queueEnabled(c) {
		return
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	status := &QueueStatus{}

	var err error
	if status.Queue, err = h.queue.GetQueueStats(ctx); err != nil {
		respondError(c, err)
		return
	}
	if status.DLQ, err = h.queue.DLQ().GetDLQStats(ctx); err != nil {
		respondError(c, err)
		return
	}
	if status.Failed, err = h.queue.DLQ().GetFailedTasks(ctx, limit); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *AdminHandler) RequeueTask(c *gin.Context) {
	if !h.queueEnabled(c) {
		return
	}

	if err := h.queue.DLQ().RequeueFailedTask(c.Request.Context(), c.Param("taskId")); err != nil {
		respondError(c, queueError(err))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) DeleteTask(c *gin.Context) {
	if !h.queueEnabled(c) {
		return
	}

	if err := h.queue.DLQ().DeleteFailedTask(c.Request.Context(), c.Param("taskId")); err != nil {
		respondError(c, queueError(err))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) queueEnabled(c *gin.Context) bool {
	if h.queue == nil || h.queue.DLQ() == nil {
		writeError(c, http.StatusNotFound, "The required object was not found.", "notification queue is disabled")
		return false
	}
	return true
}

func queueError(err error) error {
	if errors.Is(err, queue.ErrTaskNotFound) {
		return entity.NotFoundf("%v", err)
	}
	return err
}
