package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ds124wfegd/ewm/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func writeError(c *gin.Context, code int, reason, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{
		Status:    strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_")),
		Reason:    reason,
		Message:   message,
		Timestamp: time.Now().Format(entity.DateTimeLayout),
	})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, "Incorrectly made request.", message)
}

// respondError maps an error kind to its HTTP status.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		writeError(c, http.StatusNotFound, "The required object was not found.", err.Error())
	case errors.Is(err, entity.ErrAccess):
		writeError(c, http.StatusForbidden, "Access to the object is denied.", err.Error())
	case errors.Is(err, entity.ErrConflict):
		writeError(c, http.StatusConflict, "For the requested operation the conditions are not met.", err.Error())
	case errors.Is(err, entity.ErrValidation):
		badRequest(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "The operation did not finish in time.", err.Error())
	default:
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled error")
		writeError(c, http.StatusInternalServerError, "Internal server error.", err.Error())
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid path parameter "+name+": "+c.Param(name))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, "invalid query parameter "+name+": "+raw)
		return 0, false
	}
	return v, true
}

// queryIDs accepts both repeated parameters and comma separated values.
func queryIDs(c *gin.Context, name string) ([]int64, bool) {
	var ids []int64
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				badRequest(c, "invalid query parameter "+name+": "+part)
				return nil, false
			}
			ids = append(ids, id)
		}
	}
	return ids, true
}

func queryStrings(c *gin.Context, name string) []string {
	var values []string
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
	}
	return values
}

func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := entity.ParseCustomTime(raw)
	if err != nil {
		badRequest(c, "invalid query parameter "+name+": "+err.Error())
		return nil, false
	}
	return &t.Time, true
}

func queryBool(c *gin.Context, name string) (*bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(c, "invalid query parameter "+name+": "+raw)
		return nil, false
	}
	return &v, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func newHit(c *gin.Context, app string) *entity.Hit {
	return &entity.Hit{
		App:       app,
		URI:       c.Request.URL.Path,
		IP:        c.ClientIP(),
		Timestamp: time.Now(),
	}
}
