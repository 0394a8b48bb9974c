package transport

import (
	"net/http"

	"github.com/ds124wfegd/ewm/internal/service"
	"github.com/gin-gonic/gin"
)

// CompilationHandler serves compilations: reads are public, writes are
// mounted under /admin.
type CompilationHandler struct {
	compilationService service.CompilationService
}

func NewCompilationHandler(compilationService service.CompilationService) *CompilationHandler {
	return &CompilationHandler{compilationService: compilationService}
}

func (h *CompilationHandler) GetCompilations(c *gin.Context) {
	pinned, ok := queryBool(c, "pinned")
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

	compilations, err := h.compilationService.GetCompilations(c.Request.Context(), pinned, from, size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, compilations)
}

func (h *CompilationHandler) GetCompilation(c *gin.Context) {
	id, ok := pathID(c, "compId")
	if !ok {
		return
	}

	compilation, err := h.compilationService.GetCompilation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, compilation)
}

func (h *CompilationHandler) CreateCompilation(c *gin.Context) {
	var req service.NewCompilationRequest
	if !bindJSON(c, &req) {
		return
	}

	compilation, err := h.compilationService.CreateCompilation(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, compilation)
}

func (h *CompilationHandler) UpdateCompilation(c *gin.Context) {
	id, ok := pathID(c, "compId")
	if !ok {
		return
	}

	var req service.UpdateCompilationRequest
	if !bindJSON(c, &req) {
		return
	}

	compilation, err := h.compilationService.UpdateCompilation(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, compilation)
}

func (h *CompilationHandler) DeleteCompilation(c *gin.Context) {
	id, ok := pathID(c, "compId")
	if !ok {
		return
	}

	if err := h.compilationService.DeleteCompilation(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
