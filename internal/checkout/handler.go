package checkout

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopstream/internal/logger"
	"shopstream/pkg/errors"
)

type HTTPHandler struct {
	service *Service
	logger  logger.Logger
}

func NewHTTPHandler(service *Service, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{service: service, logger: log}
}

func (h *HTTPHandler) Register(r gin.IRouter) {
	r.POST("/checkout", h.complete)
}

func (h *HTTPHandler) complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	result, err := h.service.Complete(c.Request.Context(), req)
	if err != nil {
		c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusAccepted, result)
}
