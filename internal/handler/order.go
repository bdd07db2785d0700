package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoPolymarket/safegate/internal/model"
	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/safegate/internal/service"
)

type OrderHandler struct {
	svc *service.ExecutionService
}

func NewOrderHandler(svc *service.ExecutionService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req model.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	result, err := h.svc.PlaceOrder(c.Request.Context(), req.User, req.Intent())
	if err != nil {
		// Classified rejections still carry a terminal result; surface it
		// under the mapped status so callers see both the reason and the
		// raw upstream message.
		var appErr *apperrors.AppError
		if result != nil && errors.As(err, &appErr) {
			c.JSON(appErr.HTTPStatus, result)
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		c.Error(apperrors.NewInvalidRequest("order id is required"))
		return
	}

	result, err := h.svc.CancelOrder(c.Request.Context(), orderID)
	if err != nil {
		var appErr *apperrors.AppError
		if result != nil && result.State == model.StateRejected && errors.As(err, &appErr) {
			c.JSON(appErr.HTTPStatus, result)
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
