package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoPolymarket/safegate/internal/service"
)

type WalletHandler struct {
	svc *service.ExecutionService
}

func NewWalletHandler(svc *service.ExecutionService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

// Status reports the derived signer, predicted funding wallet, and
// authorization state for a user address.
func (h *WalletHandler) Status(c *gin.Context) {
	status, err := h.svc.WalletStatus(c.Request.Context(), c.Param("address"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, status)
}
