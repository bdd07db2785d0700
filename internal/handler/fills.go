package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoPolymarket/safegate/internal/market"
)

type FillsHandler struct {
	stream *market.UserStream
}

func NewFillsHandler(stream *market.UserStream) *FillsHandler {
	return &FillsHandler{stream: stream}
}

// List returns the fills buffered from the exchange user channel. Empty
// when the stream is disabled.
func (h *FillsHandler) List(c *gin.Context) {
	if h.stream == nil {
		c.JSON(http.StatusOK, gin.H{"fills": []market.Fill{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fills": h.stream.Fills()})
}
