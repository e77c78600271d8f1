package handler

import (
	"io"
	"mpesa-checkout-service/internal/logger"
	"mpesa-checkout-service/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// callback bodies are small; anything larger is not from the gateway
const maxCallbackBody = 64 << 10

type MpesaHandler struct {
	callbackService service.CallbackService
}

func NewMpesaHandler(callbackService service.CallbackService) *MpesaHandler {
	return &MpesaHandler{
		callbackService: callbackService,
	}
}

// Callback always answers 200. The gateway only reads the acknowledgement body.
func (h *MpesaHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBody))
	if err != nil {
		logger.Warn("read mpesa callback body", zap.Error(err))
		return c.JSON(http.StatusOK, service.AckInvalid)
	}

	return c.JSON(http.StatusOK, h.callbackService.Reconcile(ctx, body))
}
