package handler

import (
	"errors"
	"mpesa-checkout-service/internal/client"
	"mpesa-checkout-service/internal/dto"
	"mpesa-checkout-service/internal/logger"
	"mpesa-checkout-service/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorHandler renders service errors as dto.ErrorResponse bodies.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logger.Warn("write error response", zap.Error(err))
	}
}

func errorResponse(err error) (int, *dto.ErrorResponse) {
	var (
		httpErr    *echo.HTTPError
		validation *service.ValidationError
		pushFailed *service.PushFailedError
	)

	switch {
	case errors.As(err, &httpErr):
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, &dto.ErrorResponse{Error: msg}
	case errors.As(err, &validation):
		return http.StatusBadRequest, &dto.ErrorResponse{Error: validation.Message, Field: validation.Field}
	case errors.Is(err, service.ErrDuplicateOrderNumber):
		return http.StatusConflict, &dto.ErrorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, &dto.ErrorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrReceiptUnavailable):
		return http.StatusBadRequest, &dto.ErrorResponse{Error: err.Error()}
	case errors.As(err, &pushFailed):
		return http.StatusInternalServerError, &dto.ErrorResponse{
			Error:       gatewayMessage(pushFailed.Err),
			OrderNumber: pushFailed.OrderNumber,
		}
	default:
		return http.StatusInternalServerError, &dto.ErrorResponse{Error: "internal server error"}
	}
}

// gatewayMessage is the client-facing text for a failed payment initiation.
func gatewayMessage(err error) string {
	var rejected *client.GatewayRejectedError
	switch {
	case errors.As(err, &rejected):
		return rejected.Message
	case errors.Is(err, client.ErrAuthFailure):
		return "payment gateway authentication failed"
	case errors.Is(err, client.ErrGatewayUnreachable):
		return "payment gateway unreachable"
	default:
		return "payment request failed"
	}
}
