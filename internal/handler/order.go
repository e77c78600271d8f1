package handler

import (
	"mpesa-checkout-service/internal/dto"
	"mpesa-checkout-service/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	checkoutService service.CheckoutService
	orderService    service.OrderService
	statusService   service.StatusService
}

func NewOrderHandler(
	checkoutService service.CheckoutService,
	orderService service.OrderService,
	statusService service.StatusService,
) *OrderHandler {
	return &OrderHandler{
		checkoutService: checkoutService,
		orderService:    orderService,
		statusService:   statusService,
	}
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.checkoutService.CreateOrder(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.GetOrder(ctx, c.Param("orderNumber"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetReceipt(c echo.Context) error {
	ctx := c.Request().Context()

	receipt, err := h.orderService.Receipt(ctx, c.Param("orderNumber"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, receipt)
}

func (h *OrderHandler) ListCustomerOrders(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.orderService.ListCustomerOrders(ctx, c.Param("email"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()

	status, err := h.statusService.QueryOrderStatus(ctx, c.Param("checkoutRequestID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, status)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	var query dto.ListOrdersQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &query); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.orderService.ListOrders(ctx, query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
