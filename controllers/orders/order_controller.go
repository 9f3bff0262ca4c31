package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rishcx/newtrip/responses"
	"github.com/rishcx/newtrip/store"
)

const requestTimeout = 10 * time.Second

// OrderController serves the read side of reconciliation: an owner's order
// history and a single order with its line items.
type OrderController struct {
	orders store.OrderStore
}

func NewOrderController(orders store.OrderStore) *OrderController {
	return &OrderController{orders: orders}
}

func (oc *OrderController) GetOrders(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	userID, _ := c.Locals("userId").(string)

	orders, err := oc.orders.ListByUser(ctx, userID)
	if err != nil {
		log.Printf("list orders for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(responses.OrderResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to fetch orders",
			Result:  nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(responses.OrderResponse{
		Status:  fiber.StatusOK,
		Message: "Orders fetched successfully",
		Result: &fiber.Map{
			"orders": orders,
		},
	})
}

func (oc *OrderController) GetOrderByID(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	userID, _ := c.Locals("userId").(string)
	orderID := c.Params("orderId")

	order, err := oc.orders.GetByIDAndUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(responses.OrderResponse{
				Status:  fiber.StatusNotFound,
				Message: "Order not found",
				Result:  nil,
			})
		}
		log.Printf("fetch order %s: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(responses.OrderResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to fetch order",
			Result:  nil,
		})
	}

	items, err := oc.orders.GetItems(ctx, orderID)
	if err != nil {
		log.Printf("fetch items for order %s: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(responses.OrderResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to fetch order items",
			Result:  nil,
		})
	}
	order.Items = items

	return c.Status(fiber.StatusOK).JSON(responses.OrderResponse{
		Status:  fiber.StatusOK,
		Message: "Order fetched successfully",
		Result: &fiber.Map{
			"order": order,
		},
	})
}
