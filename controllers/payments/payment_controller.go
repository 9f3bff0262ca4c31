package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rishcx/newtrip/payments"
	"github.com/rishcx/newtrip/responses"
	"github.com/rishcx/newtrip/store"
)

const requestTimeout = 10 * time.Second

// PaymentController exposes the reconciliation engine over HTTP.
type PaymentController struct {
	reconciler *payments.Reconciler
	keyID      string
}

func NewPaymentController(reconciler *payments.Reconciler, keyID string) *PaymentController {
	return &PaymentController{reconciler: reconciler, keyID: keyID}
}

// CreateOrderRequest holds the cart to price and persist. Any amount the
// client sends is ignored; totals are computed from the catalog.
type CreateOrderRequest struct {
	Items []payments.ItemRequest `json:"items"`
}

// VerifyPaymentRequest carries the client-side Razorpay confirmation.
type VerifyPaymentRequest struct {
	OrderID           string `json:"order_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (pc *PaymentController) CreateOrder(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	userID, _ := c.Locals("userId").(string)

	result, err := pc.reconciler.CreateOrder(ctx, userID, req.Items)
	if err != nil {
		return respondError(c, statusForError(err), err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(responses.OrderResponse{
		Status:  fiber.StatusCreated,
		Message: "Order created successfully",
		Result: &fiber.Map{
			"order_id": result.OrderID,
			"razorpay_order": fiber.Map{
				"id":       result.ProviderOrderID,
				"amount":   result.AmountMinor,
				"currency": result.Currency,
				"status":   "created",
			},
			"amount": result.Amount,
			"key_id": pc.keyID,
		},
	})
}

func (pc *PaymentController) VerifyPayment(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	var req VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.OrderID == "" {
		return respondError(c, fiber.StatusBadRequest, "order_id is required")
	}

	userID, _ := c.Locals("userId").(string)

	result, err := pc.reconciler.VerifyPayment(ctx, userID, payments.VerifyRequest{
		OrderID:         req.OrderID,
		ProviderOrderID: req.RazorpayOrderID,
		PaymentID:       req.RazorpayPaymentID,
		Signature:       req.RazorpaySignature,
	})
	if err != nil && !errors.Is(err, payments.ErrSignatureInvalid) {
		return respondError(c, statusForError(err), err.Error())
	}

	status := fiber.StatusOK
	message := "Payment verified successfully"
	if !result.Verified {
		status = fiber.StatusBadRequest
		message = "Payment verification failed"
	}

	return c.Status(status).JSON(responses.OrderResponse{
		Status:  status,
		Message: message,
		Result: &fiber.Map{
			"success":        result.Verified,
			"order_id":       result.OrderID,
			"status":         result.Status,
			"payment_status": result.PaymentStatus,
		},
	})
}

func (pc *PaymentController) Webhook(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	result, err := pc.reconciler.HandleWebhook(ctx,
		c.Body(),
		c.Get("X-Razorpay-Signature"),
		c.Get("X-Razorpay-Event-Id"),
	)
	if err != nil {
		return respondError(c, statusForError(err), err.Error())
	}

	state := "processed"
	if result.Duplicate {
		state = "skipped"
	}

	return c.Status(fiber.StatusOK).JSON(responses.OrderResponse{
		Status:  fiber.StatusOK,
		Message: "Webhook " + state,
		Result: &fiber.Map{
			"status":   state,
			"event":    result.Event,
			"event_id": result.EventID,
		},
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrProductNotFound), errors.Is(err, store.ErrOrderNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, payments.ErrEmptyCart),
		errors.Is(err, payments.ErrInvalidQuantity),
		errors.Is(err, payments.ErrSignatureInvalid),
		errors.Is(err, payments.ErrMalformedEvent):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, status int, message string) error {
	if status == fiber.StatusInternalServerError {
		log.Printf("%s %s failed: %s", c.Method(), c.Path(), message)
	}
	return c.Status(status).JSON(responses.OrderResponse{
		Status:  status,
		Message: message,
		Result:  nil,
	})
}
