package routes

import (
	"github.com/gofiber/fiber/v2"

	paymentController "github.com/rishcx/newtrip/controllers/payments"
)

func PaymentRoutes(app *fiber.App, auth fiber.Handler, pc *paymentController.PaymentController) {
	app.Post("/api/payments/create-order", auth, pc.CreateOrder)
	app.Post("/api/payments/verify", auth, pc.VerifyPayment)

	// Provider-initiated delivery carries its own signature; no user auth.
	app.Post("/api/payments/webhook", pc.Webhook)
}
