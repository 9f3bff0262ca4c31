package routes

import (
	"github.com/gofiber/fiber/v2"

	orderController "github.com/rishcx/newtrip/controllers/orders"
)

func OrderRoutes(app *fiber.App, auth fiber.Handler, oc *orderController.OrderController) {
	app.Get("/api/orders", auth, oc.GetOrders)
	app.Get("/api/orders/:orderId", auth, oc.GetOrderByID)
}
