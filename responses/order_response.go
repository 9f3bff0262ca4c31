package responses

import "github.com/gofiber/fiber/v2"

// OrderResponse is the JSON envelope every endpoint returns.
type OrderResponse struct {
	Status  int        `json:"status"`
	Message string     `json:"message"`
	Result  *fiber.Map `json:"result"`
}
