package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	orderController "github.com/rishcx/newtrip/controllers/orders"
	paymentController "github.com/rishcx/newtrip/controllers/payments"

	"github.com/rishcx/newtrip/configs"
	"github.com/rishcx/newtrip/middlewares"
	"github.com/rishcx/newtrip/payments"
	"github.com/rishcx/newtrip/routes"
	"github.com/rishcx/newtrip/store"
)

func main() {
	cfg, err := configs.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	client, err := configs.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("disconnect database: %v", err)
		}
	}()
	log.Println("Connected to MongoDB")

	ordersCol := configs.GetCollection(client, cfg, "orders")
	itemsCol := configs.GetCollection(client, cfg, "order_items")
	productsCol := configs.GetCollection(client, cfg, "products")
	eventsCol := configs.GetCollection(client, cfg, "payment_events")

	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := store.EnsureIndexes(ctx, ordersCol, eventsCol); err != nil {
			cancel()
			log.Fatalf("ensure indexes: %v", err)
		}
		cancel()
	}

	productStore := store.NewProductStore(productsCol)
	orderStore := store.NewOrderStore(ordersCol, itemsCol)
	eventStore := store.NewEventStore(eventsCol)

	provider := payments.NewRazorpayProvider(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)
	reconciler := payments.NewReconciler(productStore, orderStore, eventStore, provider, cfg.PaymentMockMode)

	pc := paymentController.NewPaymentController(reconciler, cfg.RazorpayKeyID)
	oc := orderController.NewOrderController(orderStore)
	auth := middlewares.AuthMiddleware(cfg)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/api/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "TrippyDrip API is running",
			"version": "1.0.0",
		})
	})

	routes.PaymentRoutes(app, auth, pc)
	routes.OrderRoutes(app, auth, oc)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
