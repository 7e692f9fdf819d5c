package FiberConfig

import (
	"fmt"
	"os"
	"time"

	"Convoy/Controllers"
	"Convoy/Models"
	"Convoy/Notifications"
	"Convoy/Reconcile"
	"Convoy/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/template/html"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, engine *Reconcile.Engine) {
	// Initialize handlers
	fuelRecordController := Controllers.NewFuelRecordController(db, engine)
	lpoController := Controllers.NewLPOController(db, engine)
	yardFuelController := Controllers.NewYardFuelController(db, engine)
	deliveryOrderController := Controllers.NewDeliveryOrderController(db, engine)
	checkpointController := Controllers.NewCheckpointController(db)
	trashController := Controllers.NewTrashController(db, engine)
	importController := Controllers.NewImportController(db, engine)

	// API group
	api := app.Group("/api")

	// Fuel record routes
	records := api.Group("/fuel-records", middleware.Verify(1))
	records.Get("/", fuelRecordController.GetAllFuelRecords)
	records.Post("/", middleware.Verify(2), fuelRecordController.CreateFuelRecord)
	records.Get("/:id", fuelRecordController.GetFuelRecord)
	records.Put("/:id", middleware.Verify(2), fuelRecordController.UpdateFuelRecord)
	records.Post("/:id/cancel", middleware.Verify(3), fuelRecordController.CancelFuelRecord)
	records.Delete("/:id", middleware.Verify(3), fuelRecordController.DeleteFuelRecord)

	// LPO routes
	lpos := api.Group("/lpos", middleware.Verify(1))
	lpos.Get("/", lpoController.GetLPOs)
	lpos.Get("/pending-entries", lpoController.GetPendingEntries)
	lpos.Post("/", middleware.Verify(2), lpoController.CreateLPO)
	lpos.Get("/:id", lpoController.GetLPO)
	lpos.Put("/:id", middleware.Verify(2), lpoController.UpdateLPO)
	lpos.Delete("/:id", middleware.Verify(3), lpoController.DeleteLPO)
	lpos.Post("/:lpo_id/entries", middleware.Verify(2), lpoController.CreateEntry)

	// Direct LPO entry routes
	entries := api.Group("/lpo-entries", middleware.Verify(2))
	entries.Put("/:id", lpoController.UpdateEntry)
	entries.Post("/:id/cancel", lpoController.CancelEntry)
	entries.Delete("/:id", middleware.Verify(3), lpoController.DeleteEntry)
	entries.Post("/relink/:truckNo", lpoController.RelinkPending)

	// Yard dispense routes
	dispenses := api.Group("/dispenses", middleware.Verify(1))
	dispenses.Get("/", yardFuelController.GetDispenses)
	dispenses.Post("/", middleware.Verify(2), yardFuelController.CreateDispense)
	dispenses.Get("/:id", yardFuelController.GetDispense)
	dispenses.Post("/:id/reject", middleware.Verify(2), yardFuelController.RejectDispense)
	dispenses.Post("/:id/photo", middleware.Verify(2), yardFuelController.UploadPhoto)
	dispenses.Post("/link/:truckNo", middleware.Verify(2), yardFuelController.LinkPending)

	// Delivery order routes
	deliveryOrders := api.Group("/delivery-orders", middleware.Verify(1))
	deliveryOrders.Get("/", deliveryOrderController.GetDeliveryOrders)
	deliveryOrders.Post("/", middleware.Verify(2), deliveryOrderController.CreateDeliveryOrder)
	deliveryOrders.Get("/:id", deliveryOrderController.GetDeliveryOrder)
	deliveryOrders.Put("/:id", middleware.Verify(2), deliveryOrderController.UpdateDeliveryOrder)
	deliveryOrders.Delete("/:id", middleware.Verify(3), deliveryOrderController.DeleteDeliveryOrder)

	// Checkpoint routes
	checkpoints := api.Group("/checkpoints", middleware.Verify(1))
	checkpoints.Get("/", checkpointController.GetCheckpoints)
	checkpoints.Post("/", middleware.Verify(3), checkpointController.CreateCheckpoint)
	checkpoints.Put("/:id", middleware.Verify(3), checkpointController.UpdateCheckpoint)
	checkpoints.Delete("/:id", middleware.Verify(3), checkpointController.DeleteCheckpoint)

	// Trash routes
	trash := api.Group("/trash", middleware.Verify(3))
	trash.Get("/", trashController.GetTrash)
	trash.Post("/:id/restore", trashController.Restore)
	trash.Delete("/:id", middleware.Verify(4), trashController.Purge)

	// Spreadsheet imports
	imports := api.Group("/import", middleware.Verify(3))
	imports.Post("/fuel-records", importController.ImportFuelRecords)
	imports.Post("/checkpoints", importController.ImportCheckpoints)
}

func FiberConfig(engine *Reconcile.Engine) {
	fmt.Println("Server Up...")
	viewEngine := html.New("./Templates", ".html")
	// Html Template engine
	app := fiber.New(fiber.Config{
		Views: viewEngine,
	})
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestCompression, // 2
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: true, // Important for cookies
		MaxAge:           300,
	}))

	SetupRoutes(app, Models.DB, engine)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Render("index", fiber.Map{})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth routes
	app.Post("/api/RegisterUser", middleware.Verify(4), Controllers.RegisterUser)
	app.Patch("/api/UpdateUser", middleware.Verify(4), Controllers.UpdateUser)
	app.Get("/api/FetchUsers", middleware.Verify(4), Controllers.FetchUsers)
	app.Delete("/api/DeleteUser", middleware.Verify(4), Controllers.DeleteUser)
	app.Post("/api/Login", Controllers.Login)
	app.Get("/api/validate-token", Controllers.ValidateToken)
	app.Use("/api/User", Controllers.User)
	app.Use("/api/Logout", Controllers.Logout)

	// Notification routes
	app.Get("/api/GetNotifications", middleware.Verify(1), Notifications.ReturnNotifications)
	app.Post("/api/notifications/:id/read", middleware.Verify(1), Notifications.MarkRead)
	app.Post("/api/UpdateToken", middleware.Verify(1), Models.UpdateToken)

	// Logs API routes
	app.Get("/api/logs", middleware.Verify(4), Controllers.GetLogs)
	app.Get("/api/logs/stats", middleware.Verify(4), Controllers.GetLogStats)

	// Serve dispense photos
	app.Static("/uploads/dispenses", "./uploads/dispenses",
		fiber.Static{Compress: true, CacheDuration: time.Second * 10})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	app.Listen(":" + port)
}
