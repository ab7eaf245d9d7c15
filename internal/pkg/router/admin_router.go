package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/subhamasthu/sankalp-bot/app/controllers"
)

type AdminRouter struct {
}

func (h AdminRouter) InstallRouter(app *fiber.App) {
	// Operator endpoints, bearer-token protected.
	admin := app.Group("/admin", controllers.AdminAuth)
	admin.Get("/batches", controllers.HandleListBatches)
	admin.Post("/batches", controllers.HandleSettleBatch)
	admin.Post("/batches/:batch_id/transfer", controllers.HandleMarkBatchTransferred)
	admin.Post("/scan", controllers.HandleRunEligibilityScan)
	admin.Get("/queue/stats", controllers.HandleQueueStats)
}

func NewAdminRouter() *AdminRouter {
	return &AdminRouter{}
}
