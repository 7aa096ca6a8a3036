package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yicheng0/tryveo4/app/controllers"
	"github.com/yicheng0/tryveo4/internal/pkg/middleware"
	"github.com/yicheng0/tryveo4/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	h.registerAccountRoutes(app)
	h.registerAdminRoutes(app)
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Post("/register", controllers.HandleRegister)
	app.Post("/login", controllers.HandleLogin)
	app.Post("/logout", controllers.HandleLogout)

	app.Get("/posts", controllers.HandleListPosts)
	app.Get("/posts/:slug", controllers.HandleGetPost)
	app.Get("/tags", controllers.HandleListTags)

	app.Get("/plans", controllers.HandleListPlans)
}

func (h HttpRouter) registerAccountRoutes(app *fiber.App) {
	account := app.Group("/account", middleware.RequireAPISessionAuth)
	account.Get("/profile", controllers.HandleGetProfile)
	account.Get("/billing", controllers.HandleGetUserBilling)
	account.Post("/checkout", controllers.HandleCreateCheckout)

	app.Post("/ai/generate", middleware.RequireAPISessionAuth, controllers.HandleAIGenerate)
	app.Post("/uploads/presign", middleware.RequireAPISessionAuth, controllers.HandleCreateUploadURL)
	app.Get("/uploads/presign-get", middleware.RequireAPISessionAuth, controllers.HandleCreateDownloadURL)
}

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	admin := app.Group("/admin", middleware.RequireAPIAdmin)

	admin.Get("/dashboard", controllers.HandleAdminDashboard)

	admin.Get("/users", controllers.HandleAdminListUsers)
	admin.Get("/users/:id", controllers.HandleAdminGetUser)
	admin.Post("/users/:id/credits", controllers.HandleAdminAdjustCredits)

	admin.Get("/posts", controllers.HandleAdminListPosts)
	admin.Post("/posts", controllers.HandleAdminCreatePost)
	admin.Put("/posts/:id", controllers.HandleAdminUpdatePost)
	admin.Delete("/posts/:id", controllers.HandleAdminDeletePost)

	admin.Get("/plans", controllers.HandleAdminListPlans)
	admin.Post("/plans", controllers.HandleAdminCreatePlan)
	admin.Put("/plans/:id", controllers.HandleAdminUpdatePlan)
	admin.Delete("/plans/:id", controllers.HandleAdminDeletePlan)

	admin.Delete("/uploads", controllers.HandleAdminDeleteUpload)

	admin.Get("/orders", controllers.HandleAdminListOrders)
	admin.Get("/subscriptions", controllers.HandleAdminListSubscriptions)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
