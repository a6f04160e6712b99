package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/rexinehouse/catalog/internal/handlers"
	"github.com/rexinehouse/catalog/internal/service"
)

type Deps struct {
	DB            *gorm.DB
	AuthHandler   *handlers.AuthHandler
	Products      *handlers.ProductHandler
	Stars         *handlers.StarHandler
	Uploads       *handlers.UploadHandler
	SearchHandler *handlers.SearchHandler
	Tokens        *service.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	// Redirect target for unauthenticated requests to gated routes.
	e.GET("/login", func(c echo.Context) error {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "login required: POST credentials to /api/v1/login"})
	})

	e.GET("/uploads/:filename", d.Uploads.Serve)

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.Logout)

	v1.GET("/contact", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"name":  "Rexine House",
			"email": "contact@rexinehouse.com",
		})
	})

	if d.SearchHandler != nil {
		v1.GET("/search", d.SearchHandler.Search)
	}

	products := v1.Group("/products")
	products.GET("", d.Products.ListProducts, d.Tokens.WithSession)
	products.GET("/:id", d.Products.GetProduct)
	products.POST("/:id/star", d.Stars.ToggleStar, d.Tokens.RequireUser)

	user := v1.Group("/user", d.Tokens.RequireUser)
	user.GET("/dashboard", d.Stars.UserDashboard)

	admin := v1.Group("/admin", d.Tokens.RequireAdmin)
	admin.GET("/dashboard", d.Products.AdminDashboard)
	admin.POST("/products", d.Products.CreateProduct)
	admin.DELETE("/products/:id", d.Products.DeleteProduct)
}
