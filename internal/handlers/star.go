package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/rexinehouse/catalog/internal/logging"
	"github.com/rexinehouse/catalog/internal/models"
	"github.com/rexinehouse/catalog/internal/mykafka"
	"github.com/rexinehouse/catalog/internal/service"
)

type StarHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// ToggleStar flips the caller's star on a product and reports the
// resulting state.
func (h *StarHandler) ToggleStar(c echo.Context) error {
	sess, ok := service.CurrentSession(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid product id"})
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "product not found"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not toggle star")
	}

	var starred bool
	var existing models.Star
	err = h.DB.Where("user_id = ? AND product_id = ?", sess.UserID, prod.ID).First(&existing).Error
	switch {
	case err == nil:
		if err := h.DB.Delete(&existing).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "could not toggle star")
		}
		starred = false
	case errors.Is(err, gorm.ErrRecordNotFound):
		star := models.Star{UserID: sess.UserID, ProductID: prod.ID}
		if err := h.DB.Create(&star).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "could not toggle star")
		}
		starred = true
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "could not toggle star")
	}

	eventType := "product_unstarred"
	if starred {
		eventType = "product_starred"
	}
	h.publish(c, map[string]interface{}{
		"type":      eventType,
		"userID":    sess.UserID,
		"productID": prod.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "starred": starred})
}

// UserDashboard lists the caller's starred products, newest star
// first. Administrators manage the catalog instead and are turned
// away.
func (h *StarHandler) UserDashboard(c echo.Context) error {
	sess, ok := service.CurrentSession(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}
	if sess.IsAdmin() {
		return echo.NewHTTPError(http.StatusForbidden, "user access required")
	}

	var starredProducts []models.Product
	err := h.DB.
		Joins("JOIN stars ON stars.product_id = products.id").
		Where("stars.user_id = ?", sess.UserID).
		Order("stars.created_at DESC").
		Find(&starredProducts).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load starred products")
	}

	return c.JSON(http.StatusOK, echo.Map{"data": starredProducts})
}

func (h *StarHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicStarEvents, fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("event publish failed", "topic", mykafka.TopicStarEvents, "error", err)
	}
}
