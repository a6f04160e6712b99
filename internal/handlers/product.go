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
	"github.com/rexinehouse/catalog/internal/search"
	"github.com/rexinehouse/catalog/internal/service"
	"github.com/rexinehouse/catalog/internal/upload"
	"github.com/rexinehouse/catalog/internal/util"
)

type ProductHandler struct {
	DB       *gorm.DB
	Uploads  *upload.Store
	Producer *mykafka.Producer
	Search   *search.Service
}

type productForm struct {
	Name        string  `validate:"required"`
	Description string
	Category    string
	Price       float64 `validate:"gte=0"`
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// ListProducts is the public catalog: newest first, paginated, with
// the caller's starred product ids when a session is present.
func (h *ProductHandler) ListProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Product{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load catalog")
	}

	var items []models.Product
	if err := h.DB.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load catalog")
	}

	starred := []uint{}
	if sess, ok := service.CurrentSession(c); ok {
		if err := h.DB.Model(&models.Star{}).
			Where("user_id = ?", sess.UserID).
			Pluck("product_id", &starred).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "could not load catalog")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":    items,
		"starred": starred,
		"meta": map[string]interface{}{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load product")
	}

	return c.JSON(http.StatusOK, product)
}

// AdminDashboard lists the whole catalog for management, newest first.
func (h *ProductHandler) AdminDashboard(c echo.Context) error {
	var items []models.Product
	if err := h.DB.Order("created_at DESC").Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load products")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// CreateProduct accepts a multipart form with the product fields and
// optional image/pdf/video attachments. A disallowed attachment fails
// the whole request and no files are kept.
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	price := 0.0
	if raw := c.FormValue("price"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid price")
		}
		price = parsed
	}

	form := productForm{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Category:    c.FormValue("category"),
		Price:       price,
	}
	if err := validate.Struct(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required and price must be non-negative")
	}

	var saved []string
	cleanup := func() {
		for _, name := range saved {
			if err := h.Uploads.Remove(name); err != nil {
				logging.FromContext(c.Request().Context()).Error("upload cleanup failed", "file", name, "error", err)
			}
		}
	}

	files := make(map[string]string, 3)
	for _, key := range []string{"image", "pdf", "video"} {
		fh, err := c.FormFile(key)
		if err != nil {
			continue // part absent
		}
		name, err := h.Uploads.Save(fh)
		if err != nil {
			cleanup()
			if errors.Is(err, upload.ErrNotAllowed) || errors.Is(err, upload.ErrBadFilename) {
				return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s: file type not allowed", fh.Filename))
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "could not store attachment")
		}
		saved = append(saved, name)
		files[key] = name
	}

	prod := models.Product{
		Name:        form.Name,
		Description: form.Description,
		Category:    form.Category,
		Price:       form.Price,
		ImageFile:   files["image"],
		PDFFile:     files["pdf"],
		VideoFile:   files["video"],
	}
	if err := h.DB.Create(&prod).Error; err != nil {
		cleanup()
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create product")
	}

	h.index(c, &prod)
	h.publish(c, map[string]interface{}{
		"type":      "product_created",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusCreated, prod)
}

// DeleteProduct removes the row, every star referencing it and its
// files on disk.
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not delete product")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", prod.ID).Delete(&models.Star{}).Error; err != nil {
			return err
		}
		return tx.Delete(&prod).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not delete product")
	}

	for _, name := range prod.Attachments() {
		if err := h.Uploads.Remove(name); err != nil {
			logging.FromContext(c.Request().Context()).Error("attachment removal failed", "file", name, "error", err)
		}
	}

	if err := h.Search.DeleteProduct(c.Request().Context(), prod.ID); err != nil {
		logging.FromContext(c.Request().Context()).Error("search deindex failed", "productID", prod.ID, "error", err)
	}
	h.publish(c, map[string]interface{}{
		"type":      "product_deleted",
		"productID": prod.ID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *ProductHandler) index(c echo.Context, prod *models.Product) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Search.IndexProduct(ctx, prod); err != nil {
		logging.FromContext(c.Request().Context()).Error("search index failed", "productID", prod.ID, "error", err)
	}
}

func (h *ProductHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicProductEvents, fmt.Sprint(event["productID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("event publish failed", "topic", mykafka.TopicProductEvents, "error", err)
	}
}
