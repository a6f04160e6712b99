package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/rexinehouse/catalog/internal/models"
)

func TestCreateProductWithPDF(t *testing.T) {
	env := newTestEnv(t)

	fields := map[string]string{
		"name":        "Leather sample",
		"description": "swatch book",
		"category":    "samples",
		"price":       "49.90",
	}
	files := []filePart{{Field: "pdf", Filename: "report.pdf", Content: "%PDF-1.4 fake"}}

	rec, c := env.doMultipartRequest("/api/v1/admin/products", fields, files)
	require.NoError(t, env.P.CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var prod models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prod))
	require.Equal(t, "Leather sample", prod.Name)
	require.Equal(t, 49.90, prod.Price)
	require.Equal(t, "report.pdf", prod.PDFFile)

	_, err := os.Stat(filepath.Join(env.Uploads.Dir, prod.PDFFile))
	require.NoError(t, err)

	// Stored file is retrievable through the uploads route.
	recGet, cGet := env.doJSONRequest(http.MethodGet, "/uploads/report.pdf", nil)
	cGet.SetParamNames("filename")
	cGet.SetParamValues("report.pdf")
	require.NoError(t, env.U.Serve(cGet))
	require.Equal(t, http.StatusOK, recGet.Code)
	require.Equal(t, "%PDF-1.4 fake", recGet.Body.String())
}

func TestCreateProductRejectsDisallowedFile(t *testing.T) {
	env := newTestEnv(t)

	fields := map[string]string{"name": "Malware", "price": "1"}
	files := []filePart{{Field: "pdf", Filename: "report.exe", Content: "MZ"}}

	_, c := env.doMultipartRequest("/api/v1/admin/products", fields, files)
	err := env.P.CreateProduct(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.Product{}).Count(&count).Error)
	require.Equal(t, int64(0), count)

	entries, err2 := os.ReadDir(env.Uploads.Dir)
	require.NoError(t, err2)
	require.Empty(t, entries)
}

func TestCreateProductRejectsNegativePrice(t *testing.T) {
	env := newTestEnv(t)

	fields := map[string]string{"name": "Bad price", "price": "-5"}
	_, c := env.doMultipartRequest("/api/v1/admin/products", fields, nil)
	err := env.P.CreateProduct(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)

	prod := models.Product{Name: "sofa cover", Description: "brown", Price: 10}
	require.NoError(t, env.DB.Create(&prod).Error)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/products/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.P.GetProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, prod.ID, resp.ID)
	require.Equal(t, prod.Name, resp.Name)

	_, cMissing := env.doJSONRequest(http.MethodGet, "/api/v1/products/99", nil)
	cMissing.SetParamNames("id")
	cMissing.SetParamValues("99")
	err := env.P.GetProduct(cMissing)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, env.DB.Create(&models.Product{Name: name, Price: 1}).Error)
	}

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/products?page=1&size=2", nil)
	require.NoError(t, env.P.ListProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
		Meta struct {
			Total   int64 `json:"total"`
			HasNext bool  `json:"has_next"`
		} `json:"meta"`
		Starred []uint `json:"starred"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.Equal(t, int64(3), resp.Meta.Total)
	require.True(t, resp.Meta.HasNext)
	require.Empty(t, resp.Starred)
}

func TestDeleteProductCascades(t *testing.T) {
	env := newTestEnv(t)

	fields := map[string]string{"name": "doomed", "price": "2"}
	files := []filePart{{Field: "image", Filename: "photo.png", Content: "png-bytes"}}
	rec, c := env.doMultipartRequest("/api/v1/admin/products", fields, files)
	require.NoError(t, env.P.CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var prod models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prod))
	storedPath := filepath.Join(env.Uploads.Dir, prod.ImageFile)
	_, err := os.Stat(storedPath)
	require.NoError(t, err)

	user := env.createUser("fan@example.com", "password", models.RoleUser)
	require.NoError(t, env.DB.Create(&models.Star{UserID: user.ID, ProductID: prod.ID}).Error)

	recDel, cDel := env.doJSONRequest(http.MethodDelete, "/api/v1/admin/products/1", nil)
	cDel.SetParamNames("id")
	cDel.SetParamValues("1")
	require.NoError(t, env.P.DeleteProduct(cDel))
	require.Equal(t, http.StatusNoContent, recDel.Code)

	var productCount, starCount int64
	require.NoError(t, env.DB.Model(&models.Product{}).Count(&productCount).Error)
	require.NoError(t, env.DB.Model(&models.Star{}).Count(&starCount).Error)
	require.Equal(t, int64(0), productCount)
	require.Equal(t, int64(0), starCount)

	_, err = os.Stat(storedPath)
	require.True(t, os.IsNotExist(err))
}

func TestDeleteMissingProduct(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodDelete, "/api/v1/admin/products/42", nil)
	c.SetParamNames("id")
	c.SetParamValues("42")
	err := env.P.DeleteProduct(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusNotFound, he.Code)
}
