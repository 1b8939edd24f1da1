package controllers

import (
	"net/http"

	"github.com/douxbatter/storefront/services"
	"github.com/douxbatter/storefront/utils"
	"github.com/gin-gonic/gin"
)

// ProductController serves the catalog to the storefront and the admin.
type ProductController struct {
	Catalog *services.CatalogService
}

func NewProductController(catalog *services.CatalogService) *ProductController {
	return &ProductController{Catalog: catalog}
}

// ListProducts -> active products, optionally ?category=
func (pc *ProductController) ListProducts(c *gin.Context) {
	products, err := pc.Catalog.ListProducts(c.Request.Context(), c.Query("category"), false)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, products)
}

func (pc *ProductController) GetProduct(c *gin.Context) {
	product, err := pc.Catalog.GetProduct(c.Request.Context(), c.Param("id"), false)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, product)
}

func (pc *ProductController) ListCategories(c *gin.Context) {
	categories, err := pc.Catalog.Categories(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, categories)
}

// AdminListProducts includes inactive products.
func (pc *ProductController) AdminListProducts(c *gin.Context) {
	products, err := pc.Catalog.ListProducts(c.Request.Context(), c.Query("category"), true)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, products)
}

func (pc *ProductController) AdminGetProduct(c *gin.Context) {
	product, err := pc.Catalog.GetProduct(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, product)
}

func (pc *ProductController) CreateProduct(c *gin.Context) {
	var in services.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.RespondMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}
	product, err := pc.Catalog.CreateProduct(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusCreated, product)
}

func (pc *ProductController) UpdateProduct(c *gin.Context) {
	var patch services.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.RespondMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}
	product, err := pc.Catalog.UpdateProduct(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, product)
}

func (pc *ProductController) DeleteProduct(c *gin.Context) {
	if err := pc.Catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, gin.H{"success": true})
}

// ReorderImages -> body {"imageIds": [3, 1, 2]}
func (pc *ProductController) ReorderImages(c *gin.Context) {
	var body struct {
		ImageIDs []uint `json:"imageIds"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}
	images, err := pc.Catalog.ReorderImages(c.Request.Context(), c.Param("id"), body.ImageIDs)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, images)
}

func (pc *ProductController) UpdateVariant(c *gin.Context) {
	var patch services.VariantPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.RespondMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}
	variant, err := pc.Catalog.UpdateVariant(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, variant)
}

func (pc *ProductController) DeleteVariant(c *gin.Context) {
	if err := pc.Catalog.DeleteVariant(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, gin.H{"success": true})
}
