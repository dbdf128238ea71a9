package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/models"
	"github.com/username/tillpoint/backend/src/security/validation"
	"github.com/username/tillpoint/backend/src/services"
	"github.com/username/tillpoint/backend/src/utils"
)

type ProductHandler struct {
	productService services.ProductService
}

func NewProductHandler(productService services.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (h *ProductHandler) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	var input services.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if errs := validation.ValidateStruct(input); len(errs) > 0 {
		utils.SendJSONError(w, validation.FormatErrors(errs), http.StatusBadRequest)
		return
	}

	product, err := h.productService.CreateProduct(input, userID)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateBarcode) {
			utils.SendJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		logger.L.Error("product creation failed", "name", input.Name, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(product); err != nil {
		logger.L.Error("error encoding product response", "error", err)
	}
}

func (h *ProductHandler) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	var input services.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if errs := validation.ValidateStruct(input); len(errs) > 0 {
		utils.SendJSONError(w, validation.FormatErrors(errs), http.StatusBadRequest)
		return
	}

	product, err := h.productService.UpdateProduct(id, input)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrProductNotFound):
			utils.SendJSONError(w, "Product not found", http.StatusNotFound)
		case errors.Is(err, models.ErrDuplicateBarcode):
			utils.SendJSONError(w, err.Error(), http.StatusConflict)
		default:
			logger.L.Error("product update failed", "productID", id, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(product)
}

func (h *ProductHandler) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	product, err := h.productService.GetProduct(id)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			utils.SendJSONError(w, "Product not found", http.StatusNotFound)
			return
		}
		logger.L.Error("product lookup failed", "productID", id, "error", err)
		utils.SendJSONError(w, "Error fetching product", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(product)
}

func (h *ProductHandler) GetProductByBarcodeHandler(w http.ResponseWriter, r *http.Request) {
	barcode := r.PathValue("barcode")
	if barcode == "" {
		utils.SendJSONError(w, "Barcode required", http.StatusBadRequest)
		return
	}

	product, err := h.productService.GetProductByBarcode(barcode)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			utils.SendJSONError(w, "No product with barcode "+barcode, http.StatusNotFound)
			return
		}
		logger.L.Error("barcode lookup failed", "barcode", barcode, "error", err)
		utils.SendJSONError(w, "Error fetching product", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(product)
}

// ListProductsHandler serves the catalog. Query parameters narrow the result:
// search wins over category, include_archived widens the plain listing.
func (h *ProductHandler) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	var (
		products []models.Product
		err      error
	)

	query := r.URL.Query()
	switch {
	case query.Get("search") != "":
		products, err = h.productService.SearchProducts(query.Get("search"))
	case query.Get("category") != "":
		category := query.Get("category")
		if !models.ValidCategory(category) {
			utils.SendJSONError(w, "Unknown category: "+category, http.StatusBadRequest)
			return
		}
		products, err = h.productService.ProductsByCategory(category)
	default:
		products, err = h.productService.ListProducts(query.Get("include_archived") == "true")
	}
	if err != nil {
		logger.L.Error("product listing failed", "error", err)
		utils.SendJSONError(w, "Error fetching products", http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(products); err != nil {
		logger.L.Error("error encoding products response", "error", err)
	}
}

func (h *ProductHandler) ArchivedProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.ArchivedProducts()
	if err != nil {
		logger.L.Error("archived product listing failed", "error", err)
		utils.SendJSONError(w, "Error fetching products", http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(products)
}

func (h *ProductHandler) CategoriesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.Categories)
}

func (h *ProductHandler) ArchiveProductHandler(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

func (h *ProductHandler) RestoreProductHandler(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *ProductHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	if archived {
		err = h.productService.ArchiveProduct(id, userID)
	} else {
		err = h.productService.RestoreProduct(id, userID)
	}
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			utils.SendJSONError(w, "Product not found", http.StatusNotFound)
			return
		}
		logger.L.Error("product archive toggle failed", "productID", id, "archived", archived, "error", err)
		utils.SendJSONError(w, "Error updating product", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       id,
		"archived": archived,
	})
}

// DeletionCheckHandler previews whether a product can be deleted outright or
// should be archived because sales reference it.
func (h *ProductHandler) DeletionCheckHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	check, err := h.productService.DeletionConstraints(id)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			utils.SendJSONError(w, "Product not found", http.StatusNotFound)
			return
		}
		logger.L.Error("deletion check failed", "productID", id, "error", err)
		utils.SendJSONError(w, "Error checking product", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(check)
}

func (h *ProductHandler) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid product ID", http.StatusBadRequest)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	if err := h.productService.DeleteProduct(id, userID, force); err != nil {
		switch {
		case errors.Is(err, models.ErrProductNotFound):
			utils.SendJSONError(w, "Product not found", http.StatusNotFound)
		case errors.Is(err, models.ErrProductHasHistory):
			utils.SendJSONError(w, "Product has sales history; archive it instead or delete with force=true", http.StatusConflict)
		default:
			logger.L.Error("product deletion failed", "productID", id, "error", err)
			utils.SendJSONError(w, "Error deleting product", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
