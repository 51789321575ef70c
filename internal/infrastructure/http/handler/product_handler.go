package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mrops-br/cassandra-products-api/internal/app/dto"
	"github.com/mrops-br/cassandra-products-api/internal/app/service"
	"github.com/mrops-br/cassandra-products-api/internal/domain"
	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/http/response"
)

// ProductIDParam is the chi URL parameter holding the product id
const ProductIDParam = "productId"

const maxBodyBytes = 1 << 20

var (
	errInternal     = errors.New("internal server error")
	errTrailingData = errors.New("request body must contain a single JSON object")
)

// ProductHandler handles HTTP requests for products
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(service *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger,
	}
}

// Save handles POST /products
func (h *ProductHandler) Save(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	product, err := h.service.Save(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, "/products/"+product.ID)
}

// Update handles PUT /products/{productId}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.service.Update(r.Context(), chi.URLParam(r, ProductIDParam), req); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.NoContent(w)
}

// FindByID handles GET /products/{productId}
func (h *ProductHandler) FindByID(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.FindByID(r.Context(), chi.URLParam(r, ProductIDParam))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, product)
}

// FindAll handles GET /products
func (h *ProductHandler) FindAll(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.FindAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, products)
}

// Delete handles DELETE /products, the id travels in the body
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.NoContent(w)
}

// DeleteByID handles DELETE /products/{productId}
func (h *ProductHandler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteByID(r.Context(), chi.URLParam(r, ProductIDParam)); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.NoContent(w)
}

// Health handles GET /health
func (h *ProductHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		response.Error(w, http.StatusServiceUnavailable, errors.New("storage unavailable"))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *ProductHandler) decode(w http.ResponseWriter, r *http.Request) (*dto.ProductRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req dto.ProductRequest
	if err := decodeSingle(r.Body, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body",
			slog.String("error", err.Error()),
		)

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, err)
			return nil, false
		}
		response.Error(w, http.StatusBadRequest, err)
		return nil, false
	}

	return &req, true
}

// decodeSingle reads exactly one JSON value; anything after it is rejected
func decodeSingle(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errTrailingData
		}
		return err
	}
	return nil
}

func (h *ProductHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		response.Error(w, http.StatusNotFound, err)
	case domain.IsInvalidInput(err):
		response.Error(w, http.StatusBadRequest, err)
	default:
		h.logger.ErrorContext(r.Context(), "Request failed",
			slog.String("error", err.Error()),
		)
		response.Error(w, http.StatusInternalServerError, errInternal)
	}
}
