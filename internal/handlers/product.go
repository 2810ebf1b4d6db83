package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/rules"
	"github.com/cambosugarscan/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const ocrStubMessage = "Image OCR is not enabled yet. Text parsing beta was used."

// ProductService is the catalog API the handlers depend on.
type ProductService interface {
	List(ctx context.Context, q string, offset, limit int) ([]types.Product, int, error)
	Get(ctx context.Context, id string) (types.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (types.Product, error)
	Create(ctx context.Context, in rules.ProductInput) (types.Product, error)
	Update(ctx context.Context, id string, in rules.ProductInput) (types.Product, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (types.ProductStats, error)
}

// ProductHandler provides HTTP handlers for the product catalog.
type ProductHandler struct {
	products ProductService
	errs     errorWriter
	now      func() time.Time
}

func NewProductHandler(products ProductService, log logging.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		errs:     errorWriter{log: log, resource: "product", conflict: "barcode already exists"},
		now:      time.Now,
	}
}

// ProductRouter registers product routes. Reads are public; writes need an
// admin token.
func ProductRouter(r chi.Router, products ProductService, auth *Authenticator, log logging.Logger) {
	handler := NewProductHandler(products, log)

	r.Get("/", handler.ListProducts)
	r.Get("/stats/summary", handler.Stats)
	r.Get("/barcode/{barcode}", handler.GetByBarcode)
	r.Post("/ocr/estimate", handler.EstimateFromLabel)
	r.With(auth.Admin).Post("/", handler.CreateProduct)
	r.Route("/{productID}", func(r chi.Router) {
		r.Get("/", handler.GetProduct)
		r.With(auth.Admin).Put("/", handler.UpdateProduct)
		r.With(auth.Admin).Delete("/", handler.DeleteProduct)
	})
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePagination(r)
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	items, total, err := h.products.List(r.Context(), q, offset, limit)
	if err != nil {
		h.errs.during("list products").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, page, limit))
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.errs.during("get product").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) GetByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := strings.TrimSpace(chi.URLParam(r, "barcode"))
	product, err := h.products.GetByBarcode(r.Context(), barcode)
	if err != nil {
		h.errs.during("get product by barcode").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in rules.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.products.Create(r.Context(), in)
	if err != nil {
		h.errs.during("create product").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in rules.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.products.Update(r.Context(), chi.URLParam(r, "productID"), in)
	if err != nil {
		h.errs.during("update product").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "productID")); err != nil {
		h.errs.during("delete product").write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.products.Stats(r.Context())
	if err != nil {
		h.errs.during("product stats").write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type LabelEstimateRequest struct {
	LabelText string `json:"labelText"`
}

type LabelEstimateResponse struct {
	Status     string              `json:"status"`
	Message    string              `json:"message"`
	Extracted  rules.LabelEstimate `json:"extracted"`
	Confidence types.Confidence    `json:"confidence"`
	ParsedAt   time.Time           `json:"parsedAt"`
}

// EstimateFromLabel reads a sugar amount out of nutrition label text. A found
// value is only community grade; nothing found is manual.
func (h *ProductHandler) EstimateFromLabel(w http.ResponseWriter, r *http.Request) {
	var req LabelEstimateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	text := strings.TrimSpace(req.LabelText)
	if text == "" {
		writeError(w, http.StatusBadRequest, "labelText is required")
		return
	}

	estimate := rules.EstimateSugarFromLabel(text)
	confidence := types.ConfidenceManual
	if estimate.SugarPer100g != nil {
		confidence = types.ConfidenceCommunity
	}
	writeJSON(w, http.StatusOK, LabelEstimateResponse{
		Status:     "stub",
		Message:    ocrStubMessage,
		Extracted:  estimate,
		Confidence: confidence,
		ParsedAt:   h.now().UTC(),
	})
}
