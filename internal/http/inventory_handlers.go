package http

import (
	"net/http"
	"strconv"
	"strings"

	"shopmanager/internal/domain"
	"shopmanager/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := repository.ProductListFilter{Search: query.Get("search"), Limit: limit, Offset: offset}
	if lowStockRaw := strings.TrimSpace(query.Get("low_stock")); lowStockRaw != "" {
		lowStock, err := strconv.ParseBool(lowStockRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "low_stock must be true or false")
			return
		}
		if lowStock {
			threshold, err := parseOptionalInt(query.Get("threshold"), 5)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			filter.LowStock = &threshold
		}
	}
	if raw := strings.TrimSpace(query.Get("include_archived")); raw != "" {
		filter.IncludeArchived, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "include_archived must be true or false")
			return
		}
	}

	items, err := h.svc.ListProducts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	product, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

type createProductRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	RetailPrice decimal.Decimal `json:"retail_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.svc.CreateProduct(r.Context(), currentActor(r), repository.ProductCreateInput{
		Name:        req.Name,
		Description: req.Description,
		RetailPrice: req.RetailPrice,
		SellPrice:   req.SellPrice,
		Quantity:    req.Quantity,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type patchProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	RetailPrice *decimal.Decimal `json:"retail_price"`
	SellPrice   *decimal.Decimal `json:"sell_price"`
}

func (h *Handler) PatchProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req patchProductRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.svc.PatchProduct(r.Context(), currentActor(r), id, repository.ProductPatchInput{
		Name:        req.Name,
		Description: req.Description,
		RetailPrice: req.RetailPrice,
		SellPrice:   req.SellPrice,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.ArchiveProduct(r.Context(), currentActor(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

func (h *Handler) RestockProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req restockRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	product, err := h.svc.Restock(r.Context(), currentActor(r), id, req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListVendors(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

type vendorRequest struct {
	Name    string `json:"name" validate:"required"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (h *Handler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vendor, err := h.svc.CreateVendor(r.Context(), currentActor(r), repository.VendorInput{
		Name:    req.Name,
		Contact: req.Contact,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vendor)
}

func (h *Handler) DeleteVendor(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.ArchiveVendor(r.Context(), currentActor(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPurchaseReceipts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.ListPurchaseReceipts(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetPurchaseReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.svc.GetPurchaseReceipt(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type purchaseLineRequest struct {
	ProductID   int64           `json:"product_id" validate:"required_without=Name"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
}

type purchaseReceiptRequest struct {
	VendorID  int64                 `json:"vendor_id" validate:"gt=0"`
	InvoiceNo *string               `json:"invoice_no"`
	Items     []purchaseLineRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) CreatePurchaseReceipt(w http.ResponseWriter, r *http.Request) {
	var req purchaseReceiptRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	input := domain.PurchaseReceiptInput{
		VendorID:  req.VendorID,
		InvoiceNo: req.InvoiceNo,
		Lines:     make([]domain.PurchaseLineInput, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		input.Lines = append(input.Lines, domain.PurchaseLineInput{
			ProductID:   item.ProductID,
			Name:        item.Name,
			Description: item.Description,
			Quantity:    item.Quantity,
			CostPrice:   item.CostPrice,
			SellPrice:   item.SellPrice,
		})
	}
	res, err := h.svc.RecordPurchaseReceipt(r.Context(), currentActor(r), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) ImportPurchaseReceipt(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	vendorID, err := parseID(r.FormValue("vendor_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "vendor_id is required")
		return
	}
	var invoiceNo *string
	if raw := strings.TrimSpace(r.FormValue("invoice_no")); raw != "" {
		invoiceNo = &raw
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	res, err := h.svc.ImportPurchaseReceipt(r.Context(), currentActor(r), vendorID, invoiceNo, file, header.Filename)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"file_name":        header.Filename,
		"receipt_id":       res.ReceiptID,
		"total_amount":     res.TotalAmount,
		"created_products": res.CreatedProducts,
	})
}
