package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"shopmanager/internal/domain"
	"shopmanager/internal/excel"
	"shopmanager/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListWorkers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	worker, err := h.svc.GetWorker(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

type workerRequest struct {
	Name        string          `json:"name" validate:"required"`
	FatherName  string          `json:"father_name"`
	Phone       string          `json:"phone"`
	CNIC        string          `json:"cnic"`
	Salary      decimal.Decimal `json:"salary"`
	Bonus       decimal.Decimal `json:"bonus"`
	Role        string          `json:"role"`
	JoiningDate string          `json:"joining_date"`
	Benefits    string          `json:"benefits"`
}

func (req workerRequest) input() (repository.WorkerInput, error) {
	joined, err := parseOptionalTime(req.JoiningDate)
	if err != nil {
		return repository.WorkerInput{}, fmt.Errorf("joining_date must be YYYY-MM-DD or RFC3339")
	}
	return repository.WorkerInput{
		Name:        req.Name,
		FatherName:  req.FatherName,
		Phone:       req.Phone,
		CNIC:        req.CNIC,
		Salary:      req.Salary,
		Bonus:       req.Bonus,
		Role:        req.Role,
		JoiningDate: joined,
		Benefits:    req.Benefits,
	}, nil
}

func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req workerRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	input, err := req.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	worker, err := h.svc.CreateWorker(r.Context(), currentActor(r), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, worker)
}

func (h *Handler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req workerRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	input, err := req.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	worker, err := h.svc.UpdateWorker(r.Context(), currentActor(r), id, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

func (h *Handler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.ArchiveWorker(r.Context(), currentActor(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// salesFilter reads status, worker_id, from, to, limit and offset.
func salesFilter(r *http.Request, defaultLimit int) (repository.SalesReceiptFilter, error) {
	query := r.URL.Query()
	var filter repository.SalesReceiptFilter
	var err error
	if filter.Limit, err = parseOptionalInt(query.Get("limit"), defaultLimit); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseOptionalInt(query.Get("offset"), 0); err != nil {
		return filter, err
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := domain.PaymentStatus(strings.ToLower(raw))
		if !status.Valid() {
			return filter, fmt.Errorf("unknown status: %s", raw)
		}
		filter.Status = &status
	}
	if filter.WorkerID, err = parseOptionalInt64(query.Get("worker_id")); err != nil {
		return filter, err
	}
	if filter.From, err = parseOptionalTime(query.Get("from")); err != nil {
		return filter, err
	}
	if filter.To, err = parseOptionalTime(query.Get("to")); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *Handler) ListSalesReceipts(w http.ResponseWriter, r *http.Request) {
	filter, err := salesFilter(r, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.ListSalesReceipts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) ExportSalesReceipts(w http.ResponseWriter, r *http.Request) {
	filter, err := salesFilter(r, 1000)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.WithLines = true
	items, err := h.svc.ListSalesReceipts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	name := fmt.Sprintf("sales-receipts-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := excel.WriteSalesReceipts(w, items); err != nil {
		writeServiceError(w, r, err)
	}
}

func (h *Handler) GetSalesReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.svc.GetSalesReceipt(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type saleLineRequest struct {
	ProductID int64           `json:"product_id" validate:"gt=0"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	SoldPrice decimal.Decimal `json:"sold_price"`
}

type saleReceiptRequest struct {
	WorkerID      int64             `json:"worker_id" validate:"gt=0"`
	CustomerName  string            `json:"customer_name" validate:"required"`
	CustomerPhone *string           `json:"customer_phone"`
	PaymentStatus string            `json:"payment_status"`
	Items         []saleLineRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) CreateSalesReceipt(w http.ResponseWriter, r *http.Request) {
	var req saleReceiptRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	input := domain.SaleReceiptInput{
		WorkerID:      req.WorkerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		PaymentStatus: domain.PaymentStatus(req.PaymentStatus),
		Lines:         make([]domain.SalesLineInput, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		input.Lines = append(input.Lines, domain.SalesLineInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			SoldPrice: item.SoldPrice,
		})
	}
	res, err := h.svc.RecordSaleReceipt(r.Context(), currentActor(r), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	receipt, err := h.svc.GetSalesReceipt(r.Context(), res.ReceiptID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

type statusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required"`
}

func (h *Handler) UpdateSalesReceiptStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req statusRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.svc.UpdateSalesReceiptStatus(r.Context(), currentActor(r), id, req.PaymentStatus)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type returnItemRequest struct {
	ItemID   int64  `json:"item_id" validate:"gt=0"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	Reason   string `json:"reason"`
}

func (h *Handler) ReturnReceiptItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req returnItemRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.ReturnReceiptLine(r.Context(), currentActor(r), id, req.ItemID, req.Quantity, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ListReturns(w http.ResponseWriter, r *http.Request) {
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
	items, err := h.svc.ListReturns(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

type legacyReturnRequest struct {
	ProductID int64  `json:"product_id" validate:"gt=0"`
	WorkerID  int64  `json:"worker_id"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Reason    string `json:"reason"`
}

func (h *Handler) ReturnLegacySale(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req legacyReturnRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.LegacyReturn(r.Context(), currentActor(r), domain.LegacyReturnInput{
		SaleID:    id,
		ProductID: req.ProductID,
		WorkerID:  req.WorkerID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
