package http

import (
	"net/http"
	"time"

	"shopmanager/internal/auth"
	"shopmanager/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	Tokens         *auth.TokenManager
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(Timeout(opts.RequestTimeout))
	r.Use(CORS(opts.AllowedOrigins))

	r.Get("/healthz", handler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", handler.Login)
		r.Post("/auth/signup", handler.Signup)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(opts.Tokens, handler.svc))
			r.Get("/auth/verify", handler.Verify)

			r.Group(func(r chi.Router) {
				r.Use(RequireSuperAdmin)
				r.Post("/auth/invitations", handler.CreateInvitation)
				r.Get("/admins", handler.ListAdmins)
				r.Post("/admins", handler.CreateAdmin)
				r.Get("/admins/{id}", handler.GetAdmin)
				r.Put("/admins/{id}", handler.UpdateAdmin)
				r.Delete("/admins/{id}", handler.DeleteAdmin)
				r.Get("/actions", handler.ListActions)
				r.Get("/actions/count", handler.CountActions)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequirePermission(domain.PermProducts))
				r.Get("/products", handler.ListProducts)
				r.Post("/products", handler.CreateProduct)
				r.Get("/products/{id}", handler.GetProduct)
				r.Patch("/products/{id}", handler.PatchProduct)
				r.Delete("/products/{id}", handler.DeleteProduct)
				r.Put("/products/{id}/restock", handler.RestockProduct)

				r.Get("/vendors", handler.ListVendors)
				r.Post("/vendors", handler.CreateVendor)
				r.Delete("/vendors/{id}", handler.DeleteVendor)

				r.Get("/receipts", handler.ListPurchaseReceipts)
				r.Post("/receipts", handler.CreatePurchaseReceipt)
				r.Post("/receipts/import", handler.ImportPurchaseReceipt)
				r.Get("/receipts/{id}", handler.GetPurchaseReceipt)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequirePermission(domain.PermWorkers))
				r.Get("/workers", handler.ListWorkers)
				r.Post("/workers", handler.CreateWorker)
				r.Get("/workers/{id}", handler.GetWorker)
				r.Put("/workers/{id}", handler.UpdateWorker)
				r.Delete("/workers/{id}", handler.DeleteWorker)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequirePermission(domain.PermSales))
				r.Get("/sales/receipts", handler.ListSalesReceipts)
				r.Post("/sales/receipts", handler.CreateSalesReceipt)
				r.Get("/sales/receipts/export", handler.ExportSalesReceipts)
				r.Get("/sales/receipts/{id}", handler.GetSalesReceipt)
				r.Put("/sales/receipts/{id}/status", handler.UpdateSalesReceiptStatus)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequirePermission(domain.PermReturns))
				r.Post("/sales/receipts/{id}/return", handler.ReturnReceiptItem)
				r.Get("/returns", handler.ListReturns)
				r.Post("/sales/legacy/{id}/return", handler.ReturnLegacySale)
			})
		})
	})

	return r
}
