package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"shopmanager/internal/domain"

	"github.com/shopspring/decimal"
)

type memState struct {
	products         map[int64]domain.Product
	vendors          map[int64]domain.Vendor
	workers          map[int64]domain.Worker
	purchaseReceipts map[int64]domain.PurchaseReceipt
	purchaseLines    map[int64]domain.PurchaseReceiptLine
	salesReceipts    map[int64]domain.SalesReceipt
	salesLines       map[int64]domain.SalesReceiptLine
	legacySales      map[int64]domain.LegacySale
	returns          map[int64]domain.Return
	admins           map[int64]domain.AdminUser
	invitations      map[int64]domain.Invitation
	actions          []domain.ActionEntry
	nextID           int64
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *memState) clone() *memState {
	return &memState{
		products:         cloneMap(s.products),
		vendors:          cloneMap(s.vendors),
		workers:          cloneMap(s.workers),
		purchaseReceipts: cloneMap(s.purchaseReceipts),
		purchaseLines:    cloneMap(s.purchaseLines),
		salesReceipts:    cloneMap(s.salesReceipts),
		salesLines:       cloneMap(s.salesLines),
		legacySales:      cloneMap(s.legacySales),
		returns:          cloneMap(s.returns),
		admins:           cloneMap(s.admins),
		invitations:      cloneMap(s.invitations),
		actions:          append([]domain.ActionEntry(nil), s.actions...),
		nextID:           s.nextID,
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// MemoryStore keeps every table in maps guarded by one mutex. Transactions
// hold the mutex for their whole duration and restore a snapshot on
// failure, so they are serializable.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			products:         map[int64]domain.Product{},
			vendors:          map[int64]domain.Vendor{},
			workers:          map[int64]domain.Worker{},
			purchaseReceipts: map[int64]domain.PurchaseReceipt{},
			purchaseLines:    map[int64]domain.PurchaseReceiptLine{},
			salesReceipts:    map[int64]domain.SalesReceipt{},
			salesLines:       map[int64]domain.SalesReceiptLine{},
			legacySales:      map[int64]domain.LegacySale{},
			returns:          map[int64]domain.Return{},
			admins:           map[int64]domain.AdminUser{},
			invitations:      map[int64]domain.Invitation{},
		},
		now: time.Now,
	}
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.state.clone()
	err := fn(&memTx{s: m.state, now: m.now})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// SeedLegacySale inserts a flat sale as it would exist from before receipts.
func (m *MemoryStore) SeedLegacySale(sale domain.LegacySale) domain.LegacySale {
	m.mu.Lock()
	defer m.mu.Unlock()
	sale.ID = m.state.id()
	if sale.PaymentStatus == "" {
		sale.PaymentStatus = domain.LegacySalePaid
	}
	if sale.TotalAmount.IsZero() {
		sale.TotalAmount = sale.SoldPrice.Mul(decimal.NewFromInt(int64(sale.Quantity)))
	}
	sale.CreatedAt = m.now()
	m.state.legacySales[sale.ID] = sale
	return sale
}

// LegacySale returns a flat sale by id.
func (m *MemoryStore) LegacySale(id int64) (domain.LegacySale, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sale, ok := m.state.legacySales[id]
	return sale, ok
}

func (m *MemoryStore) ListProducts(ctx context.Context, filter ProductListFilter) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.Product, 0)
	for _, p := range m.state.products {
		if p.Archived() && !filter.IncludeArchived {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if filter.LowStock != nil && p.Quantity > *filter.LowStock {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.products[id]
	if !ok {
		return domain.Product{}, domain.NewNotFoundError("product", id)
	}
	return p, nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, input ProductCreateInput) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertProduct(input, m.now())
}

func (m *MemoryStore) PatchProduct(ctx context.Context, id int64, input ProductPatchInput) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.state.products[id]
	if !ok || p.Archived() {
		return domain.Product{}, domain.NewNotFoundError("product", id)
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if other, found := m.state.activeProductByName(name); found && other.ID != id {
			return domain.Product{}, domain.NewConflictError(fmt.Sprintf("product %q already exists", name))
		}
		p.Name = name
	}
	if input.Description != nil {
		p.Description = strings.TrimSpace(*input.Description)
	}
	if input.RetailPrice != nil {
		p.RetailPrice = *input.RetailPrice
	}
	if input.SellPrice != nil {
		p.SellPrice = *input.SellPrice
	}
	p.UpdatedAt = m.now()
	m.state.products[id] = p
	return p, nil
}

func (m *MemoryStore) ArchiveProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.products[id]
	if !ok || p.Archived() {
		return domain.NewNotFoundError("product", id)
	}
	now := m.now()
	p.ArchivedAt = &now
	p.UpdatedAt = now
	m.state.products[id] = p
	return nil
}

func (m *MemoryStore) Restock(ctx context.Context, id int64, delta int) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.products[id]
	if !ok || p.Archived() {
		return domain.Product{}, domain.NewNotFoundError("product", id)
	}
	if int64(p.Quantity)+int64(delta) > math.MaxInt32 {
		return domain.Product{}, errStockOutOfRange(id)
	}
	p.Quantity += delta
	p.UpdatedAt = m.now()
	m.state.products[id] = p
	return p, nil
}

func (m *MemoryStore) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Vendor, 0)
	for _, v := range m.state.vendors {
		if v.ArchivedAt == nil {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) CreateVendor(ctx context.Context, input VendorInput) (domain.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := domain.Vendor{
		ID:        m.state.id(),
		Name:      input.Name,
		Contact:   input.Contact,
		Phone:     input.Phone,
		Address:   input.Address,
		CreatedAt: m.now(),
	}
	m.state.vendors[v.ID] = v
	return v, nil
}

func (m *MemoryStore) ArchiveVendor(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state.vendors[id]
	if !ok || v.ArchivedAt != nil {
		return domain.NewNotFoundError("vendor", id)
	}
	now := m.now()
	v.ArchivedAt = &now
	m.state.vendors[id] = v
	return nil
}

func (m *MemoryStore) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Worker, 0)
	for _, w := range m.state.workers {
		if w.ArchivedAt == nil {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetWorker(ctx context.Context, id int64) (domain.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.activeWorker(id)
}

func (m *MemoryStore) CreateWorker(ctx context.Context, input WorkerInput) (domain.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := workerFromInput(input)
	w.ID = m.state.id()
	w.CreatedAt = m.now()
	m.state.workers[w.ID] = w
	return w, nil
}

func (m *MemoryStore) UpdateWorker(ctx context.Context, id int64, input WorkerInput) (domain.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, err := m.state.activeWorker(id)
	if err != nil {
		return domain.Worker{}, err
	}
	w := workerFromInput(input)
	w.ID = id
	w.CreatedAt = existing.CreatedAt
	m.state.workers[id] = w
	return w, nil
}

func (m *MemoryStore) ArchiveWorker(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.state.activeWorker(id)
	if err != nil {
		return err
	}
	now := m.now()
	w.ArchivedAt = &now
	m.state.workers[id] = w
	return nil
}

func workerFromInput(input WorkerInput) domain.Worker {
	return domain.Worker{
		Name:        input.Name,
		FatherName:  input.FatherName,
		Phone:       input.Phone,
		CNIC:        input.CNIC,
		Salary:      input.Salary,
		Bonus:       input.Bonus,
		Role:        input.Role,
		JoiningDate: input.JoiningDate,
		Benefits:    input.Benefits,
	}
}

func (m *MemoryStore) ListPurchaseReceipts(ctx context.Context, limit, offset int) ([]domain.PurchaseReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PurchaseReceipt, 0, len(m.state.purchaseReceipts))
	for _, r := range m.state.purchaseReceipts {
		r.VendorName = m.state.vendors[r.VendorID].Name
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, limit, offset), nil
}

func (m *MemoryStore) GetPurchaseReceipt(ctx context.Context, id int64) (domain.PurchaseReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.purchaseReceipts[id]
	if !ok {
		return domain.PurchaseReceipt{}, domain.NewNotFoundError("purchase receipt", id)
	}
	r.VendorName = m.state.vendors[r.VendorID].Name
	r.Lines = make([]domain.PurchaseReceiptLine, 0)
	for _, line := range m.state.purchaseLines {
		if line.ReceiptID == id {
			line.ProductName = m.state.products[line.ProductID].Name
			r.Lines = append(r.Lines, line)
		}
	}
	sort.Slice(r.Lines, func(i, j int) bool { return r.Lines[i].ID < r.Lines[j].ID })
	return r, nil
}

func (m *MemoryStore) ListSalesReceipts(ctx context.Context, filter SalesReceiptFilter) ([]domain.SalesReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SalesReceipt, 0)
	for id, r := range m.state.salesReceipts {
		if filter.Status != nil && r.PaymentStatus != *filter.Status {
			continue
		}
		if filter.WorkerID != nil && r.WorkerID != *filter.WorkerID {
			continue
		}
		if filter.From != nil && r.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !r.CreatedAt.Before(*filter.To) {
			continue
		}
		r = m.state.salesReceiptView(id)
		if !filter.WithLines {
			r.Lines = nil
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (m *MemoryStore) GetSalesReceipt(ctx context.Context, id int64) (domain.SalesReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.salesReceipts[id]; !ok {
		return domain.SalesReceipt{}, domain.NewNotFoundError("sales receipt", id)
	}
	return m.state.salesReceiptView(id), nil
}

func (m *MemoryStore) ListReturns(ctx context.Context, limit, offset int) ([]domain.Return, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Return, 0, len(m.state.returns))
	for _, r := range m.state.returns {
		r.ProductName = m.state.products[r.ProductID].Name
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, limit, offset), nil
}

func (m *MemoryStore) GetAdmin(ctx context.Context, id int64) (domain.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.admins[id]
	if !ok {
		return domain.AdminUser{}, domain.NewNotFoundError("admin", id)
	}
	return a, nil
}

func (m *MemoryStore) GetAdminByEmail(ctx context.Context, email string) (domain.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range m.state.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return domain.AdminUser{}, &domain.NotFoundError{Entity: "admin"}
}

func (m *MemoryStore) ListAdmins(ctx context.Context) ([]domain.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AdminUser, 0, len(m.state.admins))
	for _, a := range m.state.admins {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *MemoryStore) CreateAdmin(ctx context.Context, admin domain.AdminUser) (domain.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertAdmin(admin, m.now())
}

func (m *MemoryStore) UpdateAdmin(ctx context.Context, id int64, update AdminUpdate) (domain.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.admins[id]
	if !ok {
		return domain.AdminUser{}, domain.NewNotFoundError("admin", id)
	}
	if update.Name != nil {
		a.Name = *update.Name
	}
	if update.Address != nil {
		a.Address = *update.Address
	}
	if update.Role != nil {
		a.Role = *update.Role
	}
	if update.Permissions != nil {
		a.Permissions = append(domain.Permissions(nil), (*update.Permissions)...)
	}
	if update.PasswordHash != nil {
		a.PasswordHash = *update.PasswordHash
	}
	m.state.admins[id] = a
	return a, nil
}

func (m *MemoryStore) DeleteAdmin(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.admins[id]; !ok {
		return domain.NewNotFoundError("admin", id)
	}
	delete(m.state.admins, id)
	return nil
}

func (m *MemoryStore) CountSuperAdmins(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.state.admins {
		if a.Role == domain.RoleSuperAdmin {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CreateInvitation(ctx context.Context, inv domain.Invitation) (domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv.ID = m.state.id()
	inv.CreatedAt = m.now()
	m.state.invitations[inv.ID] = inv
	return inv, nil
}

func (m *MemoryStore) SignupWithInvitation(ctx context.Context, code string, admin domain.AdminUser, now time.Time) (domain.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, inv := range m.state.invitations {
		if inv.Code != code || inv.Email != admin.Email || inv.ConsumedAt != nil || !inv.ExpiresAt.After(now) {
			continue
		}
		created, err := m.state.insertAdmin(admin, m.now())
		if err != nil {
			return domain.AdminUser{}, err
		}
		consumed := now
		inv.ConsumedAt = &consumed
		m.state.invitations[id] = inv
		return created, nil
	}
	return domain.AdminUser{}, domain.NewValidationError("invitation code is invalid or expired")
}

func (m *MemoryStore) LogAction(ctx context.Context, entry domain.ActionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.logAction(entry, m.now())
	return nil
}

func (m *MemoryStore) ListActions(ctx context.Context, limit, offset int, search string) ([]domain.ActionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ActionEntry, 0, len(m.state.actions))
	for i := len(m.state.actions) - 1; i >= 0; i-- {
		if a := m.state.actions[i]; actionMatches(a, search) {
			out = append(out, a)
		}
	}
	return paginate(out, limit, offset), nil
}

func (m *MemoryStore) CountActions(ctx context.Context, search string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.state.actions {
		if actionMatches(a, search) {
			count++
		}
	}
	return count, nil
}

func actionMatches(a domain.ActionEntry, search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	admin := ""
	if a.AdminEmail != nil {
		admin = *a.AdminEmail
	}
	for _, field := range []string{a.Title, a.Details, admin} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	limit = normalizeLimit(limit)
	offset = normalizeOffset(offset)
	if offset >= len(items) {
		return items[:0]
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (s *memState) insertProduct(input ProductCreateInput, now time.Time) (domain.Product, error) {
	if _, found := s.activeProductByName(input.Name); found {
		return domain.Product{}, domain.NewConflictError(fmt.Sprintf("product %q already exists", input.Name))
	}
	if input.Quantity < 0 {
		return domain.Product{}, domain.NewValidationError("quantity must not be negative")
	}
	p := domain.Product{
		ID:          s.id(),
		Name:        input.Name,
		Description: input.Description,
		RetailPrice: input.RetailPrice,
		SellPrice:   input.SellPrice,
		Quantity:    input.Quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.products[p.ID] = p
	return p, nil
}

func (s *memState) activeProductByName(name string) (domain.Product, bool) {
	for _, p := range s.products {
		if p.Name == name && !p.Archived() {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (s *memState) activeWorker(id int64) (domain.Worker, error) {
	w, ok := s.workers[id]
	if !ok || w.ArchivedAt != nil {
		return domain.Worker{}, domain.NewNotFoundError("worker", id)
	}
	return w, nil
}

func (s *memState) salesReceiptView(id int64) domain.SalesReceipt {
	r := s.salesReceipts[id]
	r.WorkerName = s.workers[r.WorkerID].Name
	r.Lines = make([]domain.SalesReceiptLine, 0)
	for _, line := range s.salesLines {
		if line.ReceiptID == id {
			line.ProductName = s.products[line.ProductID].Name
			r.Lines = append(r.Lines, line)
		}
	}
	sort.Slice(r.Lines, func(i, j int) bool { return r.Lines[i].ID < r.Lines[j].ID })
	r.LineCount = len(r.Lines)
	return r
}

func (s *memState) insertAdmin(admin domain.AdminUser, now time.Time) (domain.AdminUser, error) {
	for _, existing := range s.admins {
		if existing.Email == admin.Email {
			return domain.AdminUser{}, domain.NewConflictError(fmt.Sprintf("admin %s already exists", admin.Email))
		}
	}
	admin.ID = s.id()
	admin.CreatedAt = now
	if admin.Permissions == nil {
		admin.Permissions = domain.Permissions{}
	}
	s.admins[admin.ID] = admin
	return admin, nil
}

func (s *memState) logAction(entry domain.ActionEntry, now time.Time) {
	entry.ActionID = int64(len(s.actions) + 1)
	entry.CreatedAt = now
	if entry.Details == "" {
		entry.Details = "-"
	}
	s.actions = append(s.actions, entry)
}

type memTx struct {
	s   *memState
	now func() time.Time
}

var _ LedgerTx = (*memTx)(nil)

func (t *memTx) GetWorker(ctx context.Context, id int64) (domain.Worker, error) {
	if err := ctx.Err(); err != nil {
		return domain.Worker{}, err
	}
	return t.s.activeWorker(id)
}

func (t *memTx) GetVendor(ctx context.Context, id int64) (domain.Vendor, error) {
	if err := ctx.Err(); err != nil {
		return domain.Vendor{}, err
	}
	v, ok := t.s.vendors[id]
	if !ok || v.ArchivedAt != nil {
		return domain.Vendor{}, domain.NewNotFoundError("vendor", id)
	}
	return v, nil
}

func (t *memTx) LockProduct(ctx context.Context, id int64) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	p, ok := t.s.products[id]
	if !ok {
		return domain.Product{}, domain.NewNotFoundError("product", id)
	}
	return p, nil
}

func (t *memTx) LockProductByName(ctx context.Context, name string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	p, ok := t.s.activeProductByName(name)
	if !ok {
		return domain.Product{}, &domain.NotFoundError{Entity: fmt.Sprintf("product %q", name)}
	}
	return p, nil
}

func (t *memTx) InsertProduct(ctx context.Context, input ProductCreateInput) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	return t.s.insertProduct(input, t.now())
}

func (t *memTx) AdjustStock(ctx context.Context, productID int64, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, ok := t.s.products[productID]
	if !ok {
		return domain.NewNotFoundError("product", productID)
	}
	if p.Quantity+delta < 0 {
		return domain.ErrInsufficientStock
	}
	if int64(p.Quantity)+int64(delta) > math.MaxInt32 {
		return errStockOutOfRange(productID)
	}
	p.Quantity += delta
	p.UpdatedAt = t.now()
	t.s.products[productID] = p
	return nil
}

func (t *memTx) InsertSalesReceipt(ctx context.Context, receipt domain.SalesReceipt) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := t.s.activeWorker(receipt.WorkerID); err != nil {
		return 0, err
	}
	receipt.ID = t.s.id()
	receipt.CreatedAt = t.now()
	receipt.UpdatedAt = receipt.CreatedAt
	receipt.Lines = nil
	t.s.salesReceipts[receipt.ID] = receipt
	return receipt.ID, nil
}

func (t *memTx) InsertSalesReceiptLine(ctx context.Context, line domain.SalesReceiptLine) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, ok := t.s.salesReceipts[line.ReceiptID]; !ok {
		return 0, domain.NewNotFoundError("sales receipt", line.ReceiptID)
	}
	line.ID = t.s.id()
	t.s.salesLines[line.ID] = line
	return line.ID, nil
}

func (t *memTx) LockSalesReceipt(ctx context.Context, id int64) (domain.SalesReceipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.SalesReceipt{}, err
	}
	if _, ok := t.s.salesReceipts[id]; !ok {
		return domain.SalesReceipt{}, domain.NewNotFoundError("sales receipt", id)
	}
	r := t.s.salesReceiptView(id)
	r.Lines = nil
	return r, nil
}

func (t *memTx) LockSalesReceiptLine(ctx context.Context, lineID int64) (domain.SalesReceiptLine, error) {
	if err := ctx.Err(); err != nil {
		return domain.SalesReceiptLine{}, err
	}
	line, ok := t.s.salesLines[lineID]
	if !ok {
		return domain.SalesReceiptLine{}, domain.NewNotFoundError("receipt item", lineID)
	}
	return line, nil
}

func (t *memTx) SetSalesReceiptLineQuantity(ctx context.Context, lineID int64, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, ok := t.s.salesLines[lineID]
	if !ok {
		return domain.NewNotFoundError("receipt item", lineID)
	}
	line.Quantity = quantity
	t.s.salesLines[lineID] = line
	return nil
}

func (t *memTx) DeleteSalesReceiptLine(ctx context.Context, lineID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.s.salesLines[lineID]; !ok {
		return domain.NewNotFoundError("receipt item", lineID)
	}
	delete(t.s.salesLines, lineID)
	return nil
}

func (t *memTx) SumSalesReceiptLines(ctx context.Context, receiptID int64) (decimal.Decimal, int, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, 0, err
	}
	total := decimal.Zero
	count := 0
	for _, line := range t.s.salesLines {
		if line.ReceiptID == receiptID {
			total = total.Add(line.LineTotal())
			count++
		}
	}
	return total, count, nil
}

func (t *memTx) UpdateSalesReceiptTotals(ctx context.Context, id int64, total decimal.Decimal, status domain.PaymentStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, ok := t.s.salesReceipts[id]
	if !ok {
		return domain.NewNotFoundError("sales receipt", id)
	}
	r.TotalAmount = total
	r.PaymentStatus = status
	r.UpdatedAt = t.now()
	t.s.salesReceipts[id] = r
	return nil
}

func (t *memTx) InsertPurchaseReceipt(ctx context.Context, receipt domain.PurchaseReceipt) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	receipt.ID = t.s.id()
	receipt.CreatedAt = t.now()
	receipt.Lines = nil
	t.s.purchaseReceipts[receipt.ID] = receipt
	return receipt.ID, nil
}

func (t *memTx) InsertPurchaseReceiptLine(ctx context.Context, line domain.PurchaseReceiptLine) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	line.ID = t.s.id()
	t.s.purchaseLines[line.ID] = line
	return line.ID, nil
}

func (t *memTx) UpdatePurchaseReceiptTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, ok := t.s.purchaseReceipts[id]
	if !ok {
		return domain.NewNotFoundError("purchase receipt", id)
	}
	r.TotalAmount = total
	t.s.purchaseReceipts[id] = r
	return nil
}

func (t *memTx) LockLegacySale(ctx context.Context, id int64) (domain.LegacySale, error) {
	if err := ctx.Err(); err != nil {
		return domain.LegacySale{}, err
	}
	sale, ok := t.s.legacySales[id]
	if !ok {
		return domain.LegacySale{}, domain.NewNotFoundError("sale", id)
	}
	return sale, nil
}

func (t *memTx) SumLegacyReturned(ctx context.Context, saleID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	total := 0
	for _, r := range t.s.returns {
		if r.SaleID != nil && *r.SaleID == saleID {
			total += r.Quantity
		}
	}
	return total, nil
}

func (t *memTx) SetLegacySaleStatus(ctx context.Context, id int64, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sale, ok := t.s.legacySales[id]
	if !ok {
		return domain.NewNotFoundError("sale", id)
	}
	sale.PaymentStatus = status
	t.s.legacySales[id] = sale
	return nil
}

func (t *memTx) InsertReturn(ctx context.Context, ret domain.Return) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ret.ID = t.s.id()
	ret.CreatedAt = t.now()
	t.s.returns[ret.ID] = ret
	return ret.ID, nil
}

func (t *memTx) LogAction(ctx context.Context, entry domain.ActionEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.logAction(entry, t.now())
	return nil
}
