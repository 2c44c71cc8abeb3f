// Package dashboard holds the role-aware interaction logic behind the main
// screen: initial load, cart, order submission and catalog management.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"delivery/internal/journal"
	"delivery/internal/metrics"
	"delivery/internal/model"
	"delivery/internal/orders"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrForbiddenRole      = errors.New("action not available for this account")
	ErrSubmitInProgress   = errors.New("an order is already being submitted")
	ErrRequestFailed      = errors.New("request failed")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrMissingProductName = errors.New("product name is required")
	ErrUnknownView        = errors.New("unknown view")
	ErrSessionChanged     = errors.New("session changed while loading")
)

type View string

const (
	ViewHome      View = "home"
	ViewOrders    View = "orders"
	ViewDashboard View = "dashboard"
	ViewMenu      View = "menu"
	ViewSettings  View = "settings"
)

// Categories offered when creating a product.
var Categories = []string{"Lanches", "Bebidas", "Pizzas", "Sobremesas"}

// Backend is the subset of the API client the dashboard calls.
type Backend interface {
	ListOrders(ctx context.Context) ([]model.Order, error)
	CreateOrder(ctx context.Context, o model.NewOrder) (model.Order, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateProduct(ctx context.Context, p model.NewProduct) (model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	AdvanceOrder(ctx context.Context, id int64) (model.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// IdentitySource is satisfied by *session.Store.
type IdentitySource interface {
	Identity() (model.Identity, bool)
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

type Controller struct {
	backend Backend
	ident   IdentitySource
	orders  *orders.Store
	journal *journal.Journal
	metrics *metrics.Registry

	mu         sync.Mutex
	catalog    []model.Product
	cart       []CartLine
	address    string
	customer   CustomerInfo
	filter     orders.Filter
	view       View
	submitting bool
	// gen changes on every Leave so in-flight loads can tell they are stale.
	gen uint64
}

type Option func(*Controller)

func WithJournal(j *journal.Journal) Option { return func(c *Controller) { c.journal = j } }

func WithMetrics(m *metrics.Registry) Option { return func(c *Controller) { c.metrics = m } }

func New(backend Backend, ident IdentitySource, store *orders.Store, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		ident:    ident,
		orders:   store,
		customer: CustomerInfo{Payment: defaultPayment},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) role() (model.Role, error) {
	id, ok := c.ident.Identity()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return id.Role, nil
}

func (c *Controller) requireBusiness() error {
	role, err := c.role()
	if err != nil {
		return err
	}
	if role != model.RoleBusiness {
		return ErrForbiddenRole
	}
	return nil
}

func defaultView(role model.Role) View {
	if role == model.RoleCustomer {
		return ViewHome
	}
	return ViewDashboard
}

// Load fetches orders and catalog concurrently. An order failure leaves the
// store as it was and is returned; a catalog failure is only logged and the
// previous catalog stays. Results are dropped when Leave ran meanwhile.
func (c *Controller) Load(ctx context.Context) error {
	role, err := c.role()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.view = defaultView(role)
	gen := c.gen
	c.mu.Unlock()

	c.orders.SetLoading(true)
	var (
		list     []model.Order
		products []model.Product
		prodErr  error
		g        errgroup.Group
	)
	g.Go(func() error {
		var err error
		list, err = c.backend.ListOrders(ctx)
		return err
	})
	g.Go(func() error {
		products, prodErr = c.backend.ListProducts(ctx)
		return nil
	})
	err = g.Wait()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		log.Printf("dashboard load superseded by a session change, dropping results")
		if err != nil {
			return fmt.Errorf("load orders: %w", err)
		}
		return ErrSessionChanged
	}
	if prodErr != nil {
		log.Printf("catalog fetch failed, keeping previous catalog: %v", prodErr)
	} else {
		c.catalog = products
	}
	if err != nil {
		c.orders.SetLoading(false)
		c.mu.Unlock()
		return fmt.Errorf("load orders: %w", err)
	}
	c.orders.ReplaceAll(list)
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.OrdersLoaded.Set(float64(len(list)))
	}
	log.Printf("dashboard loaded role=%s orders=%d products=%d", role, len(list), len(products))
	return nil
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// SetView switches to a view available to the current role.
func (c *Controller) SetView(v View) error {
	role, err := c.role()
	if err != nil {
		return err
	}
	allowed := map[model.Role][]View{
		model.RoleCustomer: {ViewHome, ViewOrders},
		model.RoleBusiness: {ViewDashboard, ViewMenu, ViewSettings},
	}
	for _, ok := range allowed[role] {
		if ok == v {
			c.mu.Lock()
			c.view = v
			c.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownView, v)
}

// Catalog returns a copy of the loaded products.
func (c *Controller) Catalog() []model.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Product(nil), c.catalog...)
}

func (c *Controller) product(id int64) (model.Product, bool) {
	for _, p := range c.catalog {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

// AddToCart adds qty of a catalog product. It reports false, leaving the
// cart alone, when the product is not in the catalog or qty < 1.
func (c *Controller) AddToCart(productID int64, qty int, note string) bool {
	if qty < 1 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.product(productID)
	if !ok {
		return false
	}
	c.cart = append(c.cart, CartLine{Product: p, Quantity: qty, Note: note})
	return true
}

// RemoveFromCart drops the line at index i.
func (c *Controller) RemoveFromCart(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.cart) {
		return false
	}
	c.cart = append(c.cart[:i:i], c.cart[i+1:]...)
	return true
}

func (c *Controller) Cart() []CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CartLine(nil), c.cart...)
}

func (c *Controller) CartTotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CartTotal(c.cart)
}

func (c *Controller) SetDeliveryAddress(addr string) {
	c.mu.Lock()
	c.address = addr
	c.mu.Unlock()
}

func (c *Controller) SetCustomer(ci CustomerInfo) {
	if ci.Payment == "" {
		ci.Payment = defaultPayment
	}
	c.mu.Lock()
	c.customer = ci
	c.mu.Unlock()
}

func (c *Controller) Customer() CustomerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customer
}

// Submit validates the cart, sends it, and on success appends the returned
// order and resets the cart. On any failure nothing changes.
func (c *Controller) Submit(ctx context.Context) (model.Order, error) {
	role, err := c.role()
	if err != nil {
		return model.Order{}, err
	}

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return model.Order{}, ErrSubmitInProgress
	}
	req, err := BuildOrder(role, c.cart, c.address, c.customer)
	if err != nil {
		c.mu.Unlock()
		c.rejected(err)
		return model.Order{}, err
	}
	c.submitting = true
	c.mu.Unlock()

	o, err := c.backend.CreateOrder(ctx, req)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		c.mu.Unlock()
		return model.Order{}, fmt.Errorf("%w: submit order: %w", ErrRequestFailed, err)
	}
	c.cart = nil
	c.address = ""
	c.customer = CustomerInfo{Payment: defaultPayment}
	if role == model.RoleCustomer {
		c.view = ViewOrders
	} else {
		c.view = ViewDashboard
	}
	c.mu.Unlock()

	c.orders.Append(o)
	if c.metrics != nil {
		c.metrics.OrdersSubmitted.Inc()
	}
	c.record(ctx, journal.Event{Kind: journal.KindOrderCreated, OrderID: o.ID, Status: string(o.Status), Total: req.TotalValue})
	return o, nil
}

func (c *Controller) rejected(err error) {
	if c.metrics == nil {
		return
	}
	reason := "other"
	switch {
	case errors.Is(err, ErrEmptyCart):
		reason = "empty_cart"
	case errors.Is(err, ErrMissingAddress):
		reason = "missing_address"
	case errors.Is(err, ErrMissingCustomer):
		reason = "missing_customer"
	case errors.Is(err, ErrMixedBusinesses):
		reason = "mixed_businesses"
	}
	c.metrics.SubmitRejected.WithLabelValues(reason).Inc()
}

// Advance asks the backend to move an order forward and stores whatever the
// backend returns.
func (c *Controller) Advance(ctx context.Context, id int64) (model.Order, error) {
	if err := c.requireBusiness(); err != nil {
		return model.Order{}, err
	}
	o, err := c.backend.AdvanceOrder(ctx, id)
	if err != nil {
		return model.Order{}, fmt.Errorf("%w: advance order %d: %w", ErrRequestFailed, id, err)
	}
	c.orders.UpdateByID(o)
	c.record(ctx, journal.Event{Kind: journal.KindOrderAdvanced, OrderID: o.ID, Status: string(o.Status)})
	return o, nil
}

// DeleteOrder removes an order after confirm approves. It reports whether a
// deletion happened.
func (c *Controller) DeleteOrder(ctx context.Context, id int64, confirm Confirmer) (bool, error) {
	if err := c.requireBusiness(); err != nil {
		return false, err
	}
	if confirm == nil || !confirm.Confirm(fmt.Sprintf("Excluir pedido #%d?", id)) {
		return false, nil
	}
	if err := c.backend.DeleteOrder(ctx, id); err != nil {
		return false, fmt.Errorf("%w: delete order %d: %w", ErrRequestFailed, id, err)
	}
	c.orders.RemoveByID(id)
	c.record(ctx, journal.Event{Kind: journal.KindOrderDeleted, OrderID: id})
	return true, nil
}

// ParsePrice accepts a decimal point or a decimal comma.
func ParsePrice(text string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidPrice, text)
	}
	return d, nil
}

// AddProduct creates a catalog entry and appends the backend's copy to the
// local catalog.
func (c *Controller) AddProduct(ctx context.Context, name, priceText, category string) (model.Product, error) {
	if err := c.requireBusiness(); err != nil {
		return model.Product{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Product{}, ErrMissingProductName
	}
	price, err := ParsePrice(priceText)
	if err != nil {
		return model.Product{}, err
	}
	if category == "" {
		category = Categories[0]
	}
	p, err := c.backend.CreateProduct(ctx, model.NewProduct{Name: name, Price: model.Money(price), Category: category})
	if err != nil {
		return model.Product{}, fmt.Errorf("%w: create product: %w", ErrRequestFailed, err)
	}
	c.mu.Lock()
	c.catalog = append(c.catalog, p)
	c.mu.Unlock()
	c.record(ctx, journal.Event{Kind: journal.KindProductCreated, ProductID: p.ID})
	return p, nil
}

// DeleteProduct removes a catalog entry after confirm approves.
func (c *Controller) DeleteProduct(ctx context.Context, id int64, confirm Confirmer) (bool, error) {
	if err := c.requireBusiness(); err != nil {
		return false, err
	}
	if confirm == nil || !confirm.Confirm(fmt.Sprintf("Excluir produto #%d?", id)) {
		return false, nil
	}
	if err := c.backend.DeleteProduct(ctx, id); err != nil {
		return false, fmt.Errorf("%w: delete product %d: %w", ErrRequestFailed, id, err)
	}
	c.mu.Lock()
	for i, p := range c.catalog {
		if p.ID == id {
			c.catalog = append(c.catalog[:i:i], c.catalog[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.record(ctx, journal.Event{Kind: journal.KindProductDeleted, ProductID: id})
	return true, nil
}

// SetFilter changes the order listing filter. Only businesses filter.
func (c *Controller) SetFilter(f orders.Filter) error {
	if err := c.requireBusiness(); err != nil {
		return err
	}
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
	return nil
}

func (c *Controller) Filter() orders.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// VisibleOrders derives the filtered, sorted listing from the store.
func (c *Controller) VisibleOrders() []model.Order {
	return orders.Visible(c.orders.Orders(), c.Filter())
}

// Loading reports whether an order fetch is in flight.
func (c *Controller) Loading() bool {
	return c.orders.Loading()
}

// Stats is the business summary shown on the dashboard cards.
type Stats struct {
	Orders int
	// Pending counts every order not yet delivered, cancelled ones included.
	Pending int
	Revenue decimal.Decimal
}

func (c *Controller) Stats() (Stats, error) {
	if err := c.requireBusiness(); err != nil {
		return Stats{}, err
	}
	list := c.orders.Orders()
	byStatus := orders.CountByStatus(list)
	return Stats{
		Orders:  len(list),
		Pending: len(list) - byStatus[model.StatusDelivered],
		Revenue: orders.Revenue(list),
	}, nil
}

// Leave resets everything tied to the signed-in account.
func (c *Controller) Leave() {
	c.mu.Lock()
	c.catalog = nil
	c.cart = nil
	c.address = ""
	c.customer = CustomerInfo{Payment: defaultPayment}
	c.filter = orders.Filter{}
	c.view = ""
	c.gen++
	c.mu.Unlock()
	c.orders.Clear()
}

func (c *Controller) record(ctx context.Context, e journal.Event) {
	if id, ok := c.ident.Identity(); ok {
		e.Actor = id.Name
	}
	c.journal.Record(ctx, e)
}
