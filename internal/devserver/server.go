// Package devserver is an in-memory stand-in for the delivery backend. It
// implements the same REST contract and business rules closely enough to run
// the client locally and in tests.
package devserver

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"delivery/internal/model"
)

const localDateTime = "2006-01-02T15:04:05"

type Config struct {
	Secret       string
	TokenTTL     time.Duration
	AllowOrigins []string
	// AccessLog enables gin's request logger.
	AccessLog bool
}

type user struct {
	ID       int64
	Name     string
	Email    string
	Password [32]byte
	Role     model.Role
	CPF      string
	CNPJ     string
}

type product struct {
	model.Product
	OwnerID int64
}

type order struct {
	model.Order
	BusinessID int64
	CustomerID int64
}

// Server holds all state in memory; it is safe for concurrent use.
type Server struct {
	mu     sync.Mutex
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	users         map[int64]*user
	usersByEmail  map[string]*user
	products      map[int64]*product
	orders        map[int64]*order
	nextUserID    int64
	nextProductID int64
	nextOrderID   int64

	engine *gin.Engine
}

func New(cfg Config) *Server {
	if cfg.Secret == "" {
		cfg.Secret = "dev-secret"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 2 * time.Hour
	}
	s := &Server{
		secret:       []byte(cfg.Secret),
		ttl:          cfg.TokenTTL,
		now:          time.Now,
		users:        make(map[int64]*user),
		usersByEmail: make(map[string]*user),
		products:     make(map[int64]*product),
		orders:       make(map[int64]*order),
	}
	s.engine = s.routes(cfg)
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes(cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.AccessLog {
		r.Use(gin.Logger())
	}

	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.AllowOrigins
	}
	r.Use(cors.New(cc))

	auth := r.Group("/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
	}

	protected := r.Group("/", s.requireToken)
	{
		protected.GET("/pedidos", s.handleListOrders)
		protected.POST("/pedidos", s.handleCreateOrder)
		protected.PUT("/pedidos/:id", s.handleUpdateOrder)
		protected.PUT("/pedidos/:id/avancar", s.handleAdvanceOrder)
		protected.DELETE("/pedidos/:id", s.handleDeleteOrder)

		protected.PUT("/empresa/pedidos/:id/avancar", s.handleAdvanceOrder)
		protected.DELETE("/empresa/pedidos/:id", s.handleDeleteOrder)

		protected.GET("/empresa/produtos", s.handleListProducts)
		protected.POST("/empresa/produtos", s.handleCreateProduct)
		protected.DELETE("/empresa/produtos/:id", s.handleDeleteProduct)
	}
	return r
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "error": msg})
}

func hashPassword(p string) [32]byte { return sha256.Sum256([]byte(p)) }

// --- auth ---

type registerRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"senha"`
	CPF      string `json:"cpf"`
	CNPJ     string `json:"cnpj"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Erro de validação")
		return
	}
	details := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		details["nome"] = "O nome não pode ser vazio"
	}
	if !strings.Contains(req.Email, "@") {
		details["email"] = "Email inválido"
	}
	if len(req.Password) < 6 {
		details["senha"] = "A senha deve ter no mínimo 6 caracteres"
	}
	if len(details) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "error": "Erro de validação", "details": details})
		return
	}

	role := model.RoleCustomer
	if strings.TrimSpace(req.CNPJ) != "" {
		role = model.RoleBusiness
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(req.Email)
	if _, exists := s.usersByEmail[email]; exists {
		badRequest(c, "Email já cadastrado")
		return
	}
	s.nextUserID++
	u := &user{
		ID:       s.nextUserID,
		Name:     req.Name,
		Email:    email,
		Password: hashPassword(req.Password),
		Role:     role,
		CPF:      req.CPF,
		CNPJ:     req.CNPJ,
	}
	s.users[u.ID] = u
	s.usersByEmail[email] = u
	c.Status(http.StatusOK)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		badRequest(c, "Erro de validação")
		return
	}
	s.mu.Lock()
	u, ok := s.usersByEmail[strings.ToLower(req.Email)]
	s.mu.Unlock()
	want := hashPassword(req.Password)
	if !ok || subtle.ConstantTimeCompare(u.Password[:], want[:]) != 1 {
		badRequest(c, "Credenciais inválidas")
		return
	}
	token, err := s.issueToken(u)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro interno no servidor"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "nome": u.Name, "tipo": u.Role})
}

func (s *Server) currentUser(c *gin.Context) *user {
	return c.MustGet(ctxUser).(*user)
}

// --- products ---

type productResponse struct {
	ID       int64        `json:"id"`
	Name     string       `json:"nome"`
	Price    json.Number  `json:"preco"`
	Category string       `json:"categoria"`
	Owner    *businessRef `json:"empresa,omitempty"`
}

type businessRef struct {
	ID   int64  `json:"id"`
	Name string `json:"nome"`
}

func (s *Server) productJSON(p *product) productResponse {
	out := productResponse{ID: p.ID, Name: p.Name, Price: model.Money(p.Price), Category: p.Category}
	if owner, ok := s.users[p.OwnerID]; ok {
		out.Owner = &businessRef{ID: owner.ID, Name: owner.Name}
	}
	return out
}

func (s *Server) handleListProducts(c *gin.Context) {
	u := s.currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]productResponse, 0, len(s.products))
	for _, p := range s.products {
		if u.Role == model.RoleBusiness && p.OwnerID != u.ID {
			continue
		}
		out = append(out, s.productJSON(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, out)
}

type createProductRequest struct {
	Name     string          `json:"nome"`
	Price    decimal.Decimal `json:"preco"`
	Category string          `json:"categoria"`
}

func (s *Server) handleCreateProduct(c *gin.Context) {
	u := s.currentUser(c)
	if u.Role != model.RoleBusiness {
		c.JSON(http.StatusForbidden, gin.H{"error": "Apenas empresas podem cadastrar produtos."})
		return
	}
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Erro de validação")
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Price.IsNegative() {
		badRequest(c, "Erro de validação")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProductID++
	p := &product{
		Product: model.Product{ID: s.nextProductID, Name: req.Name, Price: req.Price, Category: req.Category},
		OwnerID: u.ID,
	}
	s.products[p.ID] = p
	c.JSON(http.StatusOK, s.productJSON(p))
}

func (s *Server) handleDeleteProduct(c *gin.Context) {
	u := s.currentUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "id inválido")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Deleting someone else's product is silently ignored.
	if p, ok := s.products[id]; ok && p.OwnerID == u.ID {
		delete(s.products, id)
	}
	c.Status(http.StatusNoContent)
}

// --- orders ---

type orderResponse struct {
	ID          int64       `json:"id"`
	Description string      `json:"descricao"`
	Address     string      `json:"endereco"`
	Total       json.Number `json:"valorTotal"`
	Status      string      `json:"status"`
	CreatedAt   string      `json:"criadoEm"`
}

func orderJSON(o *order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		Description: o.Description,
		Address:     o.DeliveryAddress,
		Total:       model.Money(o.TotalValue),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt.Format(localDateTime),
	}
}

func (s *Server) handleListOrders(c *gin.Context) {
	u := s.currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orderResponse, 0)
	for _, o := range s.orders {
		if (u.Role == model.RoleBusiness && o.BusinessID == u.ID) || (u.Role == model.RoleCustomer && o.CustomerID == u.ID) {
			out = append(out, orderJSON(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, out)
}

type createOrderRequest struct {
	Description string          `json:"descricao"`
	Address     string          `json:"endereco"`
	Total       decimal.Decimal `json:"valorTotal"`
	BusinessID  *int64          `json:"empresaId"`
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	u := s.currentUser(c)
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Erro de validação")
		return
	}
	if strings.TrimSpace(req.Description) == "" || strings.TrimSpace(req.Address) == "" {
		badRequest(c, "Erro de validação")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o := &order{Order: model.Order{
		Description:     req.Description,
		DeliveryAddress: req.Address,
		TotalValue:      req.Total,
		Status:          model.StatusReceived,
		CreatedAt:       model.Timestamp{Time: s.now().Truncate(time.Second)},
	}}
	if u.Role == model.RoleBusiness {
		o.BusinessID = u.ID
	} else {
		if req.BusinessID == nil {
			badRequest(c, "Selecione um restaurante para fazer o pedido.")
			return
		}
		b, ok := s.users[*req.BusinessID]
		if !ok || b.Role != model.RoleBusiness {
			badRequest(c, "Restaurante não encontrado.")
			return
		}
		o.BusinessID = b.ID
		o.CustomerID = u.ID
	}
	s.nextOrderID++
	o.ID = s.nextOrderID
	s.orders[o.ID] = o
	c.JSON(http.StatusOK, orderJSON(o))
}

func (s *Server) lookupOrder(c *gin.Context) (*order, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "id inválido")
		return nil, false
	}
	o, ok := s.orders[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Pedido não encontrado"})
		return nil, false
	}
	return o, true
}

func (s *Server) handleAdvanceOrder(c *gin.Context) {
	u := s.currentUser(c)
	if u.Role != model.RoleBusiness {
		badRequest(c, "Apenas empresas podem alterar status.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.lookupOrder(c)
	if !ok {
		return
	}
	if o.BusinessID != u.ID {
		badRequest(c, "Acesso negado.")
		return
	}
	o.Status = o.Status.Next()
	c.JSON(http.StatusOK, orderJSON(o))
}

type updateOrderRequest struct {
	Description string `json:"descricao"`
}

func (s *Server) handleUpdateOrder(c *gin.Context) {
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Description) == "" {
		badRequest(c, "Erro de validação")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.lookupOrder(c)
	if !ok {
		return
	}
	o.Description = req.Description
	c.JSON(http.StatusOK, orderJSON(o))
}

func (s *Server) handleDeleteOrder(c *gin.Context) {
	u := s.currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.lookupOrder(c)
	if !ok {
		return
	}
	if o.BusinessID != u.ID && o.CustomerID != u.ID {
		badRequest(c, "Sem permissão para excluir.")
		return
	}
	delete(s.orders, o.ID)
	c.Status(http.StatusNoContent)
}

// SetOrderStatus forces an order's status. There is no public endpoint for
// cancellation, so tests and seeding use this.
func (s *Server) SetOrderStatus(id int64, st model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return errors.New("order not found")
	}
	o.Status = st
	return nil
}

// UserID returns the id registered under email.
func (s *Server) UserID(email string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return 0, false
	}
	return u.ID, true
}
