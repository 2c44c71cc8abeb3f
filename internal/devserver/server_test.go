package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type harness struct {
	t   *testing.T
	srv *Server
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, srv: New(Config{Secret: "test"})}
}

func (h *harness) call(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) register(name, email string, business bool) {
	h.t.Helper()
	body := map[string]string{"nome": name, "email": email, "senha": "secret1"}
	if business {
		body["cnpj"] = "12345678000199"
	} else {
		body["cpf"] = "12345678901"
	}
	rec := h.call(http.MethodPost, "/auth/register", "", body)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
}

func (h *harness) login(email string) string {
	h.t.Helper()
	rec := h.call(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "senha": "secret1"})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Token
}

func TestRegisterAndLoginReportsRole(t *testing.T) {
	h := newHarness(t)
	h.register("Pizzaria", "p@x.com", true)

	rec := h.call(http.MethodPost, "/auth/login", "", map[string]string{"email": "p@x.com", "senha": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "EMPRESA", out["tipo"])
	assert.Equal(t, "Pizzaria", out["nome"])
	assert.NotEmpty(t, out["token"])
}

func TestRegisterRejectsDuplicateEmailAndShortPassword(t *testing.T) {
	h := newHarness(t)
	h.register("Ana", "a@x.com", false)

	rec := h.call(http.MethodPost, "/auth/register", "", map[string]string{"nome": "Ana", "email": "a@x.com", "senha": "secret1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email já cadastrado")

	rec = h.call(http.MethodPost, "/auth/register", "", map[string]string{"nome": "Bia", "email": "b@x.com", "senha": "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginWithBadPasswordIs400(t *testing.T) {
	h := newHarness(t)
	h.register("Ana", "a@x.com", false)
	rec := h.call(http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "senha": "wrong!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUnauthorized, h.call(http.MethodGet, "/pedidos", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.call(http.MethodGet, "/pedidos", "garbage", nil).Code)

	h.register("Ana", "a@x.com", false)
	tok := h.login("a@x.com")
	h.srv.RotateSecret("other")
	assert.Equal(t, http.StatusUnauthorized, h.call(http.MethodGet, "/pedidos", tok, nil).Code)
}

func TestExpiredTokenIs401(t *testing.T) {
	h := newHarness(t)
	h.register("Ana", "a@x.com", false)
	tok := h.login("a@x.com")
	h.srv.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	assert.Equal(t, http.StatusUnauthorized, h.call(http.MethodGet, "/pedidos", tok, nil).Code)
}

func TestCustomerOrderFlow(t *testing.T) {
	h := newHarness(t)
	h.register("Pizzaria", "p@x.com", true)
	h.register("Ana", "a@x.com", false)
	biz := h.login("p@x.com")
	cust := h.login("a@x.com")
	bizID, ok := h.srv.UserID("p@x.com")
	require.True(t, ok)

	rec := h.call(http.MethodPost, "/pedidos", cust, map[string]any{
		"descricao": "1x Pizza", "endereco": "Rua A", "valorTotal": 25.5, "empresaId": bizID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "RECEBIDO", created.Status)
	assert.Equal(t, "25.50", created.Total.String())

	// Both sides see it.
	for _, tok := range []string{biz, cust} {
		var list []orderResponse
		rec = h.call(http.MethodGet, "/pedidos", tok, nil)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 1)
	}

	// Customers cannot advance.
	rec = h.call(http.MethodPut, "/empresa/pedidos/1/avancar", cust, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.call(http.MethodPut, "/empresa/pedidos/1/avancar", biz, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var advanced orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &advanced))
	assert.Equal(t, "EM_PREPARO", advanced.Status)

	rec = h.call(http.MethodDelete, "/empresa/pedidos/1", biz, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, h.call(http.MethodDelete, "/empresa/pedidos/1", biz, nil).Code)
}

func TestCustomerOrderNeedsKnownBusiness(t *testing.T) {
	h := newHarness(t)
	h.register("Ana", "a@x.com", false)
	cust := h.login("a@x.com")
	rec := h.call(http.MethodPost, "/pedidos", cust, map[string]any{
		"descricao": "x", "endereco": "y", "valorTotal": 1, "empresaId": 99,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Restaurante não encontrado")
}

func TestProductsScopedByRole(t *testing.T) {
	h := newHarness(t)
	h.register("P1", "p1@x.com", true)
	h.register("P2", "p2@x.com", true)
	h.register("Ana", "a@x.com", false)
	p1, p2, cust := h.login("p1@x.com"), h.login("p2@x.com"), h.login("a@x.com")

	rec := h.call(http.MethodPost, "/empresa/produtos", p1, map[string]any{"nome": "Pizza", "preco": 30, "categoria": "Pizzas"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = h.call(http.MethodPost, "/empresa/produtos", p2, map[string]any{"nome": "Suco", "preco": 8.5, "categoria": "Bebidas"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusForbidden, h.call(http.MethodPost, "/empresa/produtos", cust, map[string]any{"nome": "x", "preco": 1}).Code)

	count := func(tok string) int {
		var list []productResponse
		require.NoError(t, json.Unmarshal(h.call(http.MethodGet, "/empresa/produtos", tok, nil).Body.Bytes(), &list))
		return len(list)
	}
	assert.Equal(t, 1, count(p1))
	assert.Equal(t, 1, count(p2))
	assert.Equal(t, 2, count(cust))

	// Deleting another business's product is a no-op.
	assert.Equal(t, http.StatusNoContent, h.call(http.MethodDelete, "/empresa/produtos/1", p2, nil).Code)
	assert.Equal(t, 2, count(cust))
	assert.Equal(t, http.StatusNoContent, h.call(http.MethodDelete, "/empresa/produtos/1", p1, nil).Code)
	assert.Equal(t, 1, count(cust))
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodOptions, "/pedidos", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
