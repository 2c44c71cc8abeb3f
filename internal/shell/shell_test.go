package shell

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery/internal/api"
	"delivery/internal/auth"
	"delivery/internal/dashboard"
	"delivery/internal/devserver"
	"delivery/internal/export"
	"delivery/internal/orders"
	"delivery/internal/router"
	"delivery/internal/session"
	"delivery/internal/storage"
)

type rig struct {
	dev   *devserver.Server
	sess  *session.Store
	guard *router.Guard
	store *orders.Store
	deps  Deps
	dir   string
}

func newRig(t *testing.T) *rig {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dev := devserver.New(devserver.Config{Secret: "shell-test"})
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)

	sess := session.New(storage.NewInMemoryStore())
	gw, err := api.NewGateway(srv.URL, sess)
	require.NoError(t, err)
	client := api.NewClient(gw)
	guard := router.NewGuard(sess)
	t.Cleanup(guard.Close)
	dir := t.TempDir()
	store := orders.NewStore()

	return &rig{
		dev:   dev,
		sess:  sess,
		guard: guard,
		store: store,
		dir:   dir,
		deps: Deps{
			Auth:     auth.NewFlow(client, sess, nil),
			Dash:     dashboard.New(client, sess, store),
			Guard:    guard,
			Session:  sess,
			Exporter: export.NewFilesystemExporter(dir),
		},
	}
}

func (r *rig) run(t *testing.T, script string) string {
	t.Helper()
	var out bytes.Buffer
	sh := New(r.deps, strings.NewReader(script), &out)
	require.NoError(t, sh.Run(context.Background()))
	return out.String()
}

func TestShell_BusinessSession(t *testing.T) {
	r := newRig(t)
	out := r.run(t, strings.Join([]string{
		`register business "Pizzaria Roma" roma@x.com secret1 12345678000199`,
		`newproduct "Pizza Grande" 45,90 Pizzas`,
		`products`,
		`add 1 2 sem azeitona`,
		`cart`,
		`submit`,
		`customer "Bia" Dinheiro`,
		`submit`,
		`advance 1`,
		`orders`,
		`revenue`,
		`stats`,
		`whoami`,
		`export snap`,
		`delorder 1`,
		`n`,
		`orders`,
		`logout`,
		`orders`,
		`quit`,
	}, "\n"))

	assert.Contains(t, out, "account created, welcome, Pizzaria Roma")
	assert.Contains(t, out, "#1 Pizza Grande - R$ 45.90 [Pizzas] @ Pizzaria Roma")
	assert.Contains(t, out, "total R$ 91.80")
	assert.Contains(t, out, "error: customer name is required")
	assert.Contains(t, out, "order #1 sent (RECEBIDO)")
	assert.Contains(t, out, "order #1 is now EM_PREPARO")
	assert.Contains(t, out, "[Dinheiro] 2x Pizza Grande (sem azeitona) | Cli: Bia")
	assert.Contains(t, out, "R$ 91.80\n")
	assert.Contains(t, out, "orders: 1\nin production: 1\nrevenue: R$ 91.80\n")
	assert.Contains(t, out, "Pizzaria Roma (EMPRESA)")
	assert.Contains(t, out, "Excluir pedido #1? [y/N]")
	assert.Contains(t, out, "error: log in first")
	assert.NotContains(t, out, "session expired")
	assert.False(t, r.sess.IsAuthenticated())

	_, err := os.Stat(filepath.Join(r.dir, "snap", "orders.json"))
	assert.NoError(t, err)
}

func TestShell_CustomerOrdersFromBusiness(t *testing.T) {
	r := newRig(t)
	r.run(t, strings.Join([]string{
		`register business "Roma" roma@x.com secret1 1`,
		`newproduct Suco 8.50 Bebidas`,
		`logout`,
		`quit`,
	}, "\n"))

	out := r.run(t, strings.Join([]string{
		`register person "Carlos" carlos@x.com secret1 12345678901`,
		`add 1`,
		`submit`,
		`address Rua das Flores, 10`,
		`submit`,
		`orders`,
		`advance 1`,
		`filter all`,
		`revenue`,
		`stats`,
		`export`,
		`quit`,
	}, "\n"))
	assert.Contains(t, out, "error: delivery address is required")
	assert.Contains(t, out, "order #1 sent (RECEBIDO)")
	assert.Contains(t, out, "[APP] 1x Suco | Total: R$ 8.50")
	assert.Equal(t, 5, strings.Count(out, "error: action not available for this account"))
}

func TestShell_LeavingDashboardClearsCart(t *testing.T) {
	r := newRig(t)
	out := r.run(t, strings.Join([]string{
		`register business "Roma" roma@x.com secret1 1`,
		`newproduct Suco 8.50 Bebidas`,
		`add 1 2`,
		`customer "Bia" Pix`,
		`goto /register`,
		`goto /dashboard`,
		`cart`,
		`products`,
		`quit`,
	}, "\n"))
	assert.Contains(t, out, "cart is empty")
	assert.NotContains(t, out, "2x Suco")
	assert.Contains(t, out, "#1 Suco - R$ 8.50 [Bebidas]")
	assert.Equal(t, "", r.deps.Dash.Customer().Name)
}

func TestShell_OrdersRefusedWhileLoading(t *testing.T) {
	r := newRig(t)
	r.run(t, "register business Roma roma@x.com secret1 1\nquit\n")
	require.Equal(t, router.Dashboard, r.guard.Current())

	r.store.SetLoading(true)
	sh := New(r.deps, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, sh.exec(context.Background(), "orders", nil), errOrdersLoading)
	assert.ErrorIs(t, sh.exec(context.Background(), "stats", nil), errOrdersLoading)

	r.store.SetLoading(false)
	assert.NoError(t, sh.exec(context.Background(), "orders", nil))
}

func TestShell_ExpiredTokenRedirectsToLogin(t *testing.T) {
	r := newRig(t)
	var out bytes.Buffer
	input := strings.NewReader(strings.Join([]string{
		`register person Ana ana@x.com secret1 1`,
		`reload`,
		`orders`,
		`quit`,
	}, "\n"))
	sh := New(r.deps, input, &out)

	// Invalidate the token as soon as it is issued.
	rotated := false
	r.sess.Subscribe(func(st session.State) {
		if st.Authenticated && !rotated {
			rotated = true
			r.dev.RotateSecret("rotated")
		}
	})
	require.NoError(t, sh.Run(context.Background()))

	assert.Contains(t, out.String(), "session expired, redirected to /login")
	assert.Contains(t, out.String(), "error: log in first")
	assert.Equal(t, router.Login, r.guard.Current())
	assert.False(t, r.sess.IsAuthenticated())
}

func TestShell_BadLogin(t *testing.T) {
	r := newRig(t)
	out := r.run(t, "login nobody@x.com whatever\nquit\n")
	assert.Contains(t, out, "error: acesso negado")
	assert.Equal(t, router.Login, r.guard.Current())
}

func TestTokenize(t *testing.T) {
	got, err := tokenize(`customer "Bia Souza"  Pix "Rua A, 1"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"customer", "Bia Souza", "Pix", "Rua A, 1"}, got)

	got, err = tokenize(`x ""`)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", ""}, got)

	_, err = tokenize(`x "open`)
	assert.Error(t, err)
}
