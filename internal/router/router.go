// Package router maps paths to screens and keeps unauthenticated users out of
// the dashboard.
package router

import (
	"log"
	"strings"
	"sync"

	"delivery/internal/session"
)

const (
	Login     = "/login"
	Register  = "/register"
	Dashboard = "/dashboard"
)

// Guard tracks the current route. It follows the session: when the session
// becomes unauthenticated while on a protected route, it redirects to Login
// and tells every OnRedirect listener. OnChange listeners hear about every
// route change, redirects included.
type Guard struct {
	sess *session.Store

	mu        sync.Mutex
	current   string
	listeners []func(to string)
	changes   []func(from, to string)

	unsubscribe func()
}

func NewGuard(sess *session.Store) *Guard {
	g := &Guard{sess: sess}
	g.current = g.Resolve("/")
	g.unsubscribe = sess.Subscribe(g.onSession)
	return g
}

// Resolve returns the route path lands on given the current session.
func (g *Guard) Resolve(path string) string {
	switch normalize(path) {
	case Login:
		return Login
	case Register:
		return Register
	}
	if !g.sess.IsAuthenticated() {
		return Login
	}
	return Dashboard
}

// Navigate moves to path and returns the route actually reached.
func (g *Guard) Navigate(path string) string {
	to := g.Resolve(path)
	g.mu.Lock()
	from := g.current
	g.current = to
	fns := append([]func(string, string){}, g.changes...)
	g.mu.Unlock()
	if from != to {
		for _, fn := range fns {
			fn(from, to)
		}
	}
	return to
}

func (g *Guard) Current() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// OnRedirect registers fn to run after a session-driven redirect.
func (g *Guard) OnRedirect(fn func(to string)) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

// OnChange registers fn to run whenever the current route changes.
func (g *Guard) OnChange(fn func(from, to string)) {
	g.mu.Lock()
	g.changes = append(g.changes, fn)
	g.mu.Unlock()
}

func (g *Guard) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
}

func (g *Guard) onSession(st session.State) {
	if st.Authenticated {
		return
	}
	g.mu.Lock()
	if g.current != Dashboard {
		g.mu.Unlock()
		return
	}
	g.current = Login
	changes := append([]func(string, string){}, g.changes...)
	fns := append([]func(string){}, g.listeners...)
	g.mu.Unlock()

	log.Printf("session ended, redirecting to %s", Login)
	for _, fn := range changes {
		fn(Dashboard, Login)
	}
	for _, fn := range fns {
		fn(Login)
	}
}

func normalize(path string) string {
	p := strings.ToLower(strings.TrimSpace(path))
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimRight(p, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
