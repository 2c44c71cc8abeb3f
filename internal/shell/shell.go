// Package shell is a line-oriented terminal front end over the auth flow,
// the route guard and the dashboard controller.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"delivery/internal/api"
	"delivery/internal/auth"
	"delivery/internal/dashboard"
	"delivery/internal/export"
	"delivery/internal/model"
	"delivery/internal/orders"
	"delivery/internal/router"
	"delivery/internal/session"
)

type Shell struct {
	auth     *auth.Flow
	dash     *dashboard.Controller
	guard    *router.Guard
	sess     *session.Store
	exporter export.Exporter

	in  *bufio.Scanner
	out io.Writer
	now func() time.Time
}

// Deps groups what the shell drives. Exporter may be nil.
type Deps struct {
	Auth     *auth.Flow
	Dash     *dashboard.Controller
	Guard    *router.Guard
	Session  *session.Store
	Exporter export.Exporter
}

func New(d Deps, in io.Reader, out io.Writer) *Shell {
	s := &Shell{
		auth:     d.Auth,
		dash:     d.Dash,
		guard:    d.Guard,
		sess:     d.Session,
		exporter: d.Exporter,
		in:       bufio.NewScanner(in),
		out:      out,
		now:      time.Now,
	}
	// Leaving the dashboard drops the cart and everything else it holds.
	s.guard.OnChange(func(from, to string) {
		if from == router.Dashboard && to != router.Dashboard {
			s.dash.Leave()
		}
	})
	s.guard.OnRedirect(func(to string) {
		s.printf("session expired, redirected to %s\n", to)
	})
	return s
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// Confirm reads a y/N answer from the shell's input.
func (s *Shell) Confirm(prompt string) bool {
	s.printf("%s [y/N] ", prompt)
	if !s.in.Scan() {
		return false
	}
	ans := strings.ToLower(strings.TrimSpace(s.in.Text()))
	return ans == "y" || ans == "s" || ans == "yes" || ans == "sim"
}

// Run processes commands until EOF, "quit" or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	if s.sess.IsAuthenticated() {
		s.enterDashboard(ctx)
	} else {
		s.guard.Navigate(router.Login)
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.printf("%s> ", s.guard.Current())
		if !s.in.Scan() {
			return s.in.Err()
		}
		args, err := tokenize(s.in.Text())
		if err != nil {
			s.printf("error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return nil
		}
		if err := s.exec(ctx, args[0], args[1:]); err != nil {
			s.printf("error: %s\n", describe(err))
		}
	}
}

func describe(err error) string {
	if msg := api.BackendMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}

var (
	errLoginRequired = errors.New("log in first")
	errOrdersLoading = errors.New("orders are still loading, try again")
)

func (s *Shell) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		s.help()
		return nil
	case "login":
		return s.login(ctx, args)
	case "register":
		return s.register(ctx, args)
	case "goto":
		if len(args) != 1 {
			return errors.New("usage: goto <path>")
		}
		if s.guard.Navigate(args[0]) == router.Dashboard {
			return s.dash.Load(ctx)
		}
		return nil
	case "whoami":
		if st := s.sess.State(); st.Authenticated && st.Identity != nil {
			s.printf("%s (%s)\n", st.Identity.Name, st.Identity.Role)
		} else {
			s.printf("not logged in\n")
		}
		return nil
	}

	if s.guard.Current() != router.Dashboard {
		return errLoginRequired
	}
	switch cmd {
	case "logout":
		// Leave the protected route first so the guard does not treat this
		// as an expired session.
		s.guard.Navigate(router.Login)
		s.auth.Logout(ctx)
		return nil
	case "reload":
		return s.dash.Load(ctx)
	case "view":
		if len(args) == 0 {
			s.printf("%s\n", s.dash.View())
			return nil
		}
		if len(args) != 1 {
			return errors.New("usage: view [home|orders|dashboard|menu|settings]")
		}
		return s.dash.SetView(dashboard.View(args[0]))
	case "products":
		s.listProducts()
		return nil
	case "add":
		return s.addToCart(args)
	case "rm":
		if len(args) != 1 {
			return errors.New("usage: rm <line>")
		}
		i, err := strconv.Atoi(args[0])
		if err != nil || !s.dash.RemoveFromCart(i-1) {
			return fmt.Errorf("no cart line %q", args[0])
		}
		return nil
	case "cart":
		s.showCart()
		return nil
	case "address":
		s.dash.SetDeliveryAddress(strings.Join(args, " "))
		return nil
	case "customer":
		return s.setCustomer(args)
	case "submit":
		o, err := s.dash.Submit(ctx)
		if err != nil {
			return err
		}
		s.printf("order #%d sent (%s)\n", o.ID, o.Status)
		return nil
	case "orders":
		if s.dash.Loading() {
			return errOrdersLoading
		}
		s.listOrders()
		return nil
	case "stats":
		return s.stats()
	case "filter":
		return s.setFilter(args)
	case "advance":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		o, err := s.dash.Advance(ctx, id)
		if err != nil {
			return err
		}
		s.printf("order #%d is now %s\n", o.ID, o.Status)
		return nil
	case "delorder":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		_, err = s.dash.DeleteOrder(ctx, id, s)
		return err
	case "newproduct":
		if len(args) < 2 {
			return errors.New(`usage: newproduct "<name>" <price> [category]`)
		}
		category := ""
		if len(args) > 2 {
			category = args[2]
		}
		p, err := s.dash.AddProduct(ctx, args[0], args[1], category)
		if err != nil {
			return err
		}
		s.printf("product #%d created\n", p.ID)
		return nil
	case "delproduct":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		_, err = s.dash.DeleteProduct(ctx, id, s)
		return err
	case "revenue":
		st, err := s.dash.Stats()
		if err != nil {
			return err
		}
		s.printf("R$ %s\n", st.Revenue.StringFixed(2))
		return nil
	case "export":
		return s.export(args)
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

func oneID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one id")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad id %q", args[0])
	}
	return id, nil
}

func (s *Shell) enterDashboard(ctx context.Context) {
	if s.guard.Navigate(router.Dashboard) != router.Dashboard {
		return
	}
	if err := s.dash.Load(ctx); err != nil {
		s.printf("error: %s\n", describe(err))
	}
}

func (s *Shell) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <email> <password>")
	}
	id, err := s.auth.Login(ctx, args[0], args[1])
	if err != nil {
		if errors.Is(err, auth.ErrAccessDenied) {
			return errors.New("acesso negado")
		}
		return err
	}
	s.printf("welcome, %s\n", id.Name)
	s.enterDashboard(ctx)
	return nil
}

func (s *Shell) register(ctx context.Context, args []string) error {
	if len(args) != 5 {
		return errors.New(`usage: register <business|person> "<name>" <email> <password> <cnpj|cpf>`)
	}
	var r model.Registration
	switch args[0] {
	case "business", "empresa":
		r = model.BusinessRegistration{Name: args[1], Email: args[2], Password: args[3], BusinessTaxID: args[4]}
	case "person", "cliente":
		r = model.PersonRegistration{Name: args[1], Email: args[2], Password: args[3], PersonTaxID: args[4]}
	default:
		return fmt.Errorf("unknown account kind %q", args[0])
	}
	s.guard.Navigate(router.Register)
	id, err := s.auth.RegisterAndLogin(ctx, r)
	if err != nil {
		return err
	}
	s.printf("account created, welcome, %s\n", id.Name)
	s.enterDashboard(ctx)
	return nil
}

func (s *Shell) listProducts() {
	for _, p := range s.dash.Catalog() {
		owner := ""
		if p.Owner != nil && p.Owner.Name != "" {
			owner = " @ " + p.Owner.Name
		}
		s.printf("#%d %s - R$ %s [%s]%s\n", p.ID, p.Name, p.Price.StringFixed(2), p.Category, owner)
	}
}

func (s *Shell) addToCart(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: add <productId> [qty] [note]")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad product id %q", args[0])
	}
	qty := 1
	if len(args) > 1 {
		if qty, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("bad quantity %q", args[1])
		}
	}
	note := ""
	if len(args) > 2 {
		note = strings.Join(args[2:], " ")
	}
	if !s.dash.AddToCart(id, qty, note) {
		s.printf("item not added\n")
	}
	return nil
}

func (s *Shell) showCart() {
	lines := s.dash.Cart()
	if len(lines) == 0 {
		s.printf("cart is empty\n")
		return
	}
	for i, l := range lines {
		s.printf("%d. %dx %s R$ %s", i+1, l.Quantity, l.Product.Name, l.Subtotal().StringFixed(2))
		if l.Note != "" {
			s.printf(" (%s)", l.Note)
		}
		s.printf("\n")
	}
	s.printf("total R$ %s\n", s.dash.CartTotal().StringFixed(2))
}

func (s *Shell) setCustomer(args []string) error {
	if len(args) < 1 {
		return errors.New(`usage: customer "<name>" [payment] ["<address>"]`)
	}
	ci := dashboard.CustomerInfo{Name: args[0]}
	if len(args) > 1 {
		ci.Payment = args[1]
	}
	if len(args) > 2 {
		ci.Address = strings.Join(args[2:], " ")
	}
	s.dash.SetCustomer(ci)
	return nil
}

func (s *Shell) listOrders() {
	list := s.dash.VisibleOrders()
	if len(list) == 0 {
		s.printf("no orders\n")
		return
	}
	for _, o := range list {
		s.printf("#%d %-10s R$ %8s  %s\n", o.ID, o.Status, o.TotalValue.StringFixed(2), o.Description)
	}
}

func (s *Shell) setFilter(args []string) error {
	var f orders.Filter
	if len(args) > 0 && args[0] != "all" {
		st, err := model.ParseStatus(args[0])
		if err != nil {
			return err
		}
		f.Status = st
	}
	if len(args) > 1 {
		f.Search = strings.Join(args[1:], " ")
	}
	if err := s.dash.SetFilter(f); err != nil {
		return err
	}
	s.listOrders()
	return nil
}

func (s *Shell) stats() error {
	if s.dash.Loading() {
		return errOrdersLoading
	}
	st, err := s.dash.Stats()
	if err != nil {
		return err
	}
	s.printf("orders: %d\nin production: %d\nrevenue: R$ %s\n", st.Orders, st.Pending, st.Revenue.StringFixed(2))
	return nil
}

func (s *Shell) export(args []string) error {
	if s.exporter == nil {
		return errors.New("export is not configured")
	}
	st, err := s.dash.Stats()
	if err != nil {
		return err
	}
	id := s.now().Format("orders-20060102-150405")
	if len(args) > 0 {
		id = args[0]
	}
	path, err := s.exporter.WriteExport(id, s.dash.VisibleOrders(), st.Revenue)
	if err != nil {
		return err
	}
	s.printf("exported to %s\n", path)
	return nil
}

func (s *Shell) help() {
	s.printf(`commands:
  login <email> <password>
  register <business|person> "<name>" <email> <password> <cnpj|cpf>
  logout | whoami | goto <path> | reload | view [name]
  products | add <id> [qty] [note] | rm <line> | cart
  address <text> | customer "<name>" [payment] ["<address>"] | submit
  orders | filter <status|all> [search] | advance <id> | delorder <id>
  newproduct "<name>" <price> [category] | delproduct <id>
  stats | revenue | export [id] | quit
`)
}

// tokenize splits a line on spaces, honouring double quotes.
func tokenize(line string) ([]string, error) {
	var (
		out     []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				out = append(out, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if started {
		out = append(out, cur.String())
	}
	return out, nil
}
