package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"

	"delivery/internal/api"
	"delivery/internal/auth"
	"delivery/internal/dashboard"
	"delivery/internal/model"
	"delivery/internal/orders"
	"delivery/internal/session"
	"delivery/internal/storage"
)

type Config struct {
	APIURL   string
	Email    string
	Password string
	Count    int
	Seed     int64
	Address  string
}

func main() {
	_ = godotenv.Load()
	var cfg Config
	flag.StringVar(&cfg.APIURL, "api-url", envOr("DELIVERY_API_URL", "http://localhost:8081"), "backend base url")
	flag.StringVar(&cfg.Email, "email", os.Getenv("DELIVERY_EMAIL"), "account email")
	flag.StringVar(&cfg.Password, "password", os.Getenv("DELIVERY_PASSWORD"), "account password")
	flag.IntVar(&cfg.Count, "count", 20, "number of orders to submit")
	flag.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	flag.StringVar(&cfg.Address, "address", "Rua de Teste, 100", "delivery address for customer accounts")
	flag.Parse()

	if err := generateOrders(context.Background(), cfg); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

var (
	customers = []string{"Ana", "Bruno", "Carla", "Diego", "Elisa"}
	payments  = []string{dashboard.PaymentPix, dashboard.PaymentCard, dashboard.PaymentCash}
	notes     = []string{"", "", "sem cebola", "bem passado", "sem gelo"}
)

func generateOrders(ctx context.Context, cfg Config) error {
	if cfg.Email == "" || cfg.Password == "" {
		return errors.New("--email and --password are required")
	}
	sess := session.New(storage.NewInMemoryStore())
	gw, err := api.NewGateway(cfg.APIURL, sess)
	if err != nil {
		return err
	}
	client := api.NewClient(gw)
	id, err := auth.NewFlow(client, sess, nil).Login(ctx, cfg.Email, cfg.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	dash := dashboard.New(client, sess, orders.NewStore())
	if err := dash.Load(ctx); err != nil {
		return err
	}
	catalog := dash.Catalog()
	if len(catalog) == 0 {
		return errors.New("catalog is empty, create products first")
	}
	if id.Role == model.RoleCustomer {
		// Customer orders must target a single business.
		owner := catalog[0].OwnerID()
		same := catalog[:0:0]
		for _, p := range catalog {
			if p.OwnerID() == owner {
				same = append(same, p)
			}
		}
		catalog = same
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i < cfg.Count; i++ {
		lines := 1 + rng.Intn(3)
		for j := 0; j < lines; j++ {
			p := catalog[rng.Intn(len(catalog))]
			dash.AddToCart(p.ID, 1+rng.Intn(3), notes[rng.Intn(len(notes))])
		}
		if id.Role == model.RoleCustomer {
			dash.SetDeliveryAddress(cfg.Address)
		} else {
			dash.SetCustomer(dashboard.CustomerInfo{
				Name:    customers[rng.Intn(len(customers))],
				Payment: payments[rng.Intn(len(payments))],
			})
		}
		o, err := dash.Submit(ctx)
		if err != nil {
			return fmt.Errorf("submit order %d: %w", i+1, err)
		}
		log.Printf("submitted order id=%d total=%s", o.ID, o.TotalValue.StringFixed(2))
	}

	log.Printf("generated %d orders as %s (%s)", cfg.Count, id.Name, id.Role)
	return nil
}
