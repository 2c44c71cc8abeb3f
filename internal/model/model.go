package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the account kind returned by the backend on login.
type Role string

const (
	RoleCustomer Role = "CLIENTE"
	RoleBusiness Role = "EMPRESA"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool { return r == RoleCustomer || r == RoleBusiness }

// Identity is the authenticated user as persisted under the "user" key.
type Identity struct {
	Name string `json:"nome"`
	Role Role   `json:"tipo"`
}

// BusinessRef is the owning business embedded in a product.
type BusinessRef struct {
	ID   int64  `json:"id"`
	Name string `json:"nome,omitempty"`
}

// Product is a catalog entry as served by /empresa/produtos.
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"nome"`
	Price    decimal.Decimal `json:"preco"`
	Category string          `json:"categoria"`
	Owner    *BusinessRef    `json:"empresa,omitempty"`
}

// OwnerID returns the owning business id, or 0 when unknown.
func (p Product) OwnerID() int64 {
	if p.Owner == nil {
		return 0
	}
	return p.Owner.ID
}

// NewProduct is the create-product payload.
type NewProduct struct {
	Name     string      `json:"nome"`
	Price    json.Number `json:"preco"`
	Category string      `json:"categoria"`
}

// Timestamp decodes both RFC 3339 values and zone-less ISO-8601 local
// date-times (the backend serializes LocalDateTime without an offset).
type Timestamp struct {
	time.Time
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = v
		return nil
	}
	for _, layout := range localLayouts {
		if v, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
