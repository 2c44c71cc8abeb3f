package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Status is the order lifecycle value as sent by the backend.
type Status string

const (
	StatusReceived      Status = "RECEBIDO"
	StatusInPreparation Status = "EM_PREPARO"
	StatusEnRoute       Status = "A_CAMINHO"
	StatusDelivered     Status = "ENTREGUE"
	StatusCancelled     Status = "CANCELADO"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusReceived, StatusInPreparation, StatusEnRoute, StatusDelivered, StatusCancelled}

// ParseStatus maps user input (wire value, case-insensitive) to a Status.
func ParseStatus(s string) (Status, error) {
	v := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range Statuses {
		if st == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", s)
}

// Next returns the status following s. Terminal statuses return themselves.
func (s Status) Next() Status {
	switch s {
	case StatusReceived:
		return StatusInPreparation
	case StatusInPreparation:
		return StatusEnRoute
	case StatusEnRoute:
		return StatusDelivered
	default:
		return s
	}
}

// Order is a delivery order as served by /pedidos.
type Order struct {
	ID              int64           `json:"id"`
	Description     string          `json:"descricao"`
	DeliveryAddress string          `json:"endereco"`
	TotalValue      decimal.Decimal `json:"valorTotal"`
	Status          Status          `json:"status"`
	CreatedAt       Timestamp       `json:"criadoEm"`
}

// NewOrder is the submit-order payload. TotalValue is carried as a JSON
// number literal so the backend receives exactly the figure the cart computed.
type NewOrder struct {
	Description     string      `json:"descricao"`
	DeliveryAddress string      `json:"endereco"`
	TotalValue      json.Number `json:"valorTotal"`
	BusinessID      int64       `json:"empresaId"`
}

// Money renders an amount as a JSON number with two fraction digits.
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
