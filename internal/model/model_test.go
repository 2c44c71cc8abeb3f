package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOrder_DecodeBackendPayload(t *testing.T) {
	raw := `{"id":7,"descricao":"[APP] 2x X-Burger","endereco":"Rua A, 10","valorTotal":25.50,"status":"EM_PREPARO","criadoEm":"2024-05-01T12:30:15.123"}`
	var o Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if o.ID != 7 || o.Status != StatusInPreparation || o.DeliveryAddress != "Rua A, 10" {
		t.Fatalf("unexpected order: %+v", o)
	}
	if o.TotalValue.StringFixed(2) != "25.50" {
		t.Fatalf("total: got %s", o.TotalValue.StringFixed(2))
	}
	if o.CreatedAt.Year() != 2024 || o.CreatedAt.Month() != time.May || o.CreatedAt.Minute() != 30 {
		t.Fatalf("createdAt: got %v", o.CreatedAt.Time)
	}
}

func TestTimestamp_RFC3339AndNull(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"2024-05-01T12:30:15Z"`), &ts); err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if ts.UTC().Hour() != 12 {
		t.Fatalf("hour: got %d", ts.UTC().Hour())
	}
	if err := json.Unmarshal([]byte(`null`), &ts); err != nil {
		t.Fatalf("null: %v", err)
	}
	if !ts.IsZero() {
		t.Fatalf("null should reset to zero time")
	}
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestStatus_NextAndParse(t *testing.T) {
	cases := map[Status]Status{
		StatusReceived:      StatusInPreparation,
		StatusInPreparation: StatusEnRoute,
		StatusEnRoute:       StatusDelivered,
		StatusDelivered:     StatusDelivered,
		StatusCancelled:     StatusCancelled,
	}
	for in, want := range cases {
		if got := in.Next(); got != want {
			t.Fatalf("%s.Next(): got %s want %s", in, got, want)
		}
	}
	if st, err := ParseStatus(" a_caminho "); err != nil || st != StatusEnRoute {
		t.Fatalf("ParseStatus: got %q err=%v", st, err)
	}
	if _, err := ParseStatus("SHIPPED"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestRegistration_Variants(t *testing.T) {
	var regs = []Registration{
		BusinessRegistration{Name: "Pizzaria", Email: "p@x.com", Password: "secret1", BusinessTaxID: "12.345.678/0001-90"},
		PersonRegistration{Name: "Carlos", Email: "c@x.com", Password: "secret2", PersonTaxID: "123.456.789-00"},
	}
	if regs[0].Role() != RoleBusiness || regs[0].TaxID() != "12.345.678/0001-90" {
		t.Fatalf("business variant: %+v", regs[0])
	}
	if regs[1].Role() != RoleCustomer || regs[1].TaxID() != "123.456.789-00" {
		t.Fatalf("person variant: %+v", regs[1])
	}
}

func TestNewOrder_TotalIsNumberLiteral(t *testing.T) {
	b, err := json.Marshal(NewOrder{Description: "d", DeliveryAddress: "a", TotalValue: "25.50", BusinessID: 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"descricao":"d","endereco":"a","valorTotal":25.50,"empresaId":3}`
	if string(b) != want {
		t.Fatalf("got %s want %s", b, want)
	}
}
