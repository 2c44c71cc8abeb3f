package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"delivery/internal/model"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrMissingAddress  = errors.New("delivery address is required")
	ErrMissingCustomer = errors.New("customer name is required")
	ErrMixedBusinesses = errors.New("cart mixes products from different businesses")
)

// Payment methods offered at the point of sale.
const (
	PaymentPix  = "Pix"
	PaymentCard = "Cartão"
	PaymentCash = "Dinheiro"

	defaultPayment = PaymentPix
)

// fallbackBusinessID is used when the first cart line carries no owner.
const fallbackBusinessID int64 = 1

// counterAddress is sent for point-of-sale orders without a customer address;
// the backend rejects a blank one.
const counterAddress = "Retirada no balcão"

type CartLine struct {
	Product  model.Product
	Quantity int
	Note     string
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l CartLine) summary() string {
	s := fmt.Sprintf("%dx %s", l.Quantity, l.Product.Name)
	if note := strings.TrimSpace(l.Note); note != "" {
		s += " (" + note + ")"
	}
	return s
}

// CustomerInfo is the point-of-sale customer entered by a business.
type CustomerInfo struct {
	Name    string
	Address string
	Payment string
}

// CartTotal sums price times quantity over lines.
func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func summarize(lines []CartLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.summary()
	}
	return strings.Join(parts, ", ")
}

// targetBusiness picks the business an order is attributed to. For customers
// every line must belong to the same business.
func targetBusiness(role model.Role, lines []CartLine) (int64, error) {
	first := lines[0].Product.OwnerID()
	if role == model.RoleCustomer {
		for _, l := range lines[1:] {
			if id := l.Product.OwnerID(); id != 0 && first != 0 && id != first {
				return 0, ErrMixedBusinesses
			}
		}
	}
	if first == 0 {
		return fallbackBusinessID, nil
	}
	return first, nil
}

// BuildOrder validates a cart and turns it into the submit payload. It never
// touches the network.
func BuildOrder(role model.Role, lines []CartLine, deliveryAddress string, customer CustomerInfo) (model.NewOrder, error) {
	if len(lines) == 0 {
		return model.NewOrder{}, ErrEmptyCart
	}
	total := CartTotal(lines)
	items := summarize(lines)

	var o model.NewOrder
	switch role {
	case model.RoleCustomer:
		addr := strings.TrimSpace(deliveryAddress)
		if addr == "" {
			return model.NewOrder{}, ErrMissingAddress
		}
		o.Description = fmt.Sprintf("[APP] %s | Total: R$ %s", items, total.StringFixed(2))
		o.DeliveryAddress = addr
	case model.RoleBusiness:
		name := strings.TrimSpace(customer.Name)
		if name == "" {
			return model.NewOrder{}, ErrMissingCustomer
		}
		payment := customer.Payment
		if payment == "" {
			payment = defaultPayment
		}
		o.Description = fmt.Sprintf("[%s] %s | Cli: %s", payment, items, name)
		o.DeliveryAddress = strings.TrimSpace(customer.Address)
		if o.DeliveryAddress == "" {
			o.DeliveryAddress = counterAddress
		}
	default:
		return model.NewOrder{}, fmt.Errorf("unknown role %q", role)
	}

	businessID, err := targetBusiness(role, lines)
	if err != nil {
		return model.NewOrder{}, err
	}
	o.BusinessID = businessID
	o.TotalValue = model.Money(total)
	return o, nil
}
