package api

import (
	"context"
	"fmt"
	"net/http"

	"delivery/internal/model"
)

// Client exposes the backend endpoints on top of a Gateway.
type Client struct {
	gw *Gateway
}

func NewClient(gw *Gateway) *Client {
	return &Client{gw: gw}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

type loginResponse struct {
	Token string     `json:"token"`
	Name  string     `json:"nome"`
	Role  model.Role `json:"tipo"`
}

// Login exchanges credentials for a token and the caller's identity.
func (c *Client) Login(ctx context.Context, email, password string) (model.Identity, string, error) {
	var resp loginResponse
	if err := c.gw.Do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return model.Identity{}, "", err
	}
	if resp.Token == "" {
		return model.Identity{}, "", fmt.Errorf("login: empty token in response")
	}
	if !resp.Role.Valid() {
		return model.Identity{}, "", fmt.Errorf("login: unknown role %q", resp.Role)
	}
	return model.Identity{Name: resp.Name, Role: resp.Role}, resp.Token, nil
}

type registerRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"senha"`
	CPF      string `json:"cpf,omitempty"`
	CNPJ     string `json:"cnpj,omitempty"`
}

func registerPayload(r model.Registration) registerRequest {
	name, email, password := r.Credentials()
	req := registerRequest{Name: name, Email: email, Password: password}
	switch v := r.(type) {
	case model.BusinessRegistration:
		req.CNPJ = v.BusinessTaxID
	case model.PersonRegistration:
		req.CPF = v.PersonTaxID
	}
	return req
}

func (c *Client) Register(ctx context.Context, r model.Registration) error {
	return c.gw.Do(ctx, http.MethodPost, "/auth/register", registerPayload(r), nil)
}

func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	if err := c.gw.Do(ctx, http.MethodGet, "/pedidos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateOrder(ctx context.Context, o model.NewOrder) (model.Order, error) {
	var out model.Order
	if err := c.gw.Do(ctx, http.MethodPost, "/pedidos", o, &out); err != nil {
		return model.Order{}, err
	}
	return out, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	if err := c.gw.Do(ctx, http.MethodGet, "/empresa/produtos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateProduct(ctx context.Context, p model.NewProduct) (model.Product, error) {
	var out model.Product
	if err := c.gw.Do(ctx, http.MethodPost, "/empresa/produtos", p, &out); err != nil {
		return model.Product{}, err
	}
	return out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.gw.Do(ctx, http.MethodDelete, fmt.Sprintf("/empresa/produtos/%d", id), nil, nil)
}

// AdvanceOrder asks the backend to move the order to its next status and
// returns the backend's view of it.
func (c *Client) AdvanceOrder(ctx context.Context, id int64) (model.Order, error) {
	var out model.Order
	if err := c.gw.Do(ctx, http.MethodPut, fmt.Sprintf("/empresa/pedidos/%d/avancar", id), nil, &out); err != nil {
		return model.Order{}, err
	}
	return out, nil
}

func (c *Client) DeleteOrder(ctx context.Context, id int64) error {
	return c.gw.Do(ctx, http.MethodDelete, fmt.Sprintf("/empresa/pedidos/%d", id), nil, nil)
}
