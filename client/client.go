package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amirfarid/guardpost/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client is a typed HTTP client for the guardpost API. Safe for
// concurrent use once the token is set.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
}

func New(baseURL string) *Client {
	return &Client{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: baseURL,
	}
}

// SetToken sets the bearer token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (domain.User, error) {
	var out loginResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return domain.User{}, err
	}
	c.token = out.Token
	return out.User, nil
}

type VisitorRegistration struct {
	PropertyID        string     `json:"propertyID"`
	VisitorName       string     `json:"visitorName"`
	VisitorPhone      string     `json:"visitorPhone,omitempty"`
	VisitorICPassport string     `json:"visitorICPassport,omitempty"`
	VehiclePlate      string     `json:"vehiclePlate,omitempty"`
	Purpose           string     `json:"purpose,omitempty"`
	ExpectedArrival   time.Time  `json:"expectedArrival"`
	ExpectedDeparture *time.Time `json:"expectedDeparture,omitempty"`
}

type visitorResponse struct {
	Visitor domain.EntryRecord `json:"visitor"`
	QRCode  string             `json:"qrCode"`
}

// RegisterVisitor announces an expected visitor and returns the record
// together with its QR code.
func (c *Client) RegisterVisitor(ctx context.Context, reg VisitorRegistration) (domain.EntryRecord, string, error) {
	var out visitorResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/visitors", reg, &out); err != nil {
		return domain.EntryRecord{}, "", err
	}
	return out.Visitor, out.QRCode, nil
}

// ValidationResult is the gate decision for a scanned code.
type ValidationResult struct {
	Decision   domain.DecisionCode `json:"decision"`
	Admissible bool                `json:"admissible"`
	Visitor    *domain.EntryRecord `json:"visitor,omitempty"`
	Delivery   *domain.EntryRecord `json:"delivery,omitempty"`
}

func (c *Client) ValidateVisitor(ctx context.Context, code string) (ValidationResult, error) {
	var out ValidationResult
	err := c.do(ctx, http.MethodGet, "/api/v1/visitors/validate/"+code, nil, &out)
	return out, err
}

func (c *Client) CheckInVisitor(ctx context.Context, id string) (domain.EntryRecord, error) {
	var out visitorResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/visitors/"+id+"/check-in", nil, &out)
	return out.Visitor, err
}

func (c *Client) CheckOutVisitor(ctx context.Context, id string) (domain.EntryRecord, error) {
	var out visitorResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/visitors/"+id+"/check-out", nil, &out)
	return out.Visitor, err
}

func (c *Client) CancelVisitor(ctx context.Context, id string) (domain.EntryRecord, error) {
	var out visitorResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/visitors/"+id+"/cancel", nil, &out)
	return out.Visitor, err
}

type DeliveryRegistration struct {
	DeliveryService  string    `json:"deliveryService"`
	VehiclePlate     string    `json:"vehiclePlate,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	EstimatedArrival time.Time `json:"estimatedArrival"`
}

type deliveryResponse struct {
	Delivery domain.EntryRecord `json:"delivery"`
	Passcode string             `json:"passcode"`
}

// RegisterDelivery announces a delivery and returns the record together
// with the passcode to hand to the courier.
func (c *Client) RegisterDelivery(ctx context.Context, reg DeliveryRegistration) (domain.EntryRecord, string, error) {
	var out deliveryResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/deliveries", reg, &out); err != nil {
		return domain.EntryRecord{}, "", err
	}
	return out.Delivery, out.Passcode, nil
}

func (c *Client) ValidateDelivery(ctx context.Context, passcode string) (ValidationResult, error) {
	var out ValidationResult
	err := c.do(ctx, http.MethodGet, "/api/v1/deliveries/validate/"+passcode, nil, &out)
	return out, err
}

func (c *Client) MarkDeliveryArrived(ctx context.Context, id string) (domain.EntryRecord, error) {
	var out deliveryResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/deliveries/"+id+"/arrive", nil, &out)
	return out.Delivery, err
}

func (c *Client) MarkDeliveryCollected(ctx context.Context, id string) (domain.EntryRecord, error) {
	var out deliveryResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/deliveries/"+id+"/collect", nil, &out)
	return out.Delivery, err
}

func (c *Client) CancelDelivery(ctx context.Context, id string) (domain.EntryRecord, error) {
	var out deliveryResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/deliveries/"+id+"/cancel", nil, &out)
	return out.Delivery, err
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		return APIError{StatusCode: res.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
