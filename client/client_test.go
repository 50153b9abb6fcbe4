package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirfarid/guardpost/internal/domain"
)

func TestClientLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/login" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if body["email"] != "res1@example.com" {
			t.Fatalf("unexpected email %q", body["email"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"token": "signed-token",
			"user":  domain.User{ID: "res1", Role: domain.RoleResident},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	user, err := c.Login(context.Background(), "res1@example.com", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != "res1" {
		t.Fatalf("unexpected user %+v", user)
	}
	if c.token != "signed-token" {
		t.Fatalf("token not stored on client")
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("unexpected auth header %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"visitor": domain.EntryRecord{ID: "vis1", Status: domain.StatusPending},
			"qrCode":  "VIS-0123456789ABCDEF",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("tok")

	rec, code, err := c.RegisterVisitor(context.Background(), VisitorRegistration{
		PropertyID:      "prop1",
		VisitorName:     "Aisyah Rahman",
		ExpectedArrival: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if rec.ID != "vis1" || code != "VIS-0123456789ABCDEF" {
		t.Fatalf("unexpected response %+v %q", rec, code)
	}
}

func TestClientValidateDecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/deliveries/validate/482913" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"decision":   domain.DecisionAdmissible,
			"admissible": true,
			"delivery":   domain.EntryRecord{ID: "del1", Status: domain.StatusArrived},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	result, err := c.ValidateDelivery(context.Background(), "482913")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !result.Admissible || result.Delivery == nil || result.Delivery.ID != "del1" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "already admitted: status is checked_in"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.CheckInVisitor(context.Background(), "vis1")
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 got %d", apiErr.StatusCode)
	}
	if apiErr.Message == "" {
		t.Fatalf("expected error message to be decoded")
	}
}
