package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func doSubscribe(t *testing.T, d *testDeps, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	NewRouter(d.router()).ServeHTTP(rec, req)
	return rec
}

func TestSubscribe_Valid(t *testing.T) {
	d := newTestDeps(t)

	rec := doSubscribe(t, d, url.Values{"name": {"le guin"}, "email": {"ursula_le_guin@gmail.com"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(d.subs.subscribed) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(d.subs.subscribed))
	}
	if got := d.subs.subscribed[0].Email.String(); got != "ursula_le_guin@gmail.com" {
		t.Errorf("email = %q", got)
	}
}

func TestSubscribe_InvalidFields(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"missing email", url.Values{"name": {"le guin"}}},
		{"missing name", url.Values{"email": {"ursula_le_guin@gmail.com"}}},
		{"empty body", url.Values{}},
		{"invalid email", url.Values{"name": {"Ursula"}, "email": {"definitely-not-an-email"}}},
		{"forbidden name", url.Values{"name": {"<script>"}, "email": {"ursula_le_guin@gmail.com"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps(t)
			rec := doSubscribe(t, d, tt.form)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(d.subs.subscribed) != 0 {
				t.Error("invalid subscriber must not be stored")
			}
		})
	}
}

func TestSubscribe_ServiceFailure(t *testing.T) {
	d := newTestDeps(t)
	d.subs.err = errors.New("provider down")

	rec := doSubscribe(t, d, url.Values{"name": {"le guin"}, "email": {"ursula_le_guin@gmail.com"}})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestConfirmSubscription(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"known token", "?subscription_token=known", http.StatusOK},
		{"unknown token", "?subscription_token=unknown", http.StatusUnauthorized},
		{"missing token", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps(t)
			req := httptest.NewRequest(http.MethodGet, "/subscriptions/confirm"+tt.query, nil)
			rec := httptest.NewRecorder()
			NewRouter(d.router()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
