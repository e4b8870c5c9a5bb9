package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRenderChecks(t *testing.T) {
	var buf bytes.Buffer
	renderChecks(&buf, []checkRow{
		{ID: "a1", OwnerContact: "555", Protocol: "https", Host: "example.com", Method: "get",
			AcceptedCodes: []int{200, 204}, TimeoutSeconds: 3, State: "up", LastCheckedAt: 1714564800000, Valid: true},
		{ID: "b2", Valid: false, Problems: []string{"method"}},
	})
	out := buf.String()
	for _, want := range []string{"GET https://example.com", "200,204", "2024-05-01T12:00:00Z", "invalid: method", "never"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestAdd_PromptsAndPosts(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "adm" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc","protocol":"https","host":"example.com","method":"get"}`))
	}))
	defer ts.Close()

	c := &client{base: ts.URL, key: "adm", http: ts.Client()}
	var out bytes.Buffer
	err := c.add([]string{"-codes", "200,301"}, strings.NewReader("example.com\n5551234567\n"), &out)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got["url"] != "https://example.com" || got["ownerContact"] != "5551234567" {
		t.Fatalf("unexpected payload: %v", got)
	}
	if codes, _ := got["acceptedCodes"].([]any); len(codes) != 2 {
		t.Fatalf("codes = %v", got["acceptedCodes"])
	}
	if !strings.Contains(out.String(), "Added abc (GET https://example.com)") {
		t.Fatalf("output: %s", out.String())
	}
}

func TestAPIErrorMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"malformed check","fields":["timeoutSeconds"]}`))
	}))
	defer ts.Close()

	c := &client{base: ts.URL, http: ts.Client()}
	err := c.add([]string{"-url", "https://x.io", "-owner", "1"}, strings.NewReader(""), &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "malformed check (timeoutSeconds)") {
		t.Fatalf("err = %v", err)
	}
}
