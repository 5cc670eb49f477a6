// Package testutil holds HTTP test helpers shared by handler and
// middleware tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/models"
)

// AssertStatusCode checks if the response has the expected status code.
func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Fatalf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// DecodeJSON parses the recorded body into T.
func DecodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse JSON response %q: %v", rr.Body.String(), err)
	}
	return out
}

// AssertJSONArray fails unless key holds a JSON array of length n. Empty
// lists must encode as [] rather than null.
func AssertJSONArray(t *testing.T, rr *httptest.ResponseRecorder, key string, n int) {
	t.Helper()
	fields := DecodeJSON[map[string]json.RawMessage](t, rr)
	var items []json.RawMessage
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		t.Fatalf("expected %s to be an array, got %s", key, raw)
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("expected %s to be an array: %v", key, err)
	}
	if len(items) != n {
		t.Fatalf("expected %d items in %s, got %d", n, key, len(items))
	}
}

// NewJSONRequest builds a request with data encoded as its JSON body.
func NewJSONRequest(t *testing.T, method, path string, data interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewUser returns a user with a fresh ID and a unique email.
func NewUser(username string) *models.User {
	id := uuid.New()
	return &models.User{
		ID:         id,
		Email:      id.String()[:8] + "@campus.test",
		Username:   username,
		Searchable: true,
	}
}
