package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

func TestBlockHandler_Block_InvalidBody(t *testing.T) {
	handler := NewBlockHandler(&mockBlockService{
		BlockFunc: func(ctx context.Context, blockerID, blockedID uuid.UUID) error {
			t.Fatal("Block should not be called for invalid body")
			return nil
		},
	})

	req, _ := newAuthedRequest(http.MethodPost, "/api/blocks", "{")
	rr := httptest.NewRecorder()
	handler.Block(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "Invalid request body")
}

func TestBlockHandler_Block_InvalidUserID(t *testing.T) {
	handler := NewBlockHandler(&mockBlockService{})

	req, _ := newAuthedRequest(http.MethodPost, "/api/blocks", `{"user_id":"nope"}`)
	rr := httptest.NewRecorder()
	handler.Block(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "user_id must be a valid ID")
}

func TestBlockHandler_Block_Self(t *testing.T) {
	handler := NewBlockHandler(&mockBlockService{
		BlockFunc: func(ctx context.Context, blockerID, blockedID uuid.UUID) error {
			return services.ErrCannotBlockSelf
		},
	})

	req, _ := newAuthedRequest(http.MethodPost, "/api/blocks", `{"user_id":"`+uuid.NewString()+`"}`)
	rr := httptest.NewRecorder()
	handler.Block(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "cannot block yourself")
}

func TestBlockHandler_Block_AlreadyBlocked(t *testing.T) {
	handler := NewBlockHandler(&mockBlockService{
		BlockFunc: func(ctx context.Context, blockerID, blockedID uuid.UUID) error {
			return services.ErrBlockExists
		},
	})

	req, _ := newAuthedRequest(http.MethodPost, "/api/blocks", `{"user_id":"`+uuid.NewString()+`"}`)
	rr := httptest.NewRecorder()
	handler.Block(rr, req)
	assertErrorResponse(t, rr, http.StatusConflict, "user is already blocked")
}

func TestBlockHandler_Block_Success(t *testing.T) {
	target := uuid.New()
	var gotBlocker, gotBlocked uuid.UUID
	handler := NewBlockHandler(&mockBlockService{
		BlockFunc: func(ctx context.Context, blockerID, blockedID uuid.UUID) error {
			gotBlocker, gotBlocked = blockerID, blockedID
			return nil
		},
	})

	req, user := newAuthedRequest(http.MethodPost, "/api/blocks", `{"user_id":"`+target.String()+`"}`)
	rr := httptest.NewRecorder()
	handler.Block(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if gotBlocker != user.ID || gotBlocked != target {
		t.Fatalf("unexpected ids: blocker=%s blocked=%s", gotBlocker, gotBlocked)
	}
}

func TestBlockHandler_Unauthenticated(t *testing.T) {
	handler := NewBlockHandler(&mockBlockService{})

	for name, fn := range map[string]http.HandlerFunc{
		"block":   handler.Block,
		"unblock": handler.Unblock,
		"list":    handler.List,
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			fn(rr, httptest.NewRequest(http.MethodGet, "/api/blocks", nil))
			assertErrorResponse(t, rr, http.StatusUnauthorized, "Authentication required")
		})
	}
}

func TestBlockHandler_Unblock_InvalidID(t *testing.T) {
	handler := NewBlockHandler(&mockBlockService{})

	req, _ := newAuthedRequest(http.MethodDelete, "/api/blocks/bad", "")
	req.SetPathValue("id", "bad")
	rr := httptest.NewRecorder()
	handler.Unblock(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "Invalid user ID")
}

func TestBlockHandler_Unblock_NotFound(t *testing.T) {
	handler := NewBlockHandler(&mockBlockService{
		UnblockFunc: func(ctx context.Context, blockerID, blockedID uuid.UUID) error {
			return services.ErrBlockNotFound
		},
	})

	id := uuid.New()
	req, _ := newAuthedRequest(http.MethodDelete, "/api/blocks/"+id.String(), "")
	req.SetPathValue("id", id.String())
	rr := httptest.NewRecorder()
	handler.Unblock(rr, req)
	assertErrorResponse(t, rr, http.StatusNotFound, "block not found")
}

func TestBlockHandler_List_EmptyIsArray(t *testing.T) {
	handler := NewBlockHandler(&mockBlockService{})

	req, _ := newAuthedRequest(http.MethodGet, "/api/blocks", "")
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if string(resp["blocked"]) != "[]" {
		t.Fatalf("expected empty array, got %s", resp["blocked"])
	}
}

func TestBlockHandler_List_Success(t *testing.T) {
	handler := NewBlockHandler(&mockBlockService{
		ListBlockedFunc: func(ctx context.Context, blockerID uuid.UUID) ([]models.BlockedUser, error) {
			return []models.BlockedUser{{ID: uuid.New(), Username: "casey"}}, nil
		},
	})

	req, _ := newAuthedRequest(http.MethodGet, "/api/blocks", "")
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	var resp BlockListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Blocked) != 1 || resp.Blocked[0].Username != "casey" {
		t.Fatalf("unexpected blocked list: %+v", resp.Blocked)
	}
}
