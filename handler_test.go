package sitegate_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/orelode/sitegate"
)

func doRequest(handler http.HandlerFunc, opts ...sitegate.HandlerOption) *httptest.ResponseRecorder {
	wrapped := sitegate.Handler(opts...)(handler)
	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	return rec
}

func TestHandler_WritesResponse(t *testing.T) {
	rec := doRequest(func(_ http.ResponseWriter, r *http.Request) {
		sitegate.SetResponse(r, http.StatusOK, map[string]string{"message": "ok"})
	})

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["message"] != "ok" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestHandler_WritesError(t *testing.T) {
	rec := doRequest(func(_ http.ResponseWriter, r *http.Request) {
		sitegate.SetError(r, sitegate.ErrNotFound.With("Page not found"))
	})

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	var resp struct {
		Error struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON error body: %v", err)
	}
	if resp.Error.Type != "not_found" || resp.Error.Code != "resource_not_found" {
		t.Errorf("unexpected error envelope: %+v", resp.Error)
	}
	if resp.Error.Message != "Page not found" {
		t.Errorf("expected custom message, got %q", resp.Error.Message)
	}
}

func TestHandler_ErrorTakesPrecedenceOverResponse(t *testing.T) {
	rec := doRequest(func(_ http.ResponseWriter, r *http.Request) {
		sitegate.SetResponse(r, http.StatusOK, map[string]string{"message": "ok"})
		sitegate.SetError(r, sitegate.ErrForbidden)
	})

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_RecoversPanic(t *testing.T) {
	rec := doRequest(func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON error body: %v", err)
	}
	if resp.Error.Code != "internal" {
		t.Errorf("expected internal, got %q", resp.Error.Code)
	}
}

func TestHandler_SetsHeaders(t *testing.T) {
	rec := doRequest(func(_ http.ResponseWriter, r *http.Request) {
		sitegate.SetHeader(r, "Cache-Control", "no-store")
		sitegate.AddHeader(r, "Vary", "Accept")
		sitegate.AddHeader(r, "Vary", "Authorization")
		sitegate.SetResponse(r, http.StatusOK, map[string]string{"message": "ok"})
	})

	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected no-store, got %q", got)
	}
	if got := rec.Header().Values("Vary"); len(got) != 2 {
		t.Errorf("expected 2 Vary values, got %v", got)
	}
}

func TestHandler_StatusOnlyResponse(t *testing.T) {
	rec := doRequest(func(_ http.ResponseWriter, r *http.Request) {
		sitegate.SetResponse(r, http.StatusNoContent, nil)
	})

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
}

func TestHandler_WithCanonlog(t *testing.T) {
	// Canonical logging must not change the response written to the client.
	rec := doRequest(func(_ http.ResponseWriter, r *http.Request) {
		sitegate.SetResponse(r, http.StatusOK, map[string]string{"message": "ok"})
	}, sitegate.WithCanonlog(), sitegate.WithCanonlogFields(func(r *http.Request) map[string]any {
		return map[string]any{"host": r.Host}
	}))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHasState(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if sitegate.HasState(req.Context()) {
		t.Error("expected no state on a bare request")
	}

	doRequest(func(_ http.ResponseWriter, r *http.Request) {
		if !sitegate.HasState(r.Context()) {
			t.Error("expected state inside the handler chain")
		}
	})
}

func TestAPIError_Is(t *testing.T) {
	custom := sitegate.ErrRateLimited.With("Too many signups from this address")
	if !errors.Is(custom, sitegate.ErrRateLimited) {
		t.Error("expected customized error to match its sentinel")
	}
	if errors.Is(custom, sitegate.ErrUnauthorized) {
		t.Error("expected mismatch against a different sentinel")
	}
}
