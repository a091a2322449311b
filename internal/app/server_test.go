package app

import (
	"net/http/httptest"
	"testing"

	"github.com/gorilla/handlers"

	"hackhub/backend/internal/handler"
)

func newTestServer() *Server {
	return NewServer(
		&handler.MessageHandler{},
		&handler.UserHandler{},
		&handler.UploadHandler{},
	)
}

func TestCORSPreflightRequest(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("OPTIONS", "/api/messages", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	rr := httptest.NewRecorder()

	// Same middleware setup as Run.
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	cors(server.router).ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %v, want *", got)
	}

	if rr.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("Access-Control-Allow-Headers should not be empty for OPTIONS request")
	}
}

func TestCORSWithActualRequest(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Origin", "http://example.com")

	rr := httptest.NewRecorder()

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	cors(server.router).ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %v, want *", got)
	}

	if rr.Code != 200 {
		t.Errorf("GET /metrics = %d, want 200", rr.Code)
	}
}
