package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-proofed-catalog/internal/domain"
)

// envelopeRouter attaches a fixed request id and a capturing logger the way
// RequestID and RedactingLogger do in production.
func envelopeRouter(logs *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	lg := zerolog.New(logs)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-1")
		c.Set("logger", &lg)
		c.Next()
	})
	return r
}

func TestFail_EnvelopeAndLogging(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		code    string
		msg     string
		wantLog bool
	}{
		{"not found", http.StatusNotFound, ErrCodeNotFound, "product not found", false},
		{"rate limited", http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded", false},
		{"search failed", http.StatusInternalServerError, ErrCodeSearchFailed, "index exploded", true},
		{"index unavailable", http.StatusServiceUnavailable, ErrCodeIndexUnavailable, "search index unavailable", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var logs bytes.Buffer
			r := envelopeRouter(&logs)
			reached := false
			r.GET("/x", func(c *gin.Context) { Fail(c, tc.status, tc.code, tc.msg) }, func(*gin.Context) { reached = true })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			if w.Code != tc.status {
				t.Fatalf("status=%d; want %d", w.Code, tc.status)
			}
			if reached {
				t.Fatalf("Fail must abort the handler chain")
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("json: %v", err)
			}
			if er != (ErrorResponse{RequestID: "rid-1", Code: tc.code, Message: tc.msg}) {
				t.Fatalf("unexpected envelope: %+v", er)
			}

			logged := strings.Contains(logs.String(), `"level":"error"`)
			if logged != tc.wantLog {
				t.Fatalf("error logged=%v; want %v (logs: %s)", logged, tc.wantLog, logs.String())
			}
			if tc.wantLog && !strings.Contains(logs.String(), `"code":"`+tc.code+`"`) {
				t.Fatalf("log line missing code: %s", logs.String())
			}
		})
	}
}

func TestFail_WithoutRequestScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { fail(c, http.StatusInternalServerError, ErrCodeInternal, "boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.RequestID != "" || er.Code != ErrCodeInternal {
		t.Fatalf("unexpected envelope: %+v", er)
	}
	if strings.Contains(w.Body.String(), "request_id") {
		t.Fatalf("empty request id should be omitted: %s", w.Body.String())
	}
}

func TestOK_WritesProductJSON(t *testing.T) {
	var logs bytes.Buffer
	r := envelopeRouter(&logs)
	r.GET("/p", func(c *gin.Context) {
		ok(c, http.StatusOK, domain.Product{Barcode: "5449000000996", Brand: "Coca-Cola", ProductName: "Coca-Cola", Quantity: "330 ml"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	for _, want := range []string{`"barcode":"5449000000996"`, `"product_name":"Coca-Cola"`, `"image_url":""`} {
		if !strings.Contains(w.Body.String(), want) {
			t.Fatalf("body missing %s: %s", want, w.Body.String())
		}
	}
	if strings.Contains(w.Body.String(), "Seq") || strings.Contains(w.Body.String(), "seq") {
		t.Fatalf("internal sequence leaked: %s", w.Body.String())
	}
	if logs.Len() != 0 {
		t.Fatalf("success must not log: %s", logs.String())
	}
}

func TestNotModified_KeepsValidatorAndSendsNoBody(t *testing.T) {
	var logs bytes.Buffer
	r := envelopeRouter(&logs)
	r.GET("/search", func(c *gin.Context) {
		c.Header("ETag", `W/"products:v1:10:0000abcd"`)
		notModified(c)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search", nil))

	if w.Code != http.StatusNotModified {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("304 must not carry a body: %q", w.Body.String())
	}
	if got := w.Header().Get("ETag"); got != `W/"products:v1:10:0000abcd"` {
		t.Fatalf("ETag=%q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "" {
		t.Fatalf("304 should not declare a content type, got %q", ct)
	}
}
