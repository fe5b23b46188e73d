package semantic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/odisys/ces-gate/internal/domain/intent"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stubProvider is a canned Provider for chain tests.
type stubProvider struct {
	name  string
	label intent.Label
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Classify(_ context.Context, _ string) (intent.Label, error) {
	s.calls++
	if s.err != nil {
		return intent.Label{}, s.err
	}
	return s.label, nil
}

func TestParseLabel(t *testing.T) {
	want := intent.Label{Topic: "input_price", Domain: intent.DomainEconomic}

	tests := []struct {
		name    string
		reply   string
		want    intent.Label
		wantErr bool
	}{
		{
			name:  "bare json",
			reply: `{"topic":"input_price","domain":"ECONOMIC","requires_human":false}`,
			want:  want,
		},
		{
			name:  "markdown fenced",
			reply: "```json\n{\"topic\":\"input_price\",\"domain\":\"ECONOMIC\"}\n```",
			want:  want,
		},
		{
			name:  "bare fence",
			reply: "```\n{\"topic\":\"input_price\",\"domain\":\"ECONOMIC\"}\n```",
			want:  want,
		},
		{
			name:  "surrounded by prose",
			reply: "Claro, aquí tienes la clasificación: {\"topic\":\"input_price\",\"domain\":\"ECONOMIC\"} espero que sirva.",
			want:  want,
		},
		{
			name:  "requires human flag",
			reply: `{"topic":"shopify_delete_request","domain":"OPERATIONAL","requires_human":true}`,
			want:  intent.Label{Topic: "shopify_delete_request", Domain: intent.DomainOperational, RequiresHuman: true},
		},
		{
			name:    "no json at all",
			reply:   "lo siento, no puedo clasificar eso",
			wantErr: true,
		},
		{
			name:    "broken braces",
			reply:   "{topic: input_price",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLabel(tt.reply)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChainFallsBack(t *testing.T) {
	want := intent.Label{Topic: "operational", Domain: intent.DomainOperational}
	first := &stubProvider{name: "gemini", err: errors.New("quota exceeded")}
	second := &stubProvider{name: "openai", label: want}

	chain := NewChain([]Provider{first, second}, testLogger())
	got, err := chain.Classify(context.Background(), "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("expected one call each, got %d/%d", first.calls, second.calls)
	}
}

func TestChainFirstSuccessShortCircuits(t *testing.T) {
	want := intent.Label{Topic: "visual_generate", Domain: intent.DomainCreative}
	first := &stubProvider{name: "gemini", label: want}
	second := &stubProvider{name: "openai", label: intent.Label{Topic: "operational"}}

	chain := NewChain([]Provider{first, second}, testLogger())
	got, err := chain.Classify(context.Background(), "quiero ver el producto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if second.calls != 0 {
		t.Errorf("second provider must not be consulted, got %d calls", second.calls)
	}
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain([]Provider{
		&stubProvider{name: "gemini", err: errors.New("quota exceeded")},
		&stubProvider{name: "openai", err: errors.New("bad gateway")},
	}, testLogger())

	if _, err := chain.Classify(context.Background(), "hola"); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}

func TestChainEmpty(t *testing.T) {
	chain := NewChain(nil, testLogger())
	if _, err := chain.Classify(context.Background(), "hola"); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestChainStopsOnCancelledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &stubProvider{name: "gemini", err: errors.New("quota exceeded")}
	second := &stubProvider{name: "openai", label: intent.Label{Topic: "operational"}}

	chain := NewChain([]Provider{first, second}, testLogger())
	cancel()
	if _, err := chain.Classify(ctx, "hola"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if second.calls != 0 {
		t.Errorf("second provider must not run after parent cancellation, got %d calls", second.calls)
	}
}

func TestGeminiProviderWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("missing api key header, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "contents") {
			t.Errorf("request is not gemini-shaped: %s", body)
		}
		if !strings.Contains(string(body), "Router de Intenciones") {
			t.Errorf("prompt missing from request: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"topic\":\"input_price\",\"domain\":\"ECONOMIC\"}"}]}}]}`)
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{
		Name:     "gemini",
		Endpoint: srv.URL,
		Model:    "gemini-2.0-flash",
		APIKey:   "test-key",
	}, srv.Client())

	label, err := p.Classify(context.Background(), "cuesta 20 euros")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if label.Topic != "input_price" || label.Domain != intent.DomainEconomic {
		t.Errorf("unexpected label: %+v", label)
	}
}

func TestOpenAIProviderWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		for _, want := range []string{`"messages"`, `"json_object"`, `"gpt-4o-mini"`} {
			if !strings.Contains(string(body), want) {
				t.Errorf("request missing %s: %s", want, body)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"topic\":\"operational\",\"domain\":\"OPERATIONAL\"}"}}]}`)
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{
		Name:     "openai",
		Endpoint: srv.URL,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
	}, srv.Client())

	label, err := p.Classify(context.Background(), "hola")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if label.Topic != "operational" {
		t.Errorf("unexpected label: %+v", label)
	}
}

func TestProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{Name: "openai", Endpoint: srv.URL}, srv.Client())
	if _, err := p.Classify(context.Background(), "hola"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestProviderMalformedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"no soy JSON"}}]}`)
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{Name: "openai", Endpoint: srv.URL}, srv.Client())
	if _, err := p.Classify(context.Background(), "hola"); err == nil {
		t.Fatal("expected error on non-JSON reply")
	}
}

func TestInferAdapterByEndpoint(t *testing.T) {
	// Name does not say gemini; the endpoint does.
	cfg := ProviderConfig{Name: "primary", Endpoint: "https://generativelanguage.googleapis.com/v1beta/models/gemini:generateContent"}
	adapter := inferAdapter(cfg)
	req, err := adapter.buildRequest(cfg, "hola")
	if err != nil {
		t.Fatalf("build request failed: %v", err)
	}
	if !strings.Contains(string(req), "contents") {
		t.Errorf("expected gemini request shape, got %s", req)
	}
}
