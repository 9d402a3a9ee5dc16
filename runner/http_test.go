package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tweetgen-go/textgen"
)

func newLogitsServer(t *testing.T, vocab int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ModelInfo{
			VocabSize:     vocab,
			ContextLength: 1024,
			EOSTokenID:    vocab - 1,
			ModelType:     "gpt2",
		})
	})
	mux.HandleFunc("/logits", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req logitsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.TokenIDs) == 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(serverError{Error: "token_ids required"})
			return
		}
		// favour the token after the last one
		logits := make([]float32, vocab)
		logits[(req.TokenIDs[len(req.TokenIDs)-1]+1)%vocab] = 10
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(logitsResponse{Logits: logits})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPRunnerInfo(t *testing.T) {
	srv := newLogitsServer(t, 16)

	r, err := NewHTTPRunner(context.Background(), srv.URL+"/", 5*time.Second, nil)
	if err != nil {
		t.Fatalf("NewHTTPRunner failed: %v", err)
	}
	defer r.Close()

	if r.VocabSize() != 16 {
		t.Errorf("Expected vocab size 16, got %d", r.VocabSize())
	}
	if r.ContextLength() != 1024 {
		t.Errorf("Expected context length 1024, got %d", r.ContextLength())
	}
	if r.Info().ModelType != "gpt2" {
		t.Errorf("Expected model type gpt2, got %q", r.Info().ModelType)
	}
}

func TestHTTPRunnerRun(t *testing.T) {
	srv := newLogitsServer(t, 16)

	r, err := NewHTTPRunner(context.Background(), srv.URL, 5*time.Second, nil)
	if err != nil {
		t.Fatalf("NewHTTPRunner failed: %v", err)
	}

	logits, err := r.Run(context.Background(), textgen.NewSequence([]int{3, 4}))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(logits) != 16 {
		t.Fatalf("Expected 16 logits, got %d", len(logits))
	}
	if logits[5] != 10 {
		t.Errorf("Expected token 5 to be favoured, got %v", logits)
	}
}

func TestHTTPRunnerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/info" {
			json.NewEncoder(w).Encode(ModelInfo{VocabSize: 8})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(serverError{Error: "CUDA out of memory"})
	}))
	defer srv.Close()

	r, err := NewHTTPRunner(context.Background(), srv.URL, 5*time.Second, nil)
	if err != nil {
		t.Fatalf("NewHTTPRunner failed: %v", err)
	}

	_, err = r.Run(context.Background(), textgen.NewSequence([]int{1}))
	if err == nil || !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Errorf("Expected the server error to be reported, got %v", err)
	}
}

func TestHTTPRunnerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewHTTPRunner(context.Background(), url, time.Second, nil); err == nil {
		t.Error("Expected an error for an unreachable server")
	}
}

func TestHTTPRunnerWithService(t *testing.T) {
	srv := newLogitsServer(t, 16)

	r, err := NewHTTPRunner(context.Background(), srv.URL, 5*time.Second, nil)
	if err != nil {
		t.Fatalf("NewHTTPRunner failed: %v", err)
	}

	cfg, _ := textgen.NewConfig(textgen.WithStrategy(textgen.StrategyGreedy), textgen.WithMaxLength(6))
	svc, err := textgen.NewService(cfg, r, &idTokenizer{vocab: 16}, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	text, err := svc.Generate(context.Background(), "1 2")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "1 2 3 4 5 6" {
		t.Errorf("Expected %q, got %q", "1 2 3 4 5 6", text)
	}
}
