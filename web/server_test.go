package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"tweetgen-go/textgen"
	"tweetgen-go/textgen/mocks"
	"tweetgen-go/web"
)

var examples = []string{
	"Why does the lying news media",
	"The democrats have",
	"Today I'll be",
}

// fakeGenerator echoes the prompt with a fixed suffix
type fakeGenerator struct {
	suffix string
	err    error
	panics bool

	mu      sync.Mutex
	prompts []string
}

func (g *fakeGenerator) record(prompt string) error {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.panics {
		panic("boom")
	}
	return g.err
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.record(prompt); err != nil {
		return "", err
	}
	return prompt + g.suffix, nil
}

func (g *fakeGenerator) GenerateAll(ctx context.Context, prompt string) ([]textgen.Output, error) {
	if err := g.record(prompt); err != nil {
		return nil, err
	}
	return []textgen.Output{{
		Text:            prompt + g.suffix,
		TokenIDs:        []int{1, 2, 3, 4},
		NumPromptTokens: 2,
		FinishReason:    textgen.FinishEOS,
		Duration:        1500 * time.Millisecond,
	}}, nil
}

func testOptions() web.Options {
	return web.Options{
		Title:       "Tweet Generator",
		OutputLabel: "Generated Trump Tweet",
		Examples:    examples,
		Profile: web.Profile{
			DisplayName: "Donald J. Trump",
			Handle:      "realDonaldTrump",
			Verified:    true,
			Client:      "Twitter for iPhone",
		},
		Version: "test",
	}
}

func setupTestServer(t *testing.T, gen web.Generator) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	srv, err := web.NewServer(gen, testOptions(), &logger)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return srv.Handler()
}

func postForm(handler http.Handler, prompt string) *httptest.ResponseRecorder {
	form := url.Values{"prompt": {prompt}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func postJSON(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestIndexRendersForm(t *testing.T) {
	handler := setupTestServer(t, &fakeGenerator{})

	recorder := get(handler, "/")
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected an HTML page, got %q", ct)
	}

	body := recorder.Body.String()
	for _, want := range []string{
		`<label for="prompt">Prompt</label>`,
		`rows="5"`,
		`<label for="output">Generated Trump Tweet</label>`,
		"Why does the lying news media",
		`href="/?prompt=The%20democrats%20have"`,
		"Today I&#39;ll be",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected page to contain %q", want)
		}
	}
	if strings.Contains(body, `class="tweet"`) {
		t.Error("Expected no tweet card before a submission")
	}
}

func TestIndexDefaultOutputLabel(t *testing.T) {
	opts := testOptions()
	opts.OutputLabel = ""
	logger := zerolog.Nop()
	srv, err := web.NewServer(&fakeGenerator{}, opts, &logger)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	body := get(srv.Handler(), "/").Body.String()
	want := `<label for="output">` + web.DefaultOutputLabel + `</label>`
	if !strings.Contains(body, want) {
		t.Errorf("Expected page to contain %q", want)
	}
}

func TestIndexPrefillsExample(t *testing.T) {
	handler := setupTestServer(t, &fakeGenerator{})

	recorder := get(handler, "/?prompt="+url.QueryEscape("The democrats have"))
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `rows="5">The democrats have</textarea>`) {
		t.Error("Expected the prompt textarea to be pre-filled")
	}
}

func TestSubmitForwardsPromptVerbatim(t *testing.T) {
	gen := &fakeGenerator{suffix: " a total disaster!"}
	handler := setupTestServer(t, gen)

	prompt := `  The "fake" news  `
	recorder := postForm(handler, prompt)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", recorder.Code, recorder.Body.String())
	}

	if len(gen.prompts) != 1 || gen.prompts[0] != prompt {
		t.Fatalf("Expected the prompt to be forwarded verbatim, got %q", gen.prompts)
	}

	body := recorder.Body.String()
	if !strings.Contains(body, "a total disaster!</textarea>") {
		t.Error("Expected the generated text in the output box")
	}
	if !strings.Contains(body, `class="tweet"`) || !strings.Contains(body, "@realDonaldTrump") {
		t.Error("Expected a tweet card for the generated text")
	}
	if !strings.Contains(body, "Twitter for iPhone") {
		t.Error("Expected the client label on the card")
	}
}

func TestSubmitErrorIsGeneric(t *testing.T) {
	gen := &fakeGenerator{err: &textgen.DecodeError{Step: 3, Err: errors.New("CUDA out of memory")}}
	handler := setupTestServer(t, gen)

	recorder := postForm(handler, "Today I'll be")
	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", recorder.Code)
	}

	body := recorder.Body.String()
	if !strings.Contains(body, "Something went wrong") {
		t.Error("Expected a generic error message")
	}
	if strings.Contains(body, "CUDA") {
		t.Error("Expected backend details to stay out of the page")
	}
}

func TestAPIGenerate(t *testing.T) {
	handler := setupTestServer(t, &fakeGenerator{suffix: " again"})

	recorder := postJSON(handler, `{"prompt": "Make America great"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", recorder.Code, recorder.Body.String())
	}

	var response web.GenerateResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if response.Text != "Make America great again" {
		t.Errorf("Expected the generated text, got %q", response.Text)
	}
	if response.Tokens != 4 || response.PromptTokens != 2 {
		t.Errorf("Expected 4 tokens with 2 from the prompt, got %d/%d", response.Tokens, response.PromptTokens)
	}
	if response.FinishReason != "eos" {
		t.Errorf("Expected finish reason eos, got %q", response.FinishReason)
	}
	if response.DurationMS != 1500 {
		t.Errorf("Expected 1500ms, got %d", response.DurationMS)
	}
	if response.Tweet.Handle != "realDonaldTrump" || response.Tweet.Likes == 0 {
		t.Errorf("Expected a populated tweet card, got %+v", response.Tweet)
	}
}

func TestAPIGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"backend", &textgen.DecodeError{Step: 0, Err: errors.New("boom")}, http.StatusInternalServerError},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"closed", fmt.Errorf("generate: %w", textgen.ErrClosed), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := setupTestServer(t, &fakeGenerator{err: tt.err})

			recorder := postJSON(handler, `{"prompt": "x"}`)
			if recorder.Code != tt.want {
				t.Fatalf("Expected status %d, got %d", tt.want, recorder.Code)
			}

			var response web.ErrorResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to parse response: %v", err)
			}
			if response.Code != tt.want {
				t.Errorf("Expected code %d, got %d", tt.want, response.Code)
			}
			if strings.Contains(response.Error, "boom") {
				t.Errorf("Expected a generic error, got %q", response.Error)
			}
		})
	}
}

func TestAPIGenerateBadBody(t *testing.T) {
	gen := &fakeGenerator{}
	handler := setupTestServer(t, gen)

	recorder := postJSON(handler, `{"prompt": `)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", recorder.Code)
	}
	if len(gen.prompts) != 0 {
		t.Error("Expected no generation for a malformed body")
	}
}

func TestExamplesAndHealth(t *testing.T) {
	handler := setupTestServer(t, &fakeGenerator{})

	recorder := get(handler, "/api/v1/examples")
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", recorder.Code)
	}
	var ex web.ExamplesResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &ex); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(ex.Examples) != 3 || ex.Examples[2] != "Today I'll be" {
		t.Errorf("Unexpected examples: %v", ex.Examples)
	}

	recorder = get(handler, "/api/v1/health")
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", recorder.Code)
	}
	var health web.HealthResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if health.Status != "ok" || health.Version != "test" {
		t.Errorf("Unexpected health response: %+v", health)
	}
}

func TestOpenAPIDocument(t *testing.T) {
	handler := setupTestServer(t, &fakeGenerator{})

	recorder := get(handler, "/api/v1/openapi.json")
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", recorder.Code)
	}

	var doc struct {
		Info struct {
			Title   string `json:"title"`
			Version string `json:"version"`
		} `json:"info"`
		Paths map[string]interface{} `json:"paths"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Failed to parse document: %v", err)
	}
	if doc.Info.Title != "tweetgen" || doc.Info.Version != "test" {
		t.Errorf("Unexpected info: %+v", doc.Info)
	}
	if _, ok := doc.Paths["/api/v1/generate"]; !ok {
		t.Errorf("Expected /api/v1/generate in paths, got %v", doc.Paths)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	handler := setupTestServer(t, &fakeGenerator{panics: true})

	recorder := postJSON(handler, `{"prompt": "x"}`)
	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", recorder.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := setupTestServer(t, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/generate", nil)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected any origin to be allowed, got %q", got)
	}
}

func TestSubmitWithService(t *testing.T) {
	ctrl := gomock.NewController(t)

	runner := mocks.NewMockModelRunner(ctrl)
	runner.EXPECT().ContextLength().Return(1024).AnyTimes()
	runner.EXPECT().VocabSize().Return(10).AnyTimes()
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, seq *textgen.Sequence) ([]float32, error) {
			logits := make([]float32, 10)
			logits[0] = 100
			return logits, nil
		}).Times(1)
	runner.EXPECT().Release(gomock.Any()).Times(1)

	tok := mocks.NewMockTokenizer(ctrl)
	tok.EXPECT().VocabSize().Return(10).AnyTimes()
	tok.EXPECT().EOSTokenID().Return(0).AnyTimes()
	tok.EXPECT().BOSTokenID().Return(0).AnyTimes()
	tok.EXPECT().PadTokenID().Return(0).AnyTimes()
	tok.EXPECT().Encode("He said").Return([]int{5, 6}, nil)
	tok.EXPECT().Decode([]int{5, 6, 0}).Return(`He said "great"`, nil)

	cfg, err := textgen.NewConfig(textgen.WithSeed(1))
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	svc, err := textgen.NewService(cfg, runner, tok, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	recorder := postForm(setupTestServer(t, svc), "He said")
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", recorder.Code, recorder.Body.String())
	}
	if !strings.Contains(recorder.Body.String(), "He said great</textarea>") {
		t.Errorf("Expected the quote-free text in the output box, got %s", recorder.Body.String())
	}
}
