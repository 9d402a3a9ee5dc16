package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"tweetgen-go/textgen"
)

// ModelInfo is what a logits server reports about its model.
type ModelInfo struct {
	VocabSize     int    `json:"vocab_size"`
	ContextLength int    `json:"context_length"`
	EOSTokenID    int    `json:"eos_token_id"`
	ModelType     string `json:"model_type"`
}

type logitsRequest struct {
	TokenIDs []int `json:"token_ids"`
}

type logitsResponse struct {
	Logits []float32 `json:"logits"`
}

type serverError struct {
	Error string `json:"error"`
}

// HTTPRunner implements textgen.ModelRunner against a remote logits server.
type HTTPRunner struct {
	baseURL string
	client  *resty.Client
	info    ModelInfo
	logger  *zerolog.Logger
}

// NewHTTPRunner connects to serverURL and reads the model info.
func NewHTTPRunner(ctx context.Context, serverURL string, timeout time.Duration, logger *zerolog.Logger) (*HTTPRunner, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	r := &HTTPRunner{
		baseURL: strings.TrimRight(serverURL, "/"),
		client:  client,
		logger:  logger,
	}

	resp, err := client.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&r.info).
		SetError(&serverError{}).
		Get(r.baseURL + "/info")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("model info request failed: %s", responseError(resp))
	}
	if r.info.VocabSize <= 0 {
		return nil, fmt.Errorf("server reported invalid vocab size %d", r.info.VocabSize)
	}

	logger.Info().
		Str("url", r.baseURL).
		Int("vocab", r.info.VocabSize).
		Int("context", r.info.ContextLength).
		Str("model_type", r.info.ModelType).
		Msg("connected to logits server")

	return r, nil
}

// Run posts the full token sequence and returns next-token logits
func (r *HTTPRunner) Run(ctx context.Context, seq *textgen.Sequence) ([]float32, error) {
	var result logitsResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(logitsRequest{TokenIDs: seq.TokenIDs}).
		ForceContentType("application/json").
		SetResult(&result).
		SetError(&serverError{}).
		Post(r.baseURL + "/logits")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("logits request failed: %s", responseError(resp))
	}
	if len(result.Logits) != r.info.VocabSize {
		return nil, fmt.Errorf("server returned %d logits, expected %d", len(result.Logits), r.info.VocabSize)
	}
	return result.Logits, nil
}

func responseError(resp *resty.Response) string {
	if e, ok := resp.Error().(*serverError); ok && e.Error != "" {
		return fmt.Sprintf("%s: %s", resp.Status(), e.Error)
	}
	return resp.Status()
}

// Release is a no-op; the server is stateless
func (r *HTTPRunner) Release(seq *textgen.Sequence) {}

// VocabSize returns the vocabulary size
func (r *HTTPRunner) VocabSize() int {
	return r.info.VocabSize
}

// ContextLength returns the server's context length, 0 when unknown
func (r *HTTPRunner) ContextLength() int {
	return r.info.ContextLength
}

// Info returns the model info reported by the server
func (r *HTTPRunner) Info() ModelInfo {
	return r.info
}

// Close cleans up resources
func (r *HTTPRunner) Close() error {
	r.client.GetClient().CloseIdleConnections()
	return nil
}
