package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/rs/zerolog"

	"tweetgen-go/textgen"
)

// genericError is all a visitor sees when generation fails.
const genericError = "Something went wrong while generating the tweet. Please try again."

// Generator produces text for a prompt. *textgen.Service implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateAll(ctx context.Context, prompt string) ([]textgen.Output, error)
}

type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

type GenerateResponse struct {
	Text         string `json:"text"`
	Tokens       int    `json:"tokens"`
	PromptTokens int    `json:"prompt_tokens"`
	FinishReason string `json:"finish_reason"`
	DurationMS   int64  `json:"duration_ms"`
	Tweet        Tweet  `json:"tweet"`
}

type ExamplesResponse struct {
	Examples []string `json:"examples"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// page is the data behind the HTML form
type page struct {
	Title       string
	OutputLabel string
	Examples    []string
	Prompt      string
	Output      string
	Error       string
	Tweet       *Tweet
}

type Handler struct {
	generator Generator
	opts      Options
	tmpl      *template.Template
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewHandler(generator Generator, opts Options, logger *zerolog.Logger) (*Handler, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{
		generator: generator,
		opts:      opts,
		tmpl:      tmpl,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// GET /?prompt=...
func (h *Handler) Index(req *restful.Request, resp *restful.Response) {
	h.render(resp, http.StatusOK, h.page(req.QueryParameter("prompt")))
}

// POST /
// Form: prompt
func (h *Handler) Submit(req *restful.Request, resp *restful.Response) {
	prompt, err := req.BodyParameter("prompt")
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse form")
		p := h.page("")
		p.Error = "Could not read the submitted form."
		h.render(resp, http.StatusBadRequest, p)
		return
	}

	ctx, cancel := h.requestContext(req)
	defer cancel()

	p := h.page(prompt)
	text, err := h.generator.Generate(ctx, prompt)
	if err != nil {
		h.logger.Error().Err(err).Str("prompt_hash", textgen.Fingerprint(prompt)).Msg("Generation failed")
		p.Error = genericError
		h.render(resp, http.StatusInternalServerError, p)
		return
	}

	tweet := NewTweet(text, h.opts.Profile, h.now())
	p.Output = text
	p.Tweet = &tweet
	h.render(resp, http.StatusOK, p)
}

// POST /api/v1/generate
// Body: GenerateRequest
// Returns: GenerateResponse
func (h *Handler) Generate(req *restful.Request, resp *restful.Response) {
	var body GenerateRequest
	if err := req.ReadEntity(&body); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		HandleError(resp, err, http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(req)
	defer cancel()

	outputs, err := h.generator.GenerateAll(ctx, body.Prompt)
	if err != nil {
		h.logger.Error().Err(err).Str("prompt_hash", textgen.Fingerprint(body.Prompt)).Msg("Generation failed")
		status := statusFor(err)
		HandleError(resp, errors.New(http.StatusText(status)), status)
		return
	}

	out := outputs[0]
	resp.WriteHeaderAndEntity(http.StatusOK, GenerateResponse{
		Text:         out.Text,
		Tokens:       len(out.TokenIDs),
		PromptTokens: out.NumPromptTokens,
		FinishReason: string(out.FinishReason),
		DurationMS:   out.Duration.Milliseconds(),
		Tweet:        NewTweet(out.Text, h.opts.Profile, h.now()),
	})
}

// GET /api/v1/examples
func (h *Handler) Examples(req *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndEntity(http.StatusOK, ExamplesResponse{Examples: h.opts.Examples})
}

// Health handler GET /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndEntity(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.opts.Version,
	})
}

func (h *Handler) page(prompt string) page {
	return page{
		Title:       h.opts.Title,
		OutputLabel: h.opts.OutputLabel,
		Examples: h.opts.Examples,
		Prompt:   prompt,
	}
}

func (h *Handler) render(resp *restful.Response, status int, p page) {
	resp.AddHeader("Content-Type", "text/html; charset=utf-8")
	resp.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(resp, "index.html", p); err != nil {
		h.logger.Error().Err(err).Msg("Failed to render page")
	}
}

func (h *Handler) requestContext(req *restful.Request) (context.Context, context.CancelFunc) {
	if h.opts.GenerateTimeout > 0 {
		return context.WithTimeout(req.Request.Context(), h.opts.GenerateTimeout)
	}
	return context.WithCancel(req.Request.Context())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, textgen.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
