// Package web serves the prompt form, the tweet card and a small JSON API.
package web

import (
	"net/http"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// DefaultOutputLabel labels the generated text when Options leaves it empty.
const DefaultOutputLabel = "Generated Trump Tweet"

// Options configures the front-end.
type Options struct {
	Title           string
	OutputLabel     string
	Examples        []string
	Profile         Profile
	Version         string
	GenerateTimeout time.Duration
	CORSOrigins     []string
}

// Server holds the restful container and the handler chain in front of it.
type Server struct {
	container *restful.Container
	handler   http.Handler
}

// NewServer wires generator into a container with logging, panic recovery
// and CORS.
func NewServer(generator Generator, opts Options, logger *zerolog.Logger) (*Server, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if opts.OutputLabel == "" {
		opts.OutputLabel = DefaultOutputLabel
	}

	handler, err := NewHandler(generator, opts, logger)
	if err != nil {
		return nil, err
	}

	container := restful.NewContainer()
	container.Filter(RequestLogger(logger))
	container.Filter(RecoverPanic(logger))
	RegisterRoutes(container, handler, opts.Version)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	return &Server{
		container: container,
		handler:   corsHandler.Handler(container),
	}, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Container exposes the restful container, e.g. to add routes.
func (s *Server) Container() *restful.Container {
	return s.container
}
