package web

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
)

const (
	mimeForm      = "application/x-www-form-urlencoded"
	mimeMultipart = "multipart/form-data"
	mimeHTML      = "text/html"

	apiRoot     = "/api/v1"
	openAPIPath = apiRoot + "/openapi.json"
)

// RegisterRoutes adds the HTML form, the JSON API and its OpenAPI document
// to container.
func RegisterRoutes(container *restful.Container, handler *Handler, version string) {
	ui := new(restful.WebService)
	ui.
		Path("/").
		Consumes(mimeForm, mimeMultipart).
		Produces(mimeHTML)

	ui.Route(ui.GET("/").
		To(handler.Index).
		Doc("Prompt form").
		Param(ui.QueryParameter("prompt", "Pre-filled prompt").DataType("string").Required(false)))

	ui.Route(ui.POST("/").
		To(handler.Submit).
		Doc("Generate from the submitted form").
		Param(ui.FormParameter("prompt", "Prompt to continue").DataType("string")))

	container.Add(ui)

	api := new(restful.WebService)
	api.
		Path(apiRoot).
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	api.Route(api.GET("health").
		To(handler.Health).
		Doc("Health check").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthResponse{}).
		Returns(200, "OK", HealthResponse{}))

	api.Route(api.GET("examples").
		To(handler.Examples).
		Doc("Example prompts").
		Metadata(restfulspec.KeyOpenAPITags, []string{"generate"}).
		Writes(ExamplesResponse{}).
		Returns(200, "OK", ExamplesResponse{}))

	api.Route(api.POST("generate").
		To(handler.Generate).
		Doc("Generate a tweet from a prompt").
		Metadata(restfulspec.KeyOpenAPITags, []string{"generate"}).
		Reads(GenerateRequest{}).
		Writes(GenerateResponse{}).
		Returns(200, "OK", GenerateResponse{}).
		Returns(400, "Bad Request", ErrorResponse{}).
		Returns(500, "Internal Server Error", ErrorResponse{}).
		Returns(503, "Service Unavailable", ErrorResponse{}).
		Returns(504, "Gateway Timeout", ErrorResponse{}))

	container.Add(api)

	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices: []*restful.WebService{api},
		APIPath:     openAPIPath,
		PostBuildSwaggerObjectHandler: func(swo *spec.Swagger) {
			describeAPI(swo, version)
		},
	}))
}

func describeAPI(swo *spec.Swagger, version string) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "tweetgen",
			Description: "Generate tweets with a fine-tuned GPT-2",
			Version:     version,
		},
	}
	swo.Tags = []spec.Tag{
		{TagProps: spec.TagProps{Name: "generate", Description: "Text generation"}},
		{TagProps: spec.TagProps{Name: "health", Description: "Service status"}},
	}
}
