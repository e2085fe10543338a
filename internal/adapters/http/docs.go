package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Neighborhelper API - Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box}*,*::before,*::after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`

// OpenAPIPath is where the API description is read from, relative to the
// working directory.
var OpenAPIPath = "api/openapi.yaml"

// apiDocs holds the description loaded on first use. A file that fails to
// parse is reported as missing rather than served half-broken.
type apiDocs struct {
	once sync.Once
	yaml []byte
	json []byte
	err  error
}

func (d *apiDocs) load() error {
	d.once.Do(func() {
		raw, err := os.ReadFile(OpenAPIPath)
		if err != nil {
			d.err = err
			return
		}
		spec, err := openapi3.NewLoader().LoadFromData(raw)
		if err != nil {
			d.err = fmt.Errorf("parse %s: %w", OpenAPIPath, err)
			return
		}
		if d.json, err = json.Marshal(spec); err != nil {
			d.err = err
			return
		}
		d.yaml = raw
	})
	return d.err
}

// SetupDocs registers Swagger UI at /docs and the API description at
// /docs/openapi.yaml and /docs/openapi.json.
func SetupDocs(app *fiber.App) {
	docs := &apiDocs{}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerUIHTML)
	})

	serve := func(contentType string, body func() []byte) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if err := docs.load(); err != nil {
				slog.Warn("api description unavailable", "path", OpenAPIPath, "error", err)
				return errNotFound(c, "API description not available")
			}
			c.Set(fiber.HeaderContentType, contentType)
			return c.Send(body())
		}
	}
	app.Get("/docs/openapi.yaml", serve("application/yaml", func() []byte { return docs.yaml }))
	app.Get("/docs/openapi.json", serve(fiber.MIMEApplicationJSON, func() []byte { return docs.json }))
}
