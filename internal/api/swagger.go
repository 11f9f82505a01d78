package api

import (
	_ "embed"
	"net/http"
	"strings"
)

//go:embed openapi.yaml
var openAPISpec string

// SpecHandler serves the OpenAPI YAML spec with the {serverURL} placeholder
// replaced by the public URL of this deployment.
func SpecHandler(serverURL string) http.HandlerFunc {
	spec := strings.ReplaceAll(openAPISpec, "{serverURL}", strings.TrimRight(serverURL, "/"))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(spec))
	}
}

// SwaggerHandler serves a Swagger UI page that points at the spec. The page
// uses the CDN-hosted assets so no static files are checked in. Requests
// made from the page carry the session cookie set by /auth/login.
func SwaggerHandler(specURL string) http.HandlerFunc {
	page := strings.ReplaceAll(swaggerHTML, "${SPEC_URL}", specURL)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Mail Agent API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
  <script>
  window.onload = function() {
    window.ui = SwaggerUIBundle({
      url: "${SPEC_URL}",
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: "BaseLayout",
      withCredentials: true,
      persistAuthorization: true,
    });
  }
  </script>
</body>
</html>`
