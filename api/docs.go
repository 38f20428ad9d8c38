// Package api holds the OpenAPI description of the users HTTP API.
package api

import _ "embed"

// SwaggerJSON is the OpenAPI 2.0 document served next to the Swagger UI.
//
//go:embed users.swagger.json
var SwaggerJSON []byte
