// Package openapi embeds the OpenAPI specification served at /docs/doc.json.
package openapi

import _ "embed"

// JSON contains the embedded OpenAPI document.
//
//go:embed openapi.json
var JSON []byte
