// Package docs embeds the OpenAPI document served next to the swagger UI.
package docs

import "embed"

//go:embed swagger.yml
var FS embed.FS
