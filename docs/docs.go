// Package docs is a hand-maintained stand-in for the file `swag init`
// would normally generate from the annotated handlers under
// src/handler. Kept minimal: enough to satisfy gin-swagger's
// swag.Spec registration so /swagger/index.html renders.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {}
}`

// SwaggerInfo holds exported Swagger metadata, mirroring the shape
// swag init emits.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "TunnelForge API",
	Description:      "Terminal session server: spawn, attach, stream and control PTY sessions over HTTP, WebSocket, SSE and a Unix-socket IPC protocol.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
