package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the panel API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>panel-api Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "panel-api", "version": "v0.1.0" },
  "components": { "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } } },
  "paths": {
    "/auth/discord": { "get": { "summary": "Redirect to the Discord consent page", "responses": { "302": { "description": "redirect" } } } },
    "/auth/discord/callback": { "get": { "summary": "OAuth callback; redirects to the panel with a session token", "parameters": [ {"name":"code","in":"query","schema":{"type":"string"}}, {"name":"state","in":"query","schema":{"type":"string"}} ], "responses": { "302": { "description": "redirect to PANEL_URL/login?token=" }, "500": { "description": "OAuth error" } } } },
    "/auth/logout": { "post": { "summary": "Revoke the session token", "security": [{"bearer":[]}], "responses": { "200": { "description": "logged out" } } } },
    "/api/me": { "get": { "summary": "Current user, bot and guilds", "security": [{"bearer":[]}], "responses": { "200": { "description": "user data" }, "401": { "description": "missing or expired Discord token" }, "429": { "description": "Discord rate limited" }, "502": { "description": "Discord failure" } } } },
    "/api/guilds/{guildId}": { "get": { "summary": "Guild details, channels and configuration", "security": [{"bearer":[]}], "responses": { "200": { "description": "details (botInGuild may be false)" }, "502": { "description": "Discord failure" } } } },
    "/api/guilds/{guildId}/config": {
      "get": { "summary": "Guild configuration", "security": [{"bearer":[]}], "responses": { "200": { "description": "config" } } },
      "put": { "summary": "Update guild configuration", "security": [{"bearer":[]}], "requestBody": { "content": { "application/json": { "schema": {"type":"object"} } } }, "responses": { "200": { "description": "updated config" } } }
    },
    "/api/guilds/{guildId}/logs": { "get": { "summary": "Moderation log messages", "security": [{"bearer":[]}], "parameters": [ {"name":"limit","in":"query","schema":{"type":"integer","minimum":1,"maximum":100}} ], "responses": { "200": { "description": "messages" }, "400": { "description": "no modLogChannel" } } } },
    "/api/debug/mongo/collections": { "get": { "summary": "List database collections", "security": [{"bearer":[]}], "responses": { "200": { "description": "collections" } } } },
    "/api/debug/mongo/guild-config/{guildId}": { "get": { "summary": "Probe guild configuration collections", "security": [{"bearer":[]}], "responses": { "200": { "description": "probe result" } } } },
    "/api/dev-db/collections": { "get": { "summary": "Allowed collections", "security": [{"bearer":[]}], "responses": { "200": { "description": "collections" }, "403": { "description": "admin disabled" } } } },
    "/api/dev-db/{collection}/documents": {
      "get": { "summary": "List documents", "security": [{"bearer":[]}], "parameters": [ {"name":"filter","in":"query","schema":{"type":"string"}}, {"name":"sort","in":"query","schema":{"type":"string"}}, {"name":"projection","in":"query","schema":{"type":"string"}}, {"name":"limit","in":"query","schema":{"type":"integer"}}, {"name":"skip","in":"query","schema":{"type":"integer"}} ], "responses": { "200": { "description": "page" } } },
      "post": { "summary": "Insert a document", "security": [{"bearer":[]}], "responses": { "201": { "description": "created" } } }
    },
    "/api/dev-db/{collection}/documents/{id}": {
      "get": { "summary": "Get by id", "security": [{"bearer":[]}], "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } },
      "patch": { "summary": "Patch by id", "security": [{"bearer":[]}], "responses": { "200": { "description": "document" } } },
      "put": { "summary": "Replace by id", "security": [{"bearer":[]}], "responses": { "200": { "description": "document" } } },
      "delete": { "summary": "Delete by id", "security": [{"bearer":[]}], "responses": { "200": { "description": "deleted" } } }
    },
    "/api/dev-db/{collection}/by-guild/{guildId}": {
      "get": { "summary": "Get by guildId", "security": [{"bearer":[]}], "responses": { "200": { "description": "document" } } },
      "put": { "summary": "Upsert by guildId", "security": [{"bearer":[]}], "responses": { "200": { "description": "document" } } }
    },
    "/api/dev-db/{collection}/by-user/{guildId}/{userId}": {
      "get": { "summary": "Get by guildId and userId", "security": [{"bearer":[]}], "responses": { "200": { "description": "document" } } },
      "put": { "summary": "Upsert by guildId and userId", "security": [{"bearer":[]}], "responses": { "200": { "description": "document" } } }
    },
    "/api/dev-db/{collection}/export": { "post": { "summary": "Export matching documents to object storage", "security": [{"bearer":[]}], "responses": { "200": { "description": "presigned download" } } } },
    "/ping": { "get": { "summary": "Ping", "responses": { "200": { "description": "ok" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
