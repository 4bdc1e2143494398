package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers Swagger/OpenAPI endpoints for the dev backend.
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
    <title>readinggroup devbackend - Swagger</title>
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

// OpenAPI document for the dev backend surface.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "readinggroup-devbackend", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } }
  },
  "paths": {
    "/auth/login": {
      "post": {
        "summary": "Password login",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["username","password"],"properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "tokens, or otpRequired with userId" }, "401": { "description": "bad credentials" } }
      }
    },
    "/auth/verify-otp": {
      "post": {
        "summary": "Second factor",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["userId","code"],"properties":{"userId":{"type":"string"},"code":{"type":"string"}}}}}},
        "responses": { "200": { "description": "tokens returned" }, "401": { "description": "invalid code" } }
      }
    },
    "/auth/refresh": {
      "post": { "summary": "Refresh access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "access_token and expires_in" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout, drop the refresh session and revoke the bearer token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/api/v1/me": {
      "get": { "summary": "Current user", "security": [{"bearer": []}], "responses": { "200": { "description": "userId, username, userType" }, "401": { "description": "missing, invalid, expired or revoked token" } } }
    },
    "/api/v1/admin/stats": {
      "get": { "summary": "Admin-only probe", "security": [{"bearer": []}], "responses": { "200": { "description": "stats" }, "401": { "description": "not authenticated" }, "403": { "description": "not an admin" } } }
    },
    "/api/v1/media": {
      "post": { "summary": "Upload a file", "security": [{"bearer": []}], "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"file":{"type":"string","format":"binary"}}}}}}, "responses": { "201": { "description": "stored object" } } }
    },
    "/api/v1/media/{key}": {
      "get": { "summary": "Download an uploaded file", "security": [{"bearer": []}], "parameters": [{"name":"key","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "file content" }, "404": { "description": "unknown key" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
