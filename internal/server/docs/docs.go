// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "compliscan maintainers",
            "url": "https://github.com/raysh454/compliscan"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "AccountID": {"type": "apiKey", "name": "X-Account-ID", "in": "header"}
    },
    "security": [{"AccountID": []}],
    "paths": {
        "/urls": {
            "get": {"summary": "List scan targets", "tags": ["urls"], "responses": {"200": {"description": "OK"}}},
            "post": {
                "summary": "Register a scan target",
                "tags": ["urls"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/server.CreateTargetRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}}
            }
        },
        "/urls/{urlID}": {
            "get": {"summary": "Get a scan target", "tags": ["urls"], "parameters": [{"in": "path", "name": "urlID", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}}}
        },
        "/urls/{urlID}/scans": {
            "get": {"summary": "Scan history of a target, newest first", "tags": ["scans"], "parameters": [{"in": "path", "name": "urlID", "type": "string", "required": true}, {"in": "query", "name": "limit", "type": "integer"}], "responses": {"200": {"description": "OK"}}},
            "post": {
                "summary": "Start a scan",
                "tags": ["scans"],
                "parameters": [{"in": "path", "name": "urlID", "type": "string", "required": true}, {"in": "body", "name": "body", "schema": {"$ref": "#/definitions/server.StartScanRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}, "409": {"description": "A scan is already in progress", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}}
            }
        },
        "/scans": {
            "get": {"summary": "Recent scans requested by the caller", "tags": ["scans"], "parameters": [{"in": "query", "name": "limit", "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/scans/{scanID}": {
            "get": {"summary": "Get a scan", "tags": ["scans"], "parameters": [{"in": "path", "name": "scanID", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}}}
        },
        "/scans/{scanID}/cancel": {
            "post": {"summary": "Cancel an active scan", "tags": ["scans"], "parameters": [{"in": "path", "name": "scanID", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Scan already finished", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}}}
        },
        "/scans/{scanID}/compare": {
            "get": {"summary": "Compare with the previous completed scan", "tags": ["scans"], "parameters": [{"in": "path", "name": "scanID", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "No earlier scan", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}}}
        },
        "/scheduled-scans": {
            "get": {"summary": "List scheduled scans", "tags": ["scheduled-scans"], "responses": {"200": {"description": "OK"}}},
            "post": {"summary": "Create a scheduled scan", "tags": ["scheduled-scans"], "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/server.ScheduleRequest"}}], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}}}
        },
        "/scheduled-scans/{id}": {
            "get": {"summary": "Get a scheduled scan", "tags": ["scheduled-scans"], "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}},
            "put": {"summary": "Replace the rule of a scheduled scan", "tags": ["scheduled-scans"], "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/server.ScheduleRequest"}}], "responses": {"200": {"description": "OK"}}},
            "delete": {"summary": "Delete a scheduled scan", "tags": ["scheduled-scans"], "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"204": {"description": "No Content"}}}
        },
        "/scheduled-scans/{id}/toggle": {
            "patch": {"summary": "Pause or resume a scheduled scan", "tags": ["scheduled-scans"], "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/server.ToggleRequest"}}], "responses": {"200": {"description": "OK"}}}
        },
        "/scheduled-scans/{id}/preview": {
            "get": {"summary": "Next fire times", "tags": ["scheduled-scans"], "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "query", "name": "n", "type": "integer"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.PreviewResponse"}}}}
        },
        "/websites": {
            "get": {"summary": "List monitored websites", "tags": ["websites"], "responses": {"200": {"description": "OK"}}},
            "post": {"summary": "Monitor a website", "tags": ["websites"], "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/server.CreateWebsiteRequest"}}], "responses": {"201": {"description": "Created"}, "409": {"description": "URL already monitored", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}}}
        },
        "/websites/stats": {
            "get": {"summary": "Monitoring totals", "tags": ["websites"], "responses": {"200": {"description": "OK"}}}
        },
        "/websites/{id}": {
            "get": {"summary": "Get a website", "tags": ["websites"], "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}},
            "delete": {"summary": "Stop monitoring a website", "tags": ["websites"], "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"204": {"description": "No Content"}}}
        },
        "/websites/{id}/toggle": {
            "patch": {"summary": "Pause or resume monitoring", "tags": ["websites"], "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/server.ToggleRequest"}}], "responses": {"200": {"description": "OK"}}}
        },
        "/websites/{id}/check": {
            "post": {"summary": "Probe a website now", "tags": ["websites"], "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/websites/{id}/checks": {
            "get": {"summary": "Check history", "tags": ["websites"], "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "query", "name": "limit", "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/ws/events": {
            "get": {"summary": "WebSocket stream of scan and monitor events", "tags": ["events"], "responses": {"101": {"description": "Switching Protocols"}}}
        }
    },
    "definitions": {
        "server.CreateTargetRequest": {"type": "object", "properties": {"url": {"type": "string", "example": "https://example.com"}, "name": {"type": "string", "example": "Marketing site"}, "projectId": {"type": "string"}}},
        "server.StartScanRequest": {"type": "object", "properties": {"scanOptions": {"$ref": "#/definitions/model.ScanOptions"}}},
        "server.ScheduleRequest": {"type": "object", "properties": {"urlId": {"type": "string"}, "frequency": {"type": "string", "enum": ["daily", "weekly", "monthly"]}, "time": {"type": "string", "example": "09:00"}, "dayOfWeek": {"type": "integer"}, "dayOfMonth": {"type": "integer"}, "timezone": {"type": "string", "example": "Europe/Berlin"}, "scanOptions": {"$ref": "#/definitions/model.ScanOptions"}, "isActive": {"type": "boolean"}}},
        "server.CreateWebsiteRequest": {"type": "object", "properties": {"name": {"type": "string", "example": "Shop"}, "url": {"type": "string", "example": "https://shop.example.com"}, "interval": {"type": "string", "enum": ["1min", "5min", "30min"]}}},
        "server.ToggleRequest": {"type": "object", "properties": {"isActive": {"type": "boolean"}}},
        "server.PreviewResponse": {"type": "object", "properties": {"runs": {"type": "array", "items": {"type": "string", "format": "date-time"}}}},
        "server.ErrorResponse": {"type": "object", "properties": {"error": {"type": "object", "properties": {"code": {"type": "string", "example": "VALIDATION_ERROR"}, "message": {"type": "string"}}}}},
        "model.ScanOptions": {"type": "object", "properties": {"gdpr": {"type": "boolean"}, "accessibility": {"type": "boolean"}, "security": {"type": "boolean"}, "performance": {"type": "boolean"}, "seo": {"type": "boolean"}, "customRules": {"type": "array", "items": {"type": "string"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "compliscan API",
	Description:      "Website compliance scans, scheduled scans and uptime monitoring.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
