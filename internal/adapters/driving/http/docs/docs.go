// Package docs holds the OpenAPI document served at /openapi.json.
// Keep it in step with the godoc annotations on the HTTP handlers.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Service banner",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.StatusResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Returns the health status of the API",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.StatusResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "description": "Ready once the answer pipeline is loaded and the index store responds",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.StatusResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/version": {
            "get": {
                "description": "Returns the current API version",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Get API version",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.VersionResponse"}}
                }
            }
        },
        "/ask": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Answers from the indexed documents only, citing the passages used",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["FAQ"],
                "summary": "Ask a question",
                "parameters": [
                    {
                        "description": "Question",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.AskRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.AskResponse"}},
                    "400": {"description": "Malformed body or empty query", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "401": {"description": "Missing or invalid token", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "500": {"description": "Pipeline failure", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.SourceDocument": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "metadata": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "http.AskRequest": {
            "description": "Question to answer from the indexed documents",
            "type": "object",
            "properties": {
                "query": {"type": "string", "example": "What is the capital of Wonderland?"}
            }
        },
        "http.AskResponse": {
            "description": "Generated answer and its source passages",
            "type": "object",
            "properties": {
                "answer": {"type": "string", "example": "The capital of Wonderland is Elsewhere."},
                "source_documents": {"type": "array", "items": {"$ref": "#/definitions/domain.SourceDocument"}}
            }
        },
        "http.ErrorResponse": {
            "description": "API error response",
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "query must not be empty"}
            }
        },
        "http.StatusResponse": {
            "description": "Simple status response",
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"}
            }
        },
        "http.VersionResponse": {
            "description": "API version response",
            "type": "object",
            "properties": {
                "version": {"type": "string", "example": "1.0.0"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "API token issued by faqbot token, as 'Bearer <token>'",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "faqbot API",
	Description:      "Answers questions from a private document collection, grounded in retrieved passages.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
