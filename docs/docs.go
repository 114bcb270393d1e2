// Package docs is generated by swaggo/swag from the handler annotations.
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
        "/admin/context": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Returns the region an admin request is confined to, if any.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Current admin scope",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.ContextResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/ready": {
            "get": {
                "description": "Pings the tenant directory and cache.",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/store/context": {
            "get": {
                "description": "Returns the tenant resolved for this request and the region filter storefront queries must apply.",
                "produces": ["application/json"],
                "tags": ["Store"],
                "summary": "Current storefront tenant",
                "parameters": [
                    {"type": "string", "description": "Tenant API key", "name": "X-API-Key", "in": "header"},
                    {"type": "string", "description": "Subdomain override", "name": "X-Tenant-Subdomain", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.ContextResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.ContextResponse": {
            "type": "object",
            "properties": {
                "filter": {"type": "object", "additionalProperties": true},
                "principal_id": {"type": "string"},
                "scoped": {"type": "boolean"},
                "source": {"type": "string"},
                "tenant": {"$ref": "#/definitions/model.TenantContext"}
            }
        },
        "api.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "model.TenantContext": {
            "type": "object",
            "properties": {
                "business_name": {"type": "string"},
                "custom_domain": {"type": "string"},
                "metadata": {"type": "object", "additionalProperties": true},
                "region_id": {"type": "string"},
                "status": {"type": "string"},
                "subdomain": {"type": "string"},
                "tenant_id": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Tenant Scope API",
	Description:      "Resolves the tenant for each request and confines it to the tenant's region",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
