// Package docs registers the OpenAPI description served at /api/swagger.
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
        "/borrow": {
            "get": {
                "produces": ["application/json"],
                "tags": ["borrow"],
                "summary": "List borrow requests, newest first",
                "parameters": [
                    {"type": "string", "description": "pending, approved, rejected or returned", "name": "status", "in": "query"},
                    {"type": "string", "description": "borrower identifier", "name": "borrower_id", "in": "query"},
                    {"type": "integer", "description": "page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "page offset", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["borrow"],
                "summary": "Submit a borrow application",
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/borrow/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["borrow"],
                "summary": "Count borrow requests per status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.BorrowStats"}}}
            }
        },
        "/borrow/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["borrow"],
                "summary": "Get one borrow request",
                "parameters": [{"type": "integer", "description": "request ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.borrowRecord"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["borrow"],
                "summary": "Edit the borrower details of a pending or approved request",
                "parameters": [{"type": "integer", "description": "request ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.borrowRecord"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["borrow"],
                "summary": "Delete a rejected request",
                "parameters": [{"type": "integer", "description": "request ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/borrow/{id}/approve": {
            "post": {
                "produces": ["application/json"],
                "tags": ["borrow"],
                "summary": "Approve a pending request and mark its asset borrowed",
                "parameters": [{"type": "integer", "description": "request ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.borrowRecord"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/borrow/{id}/reject": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["borrow"],
                "summary": "Reject a pending request with a reason",
                "parameters": [{"type": "integer", "description": "request ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.borrowRecord"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/borrow/{id}/return": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["borrow"],
                "summary": "Record the return of an approved request",
                "parameters": [{"type": "integer", "description": "request ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.borrowRecord"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/assets": {
            "get": {
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "List assets by serial number",
                "parameters": [
                    {"type": "string", "description": "asset status", "name": "status", "in": "query"},
                    {"type": "string", "description": "search serial, name or department", "name": "q", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "Register an asset",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Asset"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/assets/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "Count assets per status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.AssetStats"}}}
            }
        },
        "/assets/{serial}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "Get an asset by serial number",
                "parameters": [{"type": "string", "description": "serial number", "name": "serial", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Asset"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/assets/{serial}/status": {
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "Set an asset's manual status",
                "parameters": [{"type": "string", "description": "serial number", "name": "serial", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Asset"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "details": {"type": "array", "items": {"type": "string"}}
            }
        },
        "models.Asset": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "serial_number": {"type": "string"},
                "name": {"type": "string"},
                "department_name": {"type": "string"},
                "status": {"type": "string", "enum": ["active", "borrowed", "maintenance", "inactive"]},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.AssetStats": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "active": {"type": "integer"},
                "borrowed": {"type": "integer"},
                "maintenance": {"type": "integer"},
                "inactive": {"type": "integer"}
            }
        },
        "models.BorrowStats": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "pending": {"type": "integer"},
                "approved": {"type": "integer"},
                "rejected": {"type": "integer"},
                "returned": {"type": "integer"}
            }
        },
        "server.borrowRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "asset_id": {"type": "integer"},
                "serial_number": {"type": "string"},
                "asset_name": {"type": "string"},
                "borrower_id": {"type": "string"},
                "borrower_name": {"type": "string"},
                "borrower_email": {"type": "string"},
                "borrower_department": {"type": "string"},
                "borrower_contact": {"type": "string"},
                "requested_date": {"type": "string"},
                "expected_return_date": {"type": "string"},
                "actual_return_date": {"type": "string"},
                "purpose": {"type": "string"},
                "notes": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "approved", "rejected", "returned"]},
                "rejection_reason": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "2.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "MCC Asset Lending API",
	Description:      "Asset registry and borrow request lifecycle.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
