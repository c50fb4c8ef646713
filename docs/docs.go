// Package docs registers the StayBook OpenAPI document with swag.
// Regenerate with: swag init -g server/main.go
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
        "/rooms": {
            "get": {
                "tags": ["rooms"],
                "summary": "List rooms",
                "parameters": [
                    {"type": "string", "description": "single, double, suite or deluxe", "name": "type", "in": "query"},
                    {"type": "number", "description": "inclusive lower price bound", "name": "min_price", "in": "query"},
                    {"type": "number", "description": "inclusive upper price bound", "name": "max_price", "in": "query"},
                    {"type": "integer", "description": "minimum capacity", "name": "min_capacity", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}}
                }
            }
        },
        "/rooms/{id}": {
            "get": {
                "tags": ["rooms"],
                "summary": "Get a room",
                "parameters": [
                    {"type": "string", "description": "room id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}}
                }
            }
        },
        "/rooms/{id}/availability": {
            "get": {
                "tags": ["search"],
                "summary": "Free date windows for a room",
                "parameters": [
                    {"type": "string", "description": "room id", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "horizon start, YYYY-MM-DD", "name": "check_in", "in": "query", "required": true},
                    {"type": "string", "description": "horizon end, YYYY-MM-DD, exclusive", "name": "check_out", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}}
                }
            }
        },
        "/search": {
            "get": {
                "description": "Rooms matching the filter with no held or confirmed reservation overlapping the stay",
                "tags": ["search"],
                "summary": "Search rooms free for a stay",
                "parameters": [
                    {"type": "string", "description": "YYYY-MM-DD", "name": "check_in", "in": "query", "required": true},
                    {"type": "string", "description": "YYYY-MM-DD, exclusive", "name": "check_out", "in": "query", "required": true},
                    {"type": "string", "description": "single, double, suite or deluxe", "name": "type", "in": "query"},
                    {"type": "number", "description": "inclusive lower price bound", "name": "min_price", "in": "query"},
                    {"type": "number", "description": "inclusive upper price bound", "name": "max_price", "in": "query"},
                    {"type": "integer", "description": "minimum capacity", "name": "min_capacity", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}}
                }
            }
        },
        "/admin/rooms/{id}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Create or replace a room",
                "parameters": [
                    {"type": "string", "description": "room id", "name": "id", "in": "path", "required": true},
                    {"description": "room attributes", "name": "room", "in": "body", "required": true, "schema": {"$ref": "#/definitions/rooms.UpsertRoomRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}}
                }
            }
        },
        "/admin/reservations/sweep": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Expire lapsed holds now",
                "parameters": [
                    {"description": "optional sweep instant", "name": "sweep", "in": "body", "schema": {"$ref": "#/definitions/bookings.SweepRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}}
                }
            }
        },
        "/admin/settlements/refunds": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Payments collected for reservations that did not stand (lapsed during settlement or cancelled after confirmation), oldest first",
                "tags": ["admin"],
                "summary": "List settlements awaiting refund",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}}
                }
            }
        },
        "/bookings": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["bookings"],
                "summary": "List the caller's reservations",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Holds the room, settles the payment token and confirms. A failed settlement releases the hold.",
                "tags": ["bookings"],
                "summary": "Book a room",
                "parameters": [
                    {"description": "booking request", "name": "booking", "in": "body", "required": true, "schema": {"$ref": "#/definitions/bookings.CreateBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}},
                    "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}}
                }
            }
        },
        "/bookings/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["bookings"],
                "summary": "Get one of the caller's reservations",
                "parameters": [
                    {"type": "string", "description": "reservation id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}}
                }
            }
        },
        "/bookings/{id}/cancel": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["bookings"],
                "summary": "Cancel one of the caller's reservations",
                "parameters": [
                    {"type": "string", "description": "reservation id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.StandardApiResponse"}}
                }
            }
        }
    },
    "definitions": {
        "bookings.CreateBookingRequest": {
            "type": "object",
            "required": ["check_in", "check_out", "payment_token", "room_id"],
            "properties": {
                "check_in": {"type": "string"},
                "check_out": {"type": "string"},
                "payment_token": {"type": "string"},
                "room_id": {"type": "string", "maxLength": 64}
            }
        },
        "bookings.SweepRequest": {
            "type": "object",
            "properties": {
                "now": {"type": "string"}
            }
        },
        "rooms.UpsertRoomRequest": {
            "type": "object",
            "required": ["capacity", "name", "nightly_price", "type"],
            "properties": {
                "active": {"type": "boolean"},
                "amenities": {"type": "array", "items": {"type": "string"}},
                "capacity": {"type": "integer"},
                "description": {"type": "string", "maxLength": 2000},
                "images": {"type": "array", "items": {"type": "string"}},
                "name": {"type": "string", "maxLength": 255},
                "nightly_price": {"type": "number"},
                "type": {"type": "string", "enum": ["single", "double", "suite", "deluxe"]}
            }
        },
        "response.StandardApiResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "errors": {},
                "message": {"type": "string"},
                "status": {"type": "string"},
                "status_code": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
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
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "StayBook API",
	Description:      "Room availability and booking ledger behind the StayBook app",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
