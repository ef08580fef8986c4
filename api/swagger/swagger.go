package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Clinic Queue API",
        "description": "Appointment slots, walk-in tokens and live queue management for clinics",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and sessions"},
        {"name": "Users", "description": "User administration"},
        {"name": "Clinics", "description": "Clinic tenants"},
        {"name": "Doctors", "description": "Doctor roster and consultation status"},
        {"name": "Availability", "description": "Weekly plans, extensions and leave"},
        {"name": "Bookings", "description": "Advance bookings and walk-in tokens"},
        {"name": "Queue", "description": "Live queue views and the status sweep"},
        {"name": "Exports", "description": "Queue sheet exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens issued", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "Tokens rotated", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/doctors/{id}/status": {
            "patch": {
                "tags": ["Doctors"],
                "summary": "Switch consultation status",
                "description": "Records OUT, IN, BREAK or DONE and repropagates queue delay",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Delay after the switch", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/doctors/{id}/next-slot": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Earliest bookable slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Slot offer", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "No slot in the booking window", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/doctors/{id}/slots": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Slot grid for a doctor-day",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Grid with occupancy flags", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/doctors/{id}/queue": {
            "get": {
                "tags": ["Queue"],
                "summary": "Live queue for a doctor-day",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Ordered queue snapshot", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/appointments": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Create advance booking",
                "responses": {
                    "201": {"description": "Appointment with A token", "schema": {"$ref": "#/definitions/Envelope"}},
                    "409": {"description": "Slot race lost", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/appointments/walk-in": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Issue walk-in token",
                "responses": {
                    "201": {"description": "Appointment with W token", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/queue/sweep": {
            "post": {
                "tags": ["Queue"],
                "summary": "Run the status sweep now",
                "parameters": [
                    {"name": "date", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Applied transition count", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "Envelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
