package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Hearing Attendance API",
        "description": "Attendance verification, reminders and escalation for court hearings",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Attendance", "description": "Self-service marking, liaison overrides and absence reasons"},
        {"name": "Hearings", "description": "Scheduling, rosters and printable codes"},
        {"name": "Notifications", "description": "In-app inbox"}
    ],
    "paths": {
        "/attendance/mark": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark own attendance with a hearing code",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Already marked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Marked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not on the roster"},
                    "404": {"description": "Invalid code or case"},
                    "429": {"description": "Too many failed attempts"},
                    "503": {"description": "Store unavailable"}
                }
            }
        },
        "/attendance/scan": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark attendance from a scanned QR code",
                "description": "Anonymous callers must send witnessId and witnessName.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Already marked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Marked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Invalid code or case"}
                }
            }
        },
        "/attendance/records/{id}/override": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark a pending record on an attendee's behalf",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OverrideAttendanceRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/attendance/records/{id}/absence-reason": {
            "put": {
                "tags": ["Attendance"],
                "summary": "Explain an absence",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AbsenceReasonRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Record belongs to another attendee"},
                    "409": {"description": "Record is not absent"}
                }
            }
        },
        "/hearings": {
            "post": {
                "tags": ["Hearings"],
                "summary": "Schedule a hearing with its roster",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleHearingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Hearing already scheduled for that case and date"}
                }
            }
        },
        "/hearings/{id}": {
            "get": {
                "tags": ["Hearings"],
                "summary": "Get a hearing with its roster",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/hearings/{id}/status": {
            "patch": {
                "tags": ["Hearings"],
                "summary": "Move a hearing along its lifecycle",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateHearingStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Transition not allowed"}
                }
            }
        },
        "/hearings/{id}/attendance": {
            "get": {
                "tags": ["Hearings"],
                "summary": "List attendance records of a hearing",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/hearings/{id}/attendance.csv": {
            "get": {
                "tags": ["Hearings"],
                "summary": "Download the roster as CSV",
                "security": [{"Bearer": []}],
                "produces": ["text/csv"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "CSV file"}}
            }
        },
        "/hearings/{id}/sheet.pdf": {
            "get": {
                "tags": ["Hearings"],
                "summary": "Download the printable attendance sheet",
                "security": [{"Bearer": []}],
                "produces": ["application/pdf"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "PDF file"}}
            }
        },
        "/hearings/{id}/qr.png": {
            "get": {
                "tags": ["Hearings"],
                "summary": "Render the hearing QR code",
                "security": [{"Bearer": []}],
                "produces": ["image/png"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "PNG image"}}
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List my notifications",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "unread", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/notifications/unread-count": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Count my unread notifications",
                "security": [{"Bearer": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/notifications/{id}/read": {
            "patch": {
                "tags": ["Notifications"],
                "summary": "Mark a notification read",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Read"}, "404": {"description": "Not found"}}
            }
        }
    },
    "definitions": {
        "GeoPoint": {
            "type": "object",
            "properties": {
                "lat": {"type": "number"},
                "lng": {"type": "number"}
            }
        },
        "MarkAttendanceRequest": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["code", "qr"]},
                "caseId": {"type": "string"},
                "hearingDate": {"type": "string", "format": "date"},
                "code": {"type": "string"},
                "qrData": {"type": "string"},
                "location": {"$ref": "#/definitions/GeoPoint"},
                "witnessId": {"type": "string"},
                "witnessName": {"type": "string"}
            }
        },
        "OverrideAttendanceRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["present", "late"]}}
        },
        "AbsenceReasonRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {"reason": {"type": "string"}}
        },
        "RosterEntry": {
            "type": "object",
            "required": ["attendeeId", "role"],
            "properties": {
                "attendeeId": {"type": "string"},
                "role": {"type": "string", "enum": ["officer", "witness"]}
            }
        },
        "ScheduleHearingRequest": {
            "type": "object",
            "required": ["caseId", "hearingDate", "hearingTime", "courtName", "roster"],
            "properties": {
                "caseId": {"type": "string"},
                "hearingDate": {"type": "string", "format": "date"},
                "hearingTime": {"type": "string", "example": "10:30"},
                "courtName": {"type": "string"},
                "location": {"type": "string"},
                "roster": {"type": "array", "items": {"$ref": "#/definitions/RosterEntry"}}
            }
        },
        "UpdateHearingStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["scheduled", "in_progress", "completed", "cancelled"]}}
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
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
