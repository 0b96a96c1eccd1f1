package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Tutoring Center API",
        "description": "Enrollment lifecycle and session scheduling engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Holidays", "description": "Blackout date management"},
        {"name": "Enrollments", "description": "Lesson block lifecycle"},
        {"name": "Sessions", "description": "Session state machine"},
        {"name": "Extensions", "description": "Deadline extension workflow"},
        {"name": "Makeups", "description": "Make-up proposal workflow"},
        {"name": "Renewals", "description": "Renewal tracker report"}
    ],
    "paths": {
        "/holidays": {
            "get": {
                "tags": ["Holidays"],
                "summary": "List holidays",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Holidays"],
                "summary": "Add a holiday",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateHolidayRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/holidays/{id}": {
            "delete": {
                "tags": ["Holidays"],
                "summary": "Remove a holiday",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "tutorId", "in": "query", "type": "string"},
                    {"name": "kind", "in": "query", "type": "string"},
                    {"name": "paymentStatus", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Create an enrollment and its sessions",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEnrollmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict detected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/preview": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Preview expansion without writing",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEnrollmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Enrollment detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/confirm-payment": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Confirm payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/cancel": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Cancel an enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/renew": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Create a successor enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RenewEnrollmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already renewed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions",
                "parameters": [
                    {"name": "enrollmentId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "tutorId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Session detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Sessions"],
                "summary": "Apply a state transition",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition or conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Deadline exceeded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/extension-requests": {
            "get": {
                "tags": ["Extensions"],
                "summary": "List extension requests",
                "parameters": [
                    {"name": "enrollmentId", "in": "query", "type": "string"},
                    {"name": "sessionId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Extensions"],
                "summary": "Open an extension request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExtensionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/extension-requests/{id}/approve": {
            "patch": {
                "tags": ["Extensions"],
                "summary": "Approve an extension request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApproveExtensionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already resolved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/extension-requests/{id}/reject": {
            "patch": {
                "tags": ["Extensions"],
                "summary": "Reject an extension request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectExtensionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already resolved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/makeup-proposals": {
            "get": {
                "tags": ["Makeups"],
                "summary": "List make-up proposals",
                "parameters": [
                    {"name": "sessionId", "in": "query", "type": "string"},
                    {"name": "tutorId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Makeups"],
                "summary": "Open a make-up proposal",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProposalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Active proposal exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/makeup-proposals/{id}": {
            "get": {
                "tags": ["Makeups"],
                "summary": "Proposal detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/makeup-proposals/{id}/book": {
            "post": {
                "tags": ["Makeups"],
                "summary": "Resolve a needs-input proposal directly",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookMakeupRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already resolved or conflicting", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/makeup-proposals/slots/{id}/approve": {
            "patch": {
                "tags": ["Makeups"],
                "summary": "Approve a proposal slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the target tutor", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already resolved or conflicting", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/makeup-proposals/slots/{id}/reject": {
            "patch": {
                "tags": ["Makeups"],
                "summary": "Reject a proposal slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectSlotRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the target tutor", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/renewals": {
            "get": {
                "tags": ["Renewals"],
                "summary": "Renewal tracker report",
                "parameters": [
                    {"name": "lookbackDays", "in": "query", "type": "integer"},
                    {"name": "lookaheadDays", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/renewals/export": {
            "get": {
                "tags": ["Renewals"],
                "summary": "Download the renewal tracker report",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string"},
                    {"name": "lookbackDays", "in": "query", "type": "integer"},
                    {"name": "lookaheadDays", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        }
    },
    "definitions": {
        "CreateHolidayRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "label": {"type": "string"}
            },
            "required": ["date", "label"]
        },
        "CreateEnrollmentRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "tutor_id": {"type": "string"},
                "kind": {"type": "string", "enum": ["REGULAR", "TRIAL", "ONE_TIME"]},
                "weekly_day": {"type": "integer"},
                "time_slot": {"type": "string"},
                "location": {"type": "string"},
                "start_date": {"type": "string"},
                "lessons_paid": {"type": "integer"},
                "notes": {"type": "string"}
            },
            "required": ["student_id", "tutor_id", "kind", "time_slot", "location", "start_date", "lessons_paid"]
        },
        "RenewEnrollmentRequest": {
            "type": "object",
            "properties": {
                "start_date": {"type": "string"},
                "lessons_paid": {"type": "integer"},
                "notes": {"type": "string"}
            },
            "required": ["start_date", "lessons_paid"]
        },
        "TransitionRequest": {
            "type": "object",
            "properties": {
                "action": {"type": "string", "enum": ["mark_attendance", "pending_makeup", "cancel", "reschedule"]},
                "status": {"type": "string", "enum": ["ATTENDED", "ATTENDED_MAKEUP", "NO_SHOW"]},
                "cause": {"type": "string", "enum": ["RESCHEDULE", "SICK_LEAVE", "WEATHER"]},
                "date": {"type": "string"},
                "time_slot": {"type": "string"},
                "location": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["action"]
        },
        "CreateExtensionRequest": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "requested_weeks": {"type": "integer"},
                "reason": {"type": "string"},
                "proposed_date": {"type": "string"},
                "proposed_time_slot": {"type": "string"}
            },
            "required": ["session_id", "requested_weeks", "reason"]
        },
        "ApproveExtensionRequest": {
            "type": "object",
            "properties": {
                "granted_weeks": {"type": "integer"},
                "review_note": {"type": "string"}
            }
        },
        "RejectExtensionRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            },
            "required": ["reason"]
        },
        "CreateProposalRequest": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "mode": {"type": "string", "enum": ["SPECIFIC_SLOTS", "NEEDS_INPUT"]},
                "slots": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ProposalSlotInput"}
                }
            },
            "required": ["session_id", "mode"]
        },
        "ProposalSlotInput": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "time_slot": {"type": "string"},
                "tutor_id": {"type": "string"},
                "location": {"type": "string"}
            },
            "required": ["date", "time_slot", "tutor_id", "location"]
        },
        "RejectSlotRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "BookMakeupRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "time_slot": {"type": "string"},
                "location": {"type": "string"}
            },
            "required": ["date", "time_slot", "location"]
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
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
