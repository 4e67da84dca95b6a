package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LearnHub Learning API",
        "description": "Course progress, quiz grading and completion certificates.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Quizzes", "description": "Quiz grading"},
        {"name": "Progress", "description": "Course progress"},
        {"name": "Enrollments", "description": "Student enrollments"},
        {"name": "Wishlist", "description": "Bookmarked courses"},
        {"name": "Certificates", "description": "Completion certificates"},
        {"name": "Exports", "description": "Course progress exports"}
    ],
    "paths": {
        "/student/submit-quiz": {
            "post": {
                "tags": ["Quizzes"],
                "summary": "Submit quiz answers (legacy)",
                "description": "When a bearer token is sent it must belong to studentId.",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LegacySubmitQuizRequest"}}
                ],
                "responses": {
                    "200": {"description": "Graded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid answers", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Token does not match studentId", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown student, course, item or enrollment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent update retries exhausted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student/courses/{courseId}/content/{contentId}/submit-quiz": {
            "post": {
                "tags": ["Quizzes"],
                "summary": "Submit quiz answers",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "courseId", "required": true, "type": "string"},
                    {"in": "path", "name": "contentId", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SubmitQuizRequest"}}
                ],
                "responses": {
                    "200": {"description": "Graded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid answers", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student/courses/{courseId}/progress": {
            "put": {
                "tags": ["Progress"],
                "summary": "Update course progress",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "courseId", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/UpdateProgressRequest"}}
                ],
                "responses": {
                    "200": {"description": "Stored progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Progress outside 0..100", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student/courses": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List my enrollments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "completed", "type": "boolean"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "page_size", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/student/courses/{courseId}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get my enrollment in a course",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "courseId", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student/courses/{courseId}/enroll": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll in a course",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "courseId", "required": true, "type": "string"}],
                "responses": {
                    "201": {"description": "Enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student/wishlist": {
            "get": {
                "tags": ["Wishlist"],
                "summary": "List bookmarked courses",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/student/wishlist/{courseId}": {
            "post": {
                "tags": ["Wishlist"],
                "summary": "Bookmark a course",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "courseId", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Bookmarked"}}
            },
            "delete": {
                "tags": ["Wishlist"],
                "summary": "Remove a bookmark",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "courseId", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Removed"}, "404": {"description": "Not bookmarked"}}
            }
        },
        "/student/certificates": {
            "get": {
                "tags": ["Certificates"],
                "summary": "List my certificates",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/certificates/{token}": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Download a certificate",
                "produces": ["application/pdf"],
                "parameters": [{"in": "path", "name": "token", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "PDF file", "schema": {"type": "file"}},
                    "403": {"description": "Link expired"},
                    "404": {"description": "Unknown certificate"}
                }
            }
        },
        "/courses/{courseId}/progress/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export course progress",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"in": "path", "name": "courseId", "required": true, "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "xlsx", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Export file", "schema": {"type": "file"}},
                    "403": {"description": "Not allowed to export this course"}
                }
            }
        }
    },
    "definitions": {
        "LegacySubmitQuizRequest": {
            "type": "object",
            "required": ["courseId", "contentItemId", "studentId", "answers"],
            "properties": {
                "courseId": {"type": "string"},
                "contentItemId": {"type": "string"},
                "studentId": {"type": "string"},
                "answers": {"description": "Array by question index or object keyed by question id"}
            }
        },
        "SubmitQuizRequest": {
            "type": "object",
            "required": ["answers"],
            "properties": {"answers": {"type": "array", "items": {}}}
        },
        "UpdateProgressRequest": {
            "type": "object",
            "required": ["progress"],
            "properties": {"progress": {"type": "integer", "minimum": 0, "maximum": 100}}
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
