package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ClassBank API",
        "description": "Classroom token economy platform",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Teacher and student authentication"},
        {"name": "Classrooms", "description": "Classroom economies and treasury"},
        {"name": "Market", "description": "Reward catalog and dynamic pricing"},
        {"name": "Requests", "description": "Purchase and transfer approvals"},
        {"name": "Transactions", "description": "Wallets, history and leaderboard"},
        {"name": "Savings", "description": "Term deposits"},
        {"name": "Streaks", "description": "Activity streaks and milestone bonuses"},
        {"name": "Badges", "description": "Achievement badges"},
        {"name": "Indicators", "description": "Economic health dashboard"},
        {"name": "Exports", "description": "Wallet statement exports"}
    ],
    "paths": {
        "/auth/teachers/register": {
            "post": {"tags": ["Auth"], "summary": "Register a teacher account", "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/auth/teachers/login": {
            "post": {"tags": ["Auth"], "summary": "Teacher login", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/auth/students/join": {
            "post": {"tags": ["Auth"], "summary": "Join a classroom with a code, name and PIN", "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/auth/students/login": {
            "post": {"tags": ["Auth"], "summary": "Student login", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/classrooms": {
            "get": {"tags": ["Classrooms"], "summary": "List the teacher's classrooms", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "post": {"tags": ["Classrooms"], "summary": "Open a new classroom economy", "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/classrooms/{id}": {
            "get": {
                "tags": ["Classrooms"],
                "summary": "Get classroom detail",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/settings": {
            "put": {
                "tags": ["Classrooms"],
                "summary": "Update classroom settings",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/students": {
            "get": {
                "tags": ["Classrooms"],
                "summary": "List classroom members with balances",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/students/{studentId}": {
            "delete": {
                "tags": ["Classrooms"],
                "summary": "Deactivate a classroom member",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/classrooms/{id}/awards": {
            "post": {
                "tags": ["Classrooms"],
                "summary": "Award treasury coins to students",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/refunds": {
            "post": {
                "tags": ["Classrooms"],
                "summary": "Refund treasury coins to a student",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/items": {
            "get": {
                "tags": ["Market"],
                "summary": "List market items",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Market"],
                "summary": "Add an item to the classroom market",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/items/{itemId}": {
            "put": {
                "tags": ["Market"],
                "summary": "Edit a market item",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "itemId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/items/{itemId}/contributions": {
            "post": {
                "tags": ["Market"],
                "summary": "Contribute coins to a collective goal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "itemId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/pricing/recalculate": {
            "post": {
                "tags": ["Market"],
                "summary": "Run a dynamic pricing pass",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/purchase-requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List purchase requests",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Submit a purchase request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/purchase-requests/{requestId}/approve": {
            "post": {
                "tags": ["Requests"],
                "summary": "Approve and settle a purchase request",
                "parameters": [{"name": "requestId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/purchase-requests/{requestId}/reject": {
            "post": {
                "tags": ["Requests"],
                "summary": "Reject a purchase request",
                "parameters": [{"name": "requestId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/purchase-requests/{requestId}/cancel": {
            "post": {
                "tags": ["Requests"],
                "summary": "Cancel an own pending purchase request",
                "parameters": [{"name": "requestId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/transfer-requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List transfer requests",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Submit a peer transfer request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/transfer-requests/{requestId}/approve": {
            "post": {
                "tags": ["Requests"],
                "summary": "Approve and settle a transfer request",
                "parameters": [{"name": "requestId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/transfer-requests/{requestId}/reject": {
            "post": {
                "tags": ["Requests"],
                "summary": "Reject a transfer request",
                "parameters": [{"name": "requestId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/transfer-requests/{requestId}/cancel": {
            "post": {
                "tags": ["Requests"],
                "summary": "Cancel an own pending transfer request",
                "parameters": [{"name": "requestId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/wallet": {
            "get": {"tags": ["Transactions"], "summary": "Get the caller's wallet", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/classrooms/{id}/transactions": {
            "get": {
                "tags": ["Transactions"],
                "summary": "List classroom transactions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "wallet_id", "in": "query", "type": "string"},
                    {"name": "types", "in": "query", "type": "string"},
                    {"name": "since", "in": "query", "type": "string"},
                    {"name": "until", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/leaderboard": {
            "get": {
                "tags": ["Transactions"],
                "summary": "Ranked wallet balances for a classroom",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/savings/rates": {
            "get": {
                "tags": ["Savings"],
                "summary": "List active savings rate tiers",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Savings"],
                "summary": "Publish a savings rate tier",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/savings/rates/{rateId}": {
            "delete": {
                "tags": ["Savings"],
                "summary": "Retire a savings rate tier",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "rateId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/classrooms/{id}/savings/accounts": {
            "post": {
                "tags": ["Savings"],
                "summary": "Open a term deposit",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/savings/accounts": {
            "get": {"tags": ["Savings"], "summary": "List the caller's deposits", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/savings/accounts/{accountId}/withdraw": {
            "post": {
                "tags": ["Savings"],
                "summary": "Withdraw a term deposit (with interest once matured)",
                "parameters": [{"name": "accountId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/streaks/activities": {
            "post": {
                "tags": ["Streaks"],
                "summary": "Record a student activity for streak tracking",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/streaks/rewards": {
            "get": {
                "tags": ["Streaks"],
                "summary": "List streak milestone rewards",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/streaks": {
            "get": {"tags": ["Streaks"], "summary": "List the caller's streaks", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/classrooms/{id}/badges": {
            "get": {
                "tags": ["Badges"],
                "summary": "List classroom badges",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Badges"],
                "summary": "Define a badge",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/badges/{badgeId}/students/{studentId}": {
            "post": {
                "tags": ["Badges"],
                "summary": "Manually award a badge to a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "badgeId", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/badges": {
            "get": {"tags": ["Badges"], "summary": "List the caller's unlocked badges", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/classrooms/{id}/indicators": {
            "get": {
                "tags": ["Indicators"],
                "summary": "Economic indicators for a classroom",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/exports/statements": {
            "post": {
                "tags": ["Exports"],
                "summary": "Generate a wallet statement export",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a generated export",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_items": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
