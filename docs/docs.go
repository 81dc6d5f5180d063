// Package docs holds the OpenAPI document served under /v1/swagger. It
// mirrors the swag annotations on the handlers in cmd/api; regenerate it with
// swag init -g cmd/api/main.go after changing them.
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
        "/health": {
            "get": {
                "description": "Reports whether the document store and the topic registry answer.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "ops"
                ],
                "summary": "Healthcheck",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/users/me": {
            "get": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Users"
                ],
                "summary": "Get the signed-in user",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/users.User"
                                }
                            }
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            },
            "patch": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Changes the name, the email or both. Absent fields are left as they are.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Users"
                ],
                "summary": "Update the signed-in user's profile",
                "parameters": [
                    {
                        "description": "Profile fields",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/main.UpdateProfilePayload"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/users.User"
                                }
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/users/me/push-token": {
            "put": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Stores the caller's Expo push token and moves its venue topic subscriptions over from the previous token.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Notifications"
                ],
                "summary": "Save or replace the device push token",
                "parameters": [
                    {
                        "description": "Push token",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/main.SavePushTokenRequest"
                        }
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/users/me/favorites/{venueID}": {
            "put": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Favorite_Venues"
                ],
                "summary": "Add a venue to favorites",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Venue ID",
                        "name": "venueID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/main.favoritesResponse"
                                }
                            }
                        }
                    },
                    "404": {
                        "description": "Venue not found",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            },
            "delete": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Favorite_Venues"
                ],
                "summary": "Remove a venue from favorites",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Venue ID",
                        "name": "venueID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/main.favoritesResponse"
                                }
                            }
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/venues": {
            "get": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Venues"
                ],
                "summary": "List venues",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Page number",
                        "name": "page",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Items per page",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "type": "object",
                                    "properties": {
                                        "items": {
                                            "type": "array",
                                            "items": {
                                                "$ref": "#/definitions/venues.Venue"
                                            }
                                        },
                                        "pagination": {
                                            "$ref": "#/definitions/params.Pagination"
                                        }
                                    }
                                }
                            }
                        }
                    }
                }
            }
        },
        "/venues/{venueID}": {
            "get": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Returns the venue with the mean of each rating score.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Venues"
                ],
                "summary": "Fetch a venue",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Venue ID",
                        "name": "venueID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/main.venueResponse"
                                }
                            }
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/venues/{venueID}/menu-requests": {
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Venues"
                ],
                "summary": "Propose a menu item",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Venue ID",
                        "name": "venueID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Menu item",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/main.CreateMenuRequestPayload"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/venues.MenuItemRequest"
                                }
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/venues/{venueID}/ratings": {
            "get": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Newest first.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Ratings"
                ],
                "summary": "List a venue's ratings",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Venue ID",
                        "name": "venueID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "Page number",
                        "name": "page",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Items per page",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "type": "object",
                                    "properties": {
                                        "items": {
                                            "type": "array",
                                            "items": {
                                                "$ref": "#/definitions/ratings.Rating"
                                            }
                                        },
                                        "pagination": {
                                            "$ref": "#/definitions/params.Pagination"
                                        }
                                    }
                                }
                            }
                        }
                    }
                }
            },
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Records line, cover and bathroom scores for a venue. Each user may rate a venue once per 30 minutes. Followers of the venue are notified.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Ratings"
                ],
                "summary": "Rate a venue",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Venue ID",
                        "name": "venueID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Scores, at least one",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/main.CreateRatingPayload"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/ratings.Rating"
                                }
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "429": {
                        "description": "Rated this venue too recently",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/suggestions": {
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Stores a pending venue suggestion. Admins are notified.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Suggestions"
                ],
                "summary": "Suggest a new venue",
                "parameters": [
                    {
                        "description": "Proposed venue",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/main.CreateSuggestionPayload"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/suggestions.VenueSuggestion"
                                }
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/admin/suggestions": {
            "get": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Admin"
                ],
                "summary": "List venue suggestions",
                "parameters": [
                    {
                        "type": "string",
                        "description": "pending (default), approved or rejected",
                        "name": "status",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Page number",
                        "name": "page",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Items per page",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "type": "object",
                                    "properties": {
                                        "items": {
                                            "type": "array",
                                            "items": {
                                                "$ref": "#/definitions/suggestions.VenueSuggestion"
                                            }
                                        },
                                        "pagination": {
                                            "$ref": "#/definitions/params.Pagination"
                                        }
                                    }
                                }
                            }
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/admin/suggestions/{suggestionID}/approve": {
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Marks the suggestion approved, which notifies the submitter, then creates the venue under the suggestion's id.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Admin"
                ],
                "summary": "Approve a venue suggestion",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Suggestion ID",
                        "name": "suggestionID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/venues.Venue"
                                }
                            }
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "409": {
                        "description": "Suggestion is not pending",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/admin/suggestions/{suggestionID}/reject": {
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Marks a pending suggestion rejected. Nobody is notified.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Admin"
                ],
                "summary": "Reject a venue suggestion",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Suggestion ID",
                        "name": "suggestionID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/suggestions.VenueSuggestion"
                                }
                            }
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "409": {
                        "description": "Suggestion is not pending",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/admin/venues": {
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Admin entry of a venue that did not come from a suggestion.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Admin"
                ],
                "summary": "Add a venue",
                "parameters": [
                    {
                        "description": "Venue",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/main.CreateVenuePayload"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/venues.Venue"
                                }
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/admin/venues/{venueID}/menu-requests/{requestID}/approve": {
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "description": "Moves the requested item into the venue's menu.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Admin"
                ],
                "summary": "Approve a menu request",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Venue ID",
                        "name": "venueID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Menu request ID",
                        "name": "requestID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/venues.MenuItem"
                                }
                            }
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/admin/venues/{venueID}/menu-requests/{requestID}/reject": {
            "post": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Admin"
                ],
                "summary": "Reject a menu request",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Venue ID",
                        "name": "venueID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Menu request ID",
                        "name": "requestID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        },
        "/admin/venues/{venueID}/menu/{itemID}": {
            "put": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Admin"
                ],
                "summary": "Edit a menu item",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Venue ID",
                        "name": "venueID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Menu item ID",
                        "name": "itemID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Menu item",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/main.MenuItemPayload"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "data": {
                                    "$ref": "#/definitions/venues.MenuItem"
                                }
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            },
            "delete": {
                "security": [
                    {
                        "ApiKeyAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Admin"
                ],
                "summary": "Remove a menu item",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Venue ID",
                        "name": "venueID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Menu item ID",
                        "name": "itemID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "type": "object"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "main.CreateMenuRequestPayload": {
            "type": "object",
            "required": [
                "name",
                "type"
            ],
            "properties": {
                "name": {
                    "type": "string",
                    "maxLength": 120
                },
                "price": {
                    "type": "number",
                    "minimum": 0
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "food",
                        "drink"
                    ]
                }
            }
        },
        "main.CreateRatingPayload": {
            "type": "object",
            "properties": {
                "bathroomRating": {
                    "type": "integer",
                    "maximum": 5,
                    "minimum": 1
                },
                "coverRating": {
                    "type": "number",
                    "minimum": 0
                },
                "lineRating": {
                    "type": "integer",
                    "maximum": 5,
                    "minimum": 1
                }
            }
        },
        "main.CreateSuggestionPayload": {
            "type": "object",
            "required": [
                "address",
                "name",
                "type"
            ],
            "properties": {
                "address": {
                    "type": "string",
                    "maxLength": 255
                },
                "description": {
                    "type": "string",
                    "maxLength": 1000
                },
                "latitude": {
                    "type": "number"
                },
                "longitude": {
                    "type": "number"
                },
                "name": {
                    "type": "string",
                    "maxLength": 120
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "Bar",
                        "Night Club",
                        "Restaurant"
                    ]
                }
            }
        },
        "main.CreateVenuePayload": {
            "type": "object",
            "required": [
                "address",
                "name",
                "type"
            ],
            "properties": {
                "address": {
                    "type": "string",
                    "maxLength": 255
                },
                "description": {
                    "type": "string",
                    "maxLength": 1000
                },
                "latitude": {
                    "type": "number"
                },
                "longitude": {
                    "type": "number"
                },
                "menu": {
                    "type": "array",
                    "maxItems": 200,
                    "items": {
                        "$ref": "#/definitions/main.MenuItemPayload"
                    }
                },
                "name": {
                    "type": "string",
                    "maxLength": 120
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "Bar",
                        "Night Club",
                        "Restaurant"
                    ]
                },
                "yelpRating": {
                    "type": "number",
                    "maximum": 5,
                    "minimum": 0
                }
            }
        },
        "main.MenuItemPayload": {
            "type": "object",
            "required": [
                "name",
                "type"
            ],
            "properties": {
                "name": {
                    "type": "string",
                    "maxLength": 120
                },
                "price": {
                    "type": "number",
                    "minimum": 0
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "food",
                        "drink"
                    ]
                }
            }
        },
        "main.SavePushTokenRequest": {
            "type": "object",
            "required": [
                "token"
            ],
            "properties": {
                "token": {
                    "type": "string",
                    "maxLength": 512
                }
            }
        },
        "main.UpdateProfilePayload": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string",
                    "maxLength": 255
                },
                "name": {
                    "type": "string",
                    "maxLength": 120,
                    "minLength": 1
                }
            }
        },
        "main.favoritesResponse": {
            "type": "object",
            "properties": {
                "favoriteVenueIDs": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        },
        "main.venueResponse": {
            "type": "object",
            "properties": {
                "address": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "latitude": {
                    "type": "number"
                },
                "longitude": {
                    "type": "number"
                },
                "menu": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/venues.MenuItem"
                    }
                },
                "menuRequests": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/venues.MenuItemRequest"
                    }
                },
                "name": {
                    "type": "string"
                },
                "ratings": {
                    "$ref": "#/definitions/ratings.Averages"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "Bar",
                        "Night Club",
                        "Restaurant"
                    ]
                },
                "yelpRating": {
                    "type": "number"
                }
            }
        },
        "params.Pagination": {
            "type": "object",
            "properties": {
                "has_next": {
                    "type": "boolean"
                },
                "has_prev": {
                    "type": "boolean"
                },
                "limit": {
                    "type": "integer"
                },
                "page": {
                    "type": "integer"
                },
                "total": {
                    "type": "integer"
                },
                "total_pages": {
                    "type": "integer"
                }
            }
        },
        "ratings.Averages": {
            "type": "object",
            "properties": {
                "bathroom": {
                    "type": "number"
                },
                "count": {
                    "type": "integer"
                },
                "cover": {
                    "type": "number"
                },
                "line": {
                    "type": "number"
                }
            }
        },
        "ratings.Rating": {
            "type": "object",
            "properties": {
                "bathroomRating": {
                    "type": "integer"
                },
                "coverRating": {
                    "type": "number"
                },
                "id": {
                    "type": "string"
                },
                "lineRating": {
                    "type": "integer"
                },
                "timestamp": {
                    "type": "string"
                },
                "userId": {
                    "type": "string"
                },
                "venueId": {
                    "type": "string"
                }
            }
        },
        "suggestions.VenueSuggestion": {
            "type": "object",
            "properties": {
                "address": {
                    "type": "string"
                },
                "createdAt": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "latitude": {
                    "type": "number"
                },
                "longitude": {
                    "type": "number"
                },
                "name": {
                    "type": "string"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "pending",
                        "approved",
                        "rejected"
                    ]
                },
                "submittedBy": {
                    "type": "string"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "Bar",
                        "Night Club",
                        "Restaurant"
                    ]
                }
            }
        },
        "users.User": {
            "type": "object",
            "properties": {
                "createdAt": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "favoriteVenueIDs": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "fcmToken": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "isAdmin": {
                    "type": "boolean"
                },
                "name": {
                    "type": "string"
                }
            }
        },
        "venues.MenuItem": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "price": {
                    "type": "number"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "food",
                        "drink"
                    ]
                }
            }
        },
        "venues.MenuItemRequest": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "price": {
                    "type": "number"
                },
                "submittedBy": {
                    "type": "string"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "food",
                        "drink"
                    ]
                }
            }
        },
        "venues.Venue": {
            "type": "object",
            "properties": {
                "address": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "latitude": {
                    "type": "number"
                },
                "longitude": {
                    "type": "number"
                },
                "menu": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/venues.MenuItem"
                    }
                },
                "menuRequests": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/venues.MenuItemRequest"
                    }
                },
                "name": {
                    "type": "string"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "Bar",
                        "Night Club",
                        "Restaurant"
                    ]
                },
                "yelpRating": {
                    "type": "number"
                }
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "description": "Bearer access token",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Dreka API",
	Description:      "Venue ratings, suggestions and favourites for the Dreka app. Writes here fan out as push notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
