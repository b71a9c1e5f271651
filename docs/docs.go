// Package docs registers the pettit OpenAPI document with swag so that
// gofiber/swagger can serve it at /api/swagger/*.
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
        "/posts": {
            "get": {
                "description": "Global feed, optionally filtered by community name, tag or search term",
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "List posts",
                "parameters": [
                    {"type": "string", "description": "Community name", "name": "community", "in": "query"},
                    {"type": "string", "description": "Tag", "name": "tag", "in": "query"},
                    {"type": "string", "description": "Title or content substring", "name": "search", "in": "query"},
                    {"type": "string", "description": "new, hot or top", "name": "sort", "in": "query"},
                    {"type": "integer", "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.FeedPageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Create a post",
                "parameters": [
                    {"type": "string", "description": "Title", "name": "title", "in": "formData", "required": true},
                    {"type": "string", "description": "Content", "name": "content", "in": "formData", "required": true},
                    {"type": "integer", "description": "Community ID", "name": "subredditId", "in": "formData", "required": true},
                    {"type": "string", "description": "Comma separated tags", "name": "tags", "in": "formData"},
                    {"type": "file", "description": "Image attachments", "name": "media", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/server.PostSummary"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/trending": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Trending posts",
                "parameters": [
                    {"type": "string", "description": "1h, 24h or 7d", "name": "timeframe", "in": "query"},
                    {"type": "integer", "description": "Result cap", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/search": {
            "get": {
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Search posts, communities and users",
                "parameters": [
                    {"type": "string", "description": "Search term", "name": "q", "in": "query", "required": true},
                    {"type": "string", "description": "all, posts, communities or users", "name": "type", "in": "query"},
                    {"type": "string", "description": "relevance, new or top", "name": "sort", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.SearchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/{id}": {
            "get": {
                "description": "Returns the post and counts the view",
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Get a post",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.PostSummary"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Edit a post",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.PostSummary"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/{id}/vote": {
            "post": {
                "description": "Voting the same way twice removes the vote",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Vote on a post",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.VoteResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts/{id}/moderate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["posts"],
                "summary": "Pin, lock or remove a post",
                "parameters": [
                    {"type": "integer", "description": "Post ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.PostSummary"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/communities": {
            "get": {
                "produces": ["application/json"],
                "tags": ["communities"],
                "summary": "List communities",
                "parameters": [
                    {"type": "string", "description": "Category, or all", "name": "category", "in": "query"},
                    {"type": "string", "description": "Name, display name or description substring", "name": "search", "in": "query"},
                    {"type": "string", "description": "memberCount, createdAt or name", "name": "sort", "in": "query"},
                    {"type": "integer", "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "post": {
                "description": "The creator becomes its first admin member",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["communities"],
                "summary": "Create a community",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/communities/{name}": {
            "get": {
                "description": "Includes the caller's membership when authenticated",
                "produces": ["application/json"],
                "tags": ["communities"],
                "summary": "Get a community",
                "parameters": [
                    {"type": "string", "description": "Community name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/communities/{name}/join": {
            "post": {
                "produces": ["application/json"],
                "tags": ["memberships"],
                "summary": "Join a community",
                "parameters": [
                    {"type": "string", "description": "Community name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/communities/{name}/leave": {
            "post": {
                "produces": ["application/json"],
                "tags": ["memberships"],
                "summary": "Leave a community",
                "parameters": [
                    {"type": "string", "description": "Community name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/communities/{name}/members/{userId}": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["memberships"],
                "summary": "Change a member's role and permissions",
                "parameters": [
                    {"type": "string", "description": "Community name", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "description": "Member user ID", "name": "userId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
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
                "fields": {"type": "array", "items": {"$ref": "#/definitions/models.FieldError"}},
                "details": {"type": "string"}
            }
        },
        "models.FieldError": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "models.VoteResult": {
            "type": "object",
            "properties": {
                "voteScore": {"type": "integer"},
                "userVote": {"type": "string"}
            }
        },
        "server.AuthorSummary": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "username": {"type": "string"},
                "avatar": {"type": "string"},
                "verified": {"type": "boolean"}
            }
        },
        "server.CommunitySummary": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "displayName": {"type": "string"}
            }
        },
        "server.MediaItem": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "url": {"type": "string"},
                "caption": {"type": "string"}
            }
        },
        "server.PostSummary": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "title": {"type": "string"},
                "content": {"type": "string"},
                "media": {"type": "array", "items": {"$ref": "#/definitions/server.MediaItem"}},
                "author": {"$ref": "#/definitions/server.AuthorSummary"},
                "community": {"$ref": "#/definitions/server.CommunitySummary"},
                "createdAt": {"type": "string"},
                "voteScore": {"type": "integer"},
                "commentCount": {"type": "integer"},
                "views": {"type": "integer"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "isPinned": {"type": "boolean"},
                "isLocked": {"type": "boolean"},
                "isSponsored": {"type": "boolean"},
                "userVote": {"type": "string"},
                "isSaved": {"type": "boolean"}
            }
        },
        "server.FeedPageResponse": {
            "type": "object",
            "properties": {
                "posts": {"type": "array", "items": {"$ref": "#/definitions/server.PostSummary"}},
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "hasMore": {"type": "boolean"}
            }
        },
        "server.SearchResponse": {
            "type": "object",
            "properties": {
                "posts": {"type": "array", "items": {"$ref": "#/definitions/server.PostSummary"}},
                "subreddits": {"type": "array", "items": {"type": "object"}},
                "users": {"type": "array", "items": {"$ref": "#/definitions/server.AuthorSummary"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "pettit API",
	Description:      "Pet community discussion API: communities, posts, votes, feeds and search.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
