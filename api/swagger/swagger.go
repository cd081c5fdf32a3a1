package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Edunite Scheduling API",
        "description": "Lesson scheduling, timetable and attendance for an education center",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "in": "header",
            "name": "Authorization"
        }
    },
    "security": [
        {
            "BearerAuth": []
        }
    ],
    "tags": [
        {
            "name": "Calendar",
            "description": "Month and week grids, weekly timetable"
        },
        {
            "name": "Lessons",
            "description": "Lesson bookings and conflict checks"
        },
        {
            "name": "Groups",
            "description": "Group schedules"
        },
        {
            "name": "Attendance",
            "description": "Attendance marks, rosters and exports"
        }
    ],
    "paths": {
        "/calendar/month": {
            "get": {
                "tags": [
                    "Calendar"
                ],
                "summary": "Month grid",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "anchor",
                        "type": "string",
                        "required": false,
                        "description": "Any date of the period (YYYY-MM-DD), default today"
                    }
                ]
            }
        },
        "/calendar/week": {
            "get": {
                "tags": [
                    "Calendar"
                ],
                "summary": "Week grid, Monday first",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "anchor",
                        "type": "string",
                        "required": false,
                        "description": "Any date of the period (YYYY-MM-DD), default today"
                    }
                ]
            }
        },
        "/timetable": {
            "get": {
                "tags": [
                    "Calendar"
                ],
                "summary": "Weekly timetable",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "anchor",
                        "type": "string",
                        "required": false,
                        "description": "Any date of the period (YYYY-MM-DD), default today"
                    },
                    {
                        "in": "query",
                        "name": "teacherId",
                        "type": "string",
                        "required": false,
                        "description": "Filter by teacher"
                    },
                    {
                        "in": "query",
                        "name": "courseId",
                        "type": "string",
                        "required": false,
                        "description": "Filter by course"
                    },
                    {
                        "in": "query",
                        "name": "roomId",
                        "type": "string",
                        "required": false,
                        "description": "Filter by room, online for online lessons"
                    },
                    {
                        "in": "query",
                        "name": "groupId",
                        "type": "string",
                        "required": false,
                        "description": "Filter by group"
                    }
                ]
            }
        },
        "/lessons": {
            "get": {
                "tags": [
                    "Lessons"
                ],
                "summary": "List lessons",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "groupId",
                        "type": "string",
                        "required": false,
                        "description": "Group"
                    },
                    {
                        "in": "query",
                        "name": "teacherId",
                        "type": "string",
                        "required": false,
                        "description": "Teacher"
                    },
                    {
                        "in": "query",
                        "name": "roomId",
                        "type": "string",
                        "required": false,
                        "description": "Room"
                    },
                    {
                        "in": "query",
                        "name": "from",
                        "type": "string",
                        "required": false,
                        "description": "From date"
                    },
                    {
                        "in": "query",
                        "name": "to",
                        "type": "string",
                        "required": false,
                        "description": "To date"
                    },
                    {
                        "in": "query",
                        "name": "page",
                        "type": "string",
                        "required": false,
                        "description": "Page"
                    },
                    {
                        "in": "query",
                        "name": "limit",
                        "type": "string",
                        "required": false,
                        "description": "Page size"
                    }
                ]
            },
            "post": {
                "tags": [
                    "Lessons"
                ],
                "summary": "Create lesson",
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Scheduling conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/LessonRequest"
                        }
                    }
                ]
            }
        },
        "/lessons/check": {
            "post": {
                "tags": [
                    "Lessons"
                ],
                "summary": "Check a lesson for conflicts",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "query",
                        "name": "ignoreId",
                        "type": "string",
                        "required": false,
                        "description": "Lesson to ignore"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/LessonRequest"
                        }
                    }
                ]
            }
        },
        "/lessons/import": {
            "post": {
                "tags": [
                    "Lessons"
                ],
                "summary": "Bulk import lessons without conflict checks",
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ImportLessonsRequest"
                        }
                    }
                ]
            }
        },
        "/lessons/{id}": {
            "get": {
                "tags": [
                    "Lessons"
                ],
                "summary": "Get lesson",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Lesson ID"
                    }
                ]
            },
            "put": {
                "tags": [
                    "Lessons"
                ],
                "summary": "Update lesson",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Scheduling conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Lesson ID"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/LessonRequest"
                        }
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Lessons"
                ],
                "summary": "Delete lesson",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Lesson ID"
                    }
                ]
            }
        },
        "/groups/{id}/lessons/project": {
            "post": {
                "tags": [
                    "Lessons"
                ],
                "summary": "Project group schedule into lessons",
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Scheduling conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Group ID"
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ProjectLessonsRequest"
                        }
                    }
                ]
            }
        },
        "/groups/{id}/class-dates": {
            "get": {
                "tags": [
                    "Groups"
                ],
                "summary": "Class dates of a group",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Group ID"
                    },
                    {
                        "in": "query",
                        "name": "month",
                        "type": "string",
                        "required": false,
                        "description": "Month (YYYY-MM), default current"
                    }
                ]
            }
        },
        "/groups/{id}/attendance": {
            "get": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Monthly attendance roster",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Group ID"
                    },
                    {
                        "in": "query",
                        "name": "month",
                        "type": "string",
                        "required": false,
                        "description": "Month (YYYY-MM), default current"
                    }
                ]
            }
        },
        "/groups/{id}/attendance/export": {
            "get": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Export roster as CSV or PDF",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Group ID"
                    },
                    {
                        "in": "query",
                        "name": "month",
                        "type": "string",
                        "required": false,
                        "description": "Month (YYYY-MM), default current"
                    },
                    {
                        "in": "query",
                        "name": "format",
                        "type": "string",
                        "required": false,
                        "description": "csv or pdf"
                    }
                ],
                "produces": [
                    "text/csv",
                    "application/pdf"
                ]
            }
        },
        "/groups/{id}/attendance/import": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Import roster CSV",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Group ID"
                    },
                    {
                        "in": "formData",
                        "name": "file",
                        "type": "file",
                        "required": false,
                        "description": "Roster CSV"
                    }
                ]
            }
        },
        "/attendance/toggle": {
            "post": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Toggle attendance",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ToggleAttendanceRequest"
                        }
                    }
                ]
            }
        },
        "/attendance": {
            "put": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Set attendance",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SetAttendanceRequest"
                        }
                    }
                ]
            }
        },
        "/students/{id}/attendance/stats": {
            "get": {
                "tags": [
                    "Attendance"
                ],
                "summary": "Student attendance statistics",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true,
                        "description": "Student ID"
                    },
                    {
                        "in": "query",
                        "name": "month",
                        "type": "string",
                        "required": false,
                        "description": "Month (YYYY-MM), default current"
                    },
                    {
                        "in": "query",
                        "name": "groupId",
                        "type": "string",
                        "required": false,
                        "description": "Group, default the student's own"
                    }
                ]
            }
        }
    },
    "definitions": {
        "LessonRequest": {
            "type": "object",
            "properties": {
                "group_id": {
                    "type": "string"
                },
                "date": {
                    "type": "string"
                },
                "start_time": {
                    "type": "string"
                },
                "end_time": {
                    "type": "string"
                },
                "teacher_id": {
                    "type": "string"
                },
                "room_id": {
                    "type": "string"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "offline",
                        "online"
                    ]
                },
                "notes": {
                    "type": "string"
                }
            },
            "required": [
                "group_id",
                "date",
                "start_time",
                "end_time"
            ]
        },
        "ImportLessonsRequest": {
            "type": "object",
            "properties": {
                "items": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/LessonRequest"
                    }
                }
            }
        },
        "ProjectLessonsRequest": {
            "type": "object",
            "properties": {
                "from": {
                    "type": "string"
                },
                "to": {
                    "type": "string"
                },
                "partial_on_error": {
                    "type": "boolean"
                }
            }
        },
        "ToggleAttendanceRequest": {
            "type": "object",
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "date": {
                    "type": "string"
                }
            },
            "required": [
                "student_id",
                "date"
            ]
        },
        "SetAttendanceRequest": {
            "type": "object",
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "date": {
                    "type": "string"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "none",
                        "present",
                        "late",
                        "absent",
                        "excused"
                    ]
                }
            },
            "required": [
                "student_id",
                "date",
                "status"
            ]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "details": {
                    "type": "object"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
