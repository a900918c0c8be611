package dto

import "floodguard-be/internal/pkg/logger"

type HealthResponse struct {
	Status         string `json:"status"`
	ProjectsLoaded int64  `json:"projects_loaded"`
	VectorReady    bool   `json:"vector_db_ready"`
	EmbeddedCount  int64  `json:"embedded_projects"`
	Connections    int    `json:"connections"`
	Sessions       int    `json:"sessions"`
}

type NewsRequest struct {
	ProjectID  string `query:"project_id" validate:"omitempty,max=100"`
	Contractor string `query:"contractor" validate:"omitempty,max=200"`
	Query      string `query:"query" validate:"omitempty,max=500"`
	Location   string `query:"location" validate:"omitempty,max=200"`
	Limit      int    `query:"limit" validate:"omitempty,gte=1,lte=20"`
}

type TraceListResponse struct {
	Data   []logger.LogEntry `json:"data"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}
