package api

import (
	"strconv" // Query parsing

	"etherstake/internal/service" // Pagination types

	"github.com/gin-gonic/gin" // Gin web framework
)

// Envelope is the success body. List responses also carry Results and Pagination.
type Envelope struct {
	Status     string              `json:"status"`
	Results    *int                `json:"results,omitempty"`
	Pagination *service.Pagination `json:"pagination,omitempty"`
	Message    string              `json:"message,omitempty"`
	Data       any                 `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, data gin.H) {
	c.JSON(status, Envelope{Status: "success", Data: data})
}

func respondList(c *gin.Context, status int, results int, p service.Pagination, data gin.H) {
	c.JSON(status, Envelope{Status: "success", Results: &results, Pagination: &p, Data: data})
}

// pageFromQuery reads page and limit, falling back to defaults on bad input
func pageFromQuery(c *gin.Context) service.Page {
	page, _ := strconv.Atoi(c.Query("page"))   // 0 on error, normalised below
	limit, _ := strconv.Atoi(c.Query("limit")) // 0 on error, normalised below
	return service.NewPage(page, limit)
}
