package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/scrutineer/internal/board"
	"github.com/zulandar/scrutineer/internal/store"
)

const dateLayout = "2006-01-02"

// registerRoutes sets up all routes on the Gin router.
func registerRoutes(router *gin.Engine, repo store.Repository, ref *board.Refresher) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/types", handleTypes(repo))
	api.GET("/board", handleBoard(repo, ref))
	api.GET("/results", handleResults(repo))
	api.GET("/events", handleSSE(ref))
}

func handleTypes(repo store.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := TypeSummary(c.Request.Context(), repo)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// handleBoard serves the refresher's cached snapshot when no date is given,
// and loads the requested date directly otherwise.
func handleBoard(repo store.Repository, ref *board.Refresher) gin.HandlerFunc {
	return func(c *gin.Context) {
		date := c.Query("date")
		if date == "" && ref != nil {
			if snap, ok := ref.Latest(); ok {
				c.JSON(http.StatusOK, snap)
				return
			}
		}
		now := time.Now()
		if date == "" {
			date = now.Format(dateLayout)
		}
		if _, err := time.Parse(dateLayout, date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		snap, err := board.Load(c.Request.Context(), repo, date, now)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func handleResults(repo store.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := Standings(c.Request.Context(), repo)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}
