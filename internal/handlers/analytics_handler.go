package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// reportWindow parses ?start=YYYY-MM-DD&end=YYYY-MM-DD, defaulting to
// today when absent.
func reportWindow(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.Add(24*time.Hour - time.Second)

	if raw := c.Query("start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
			return start, end, false
		}
		start = parsed
	}
	if raw := c.Query("end"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
			return start, end, false
		}
		end = parsed.Add(24*time.Hour - time.Second)
	}
	return start, end, true
}

// --- GET /api/reports ---
func GetSalesReport(c *gin.Context) {
	start, end, ok := reportWindow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, Analytics.Summary(start, end))
}

// --- GET /api/reports/histogram ---
func GetStatusHistogram(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"histogram": Analytics.StatusHistogram()})
}

// --- GET /api/reports/trends?bucket_minutes=60 ---
func GetTrends(c *gin.Context) {
	start, end, ok := reportWindow(c)
	if !ok {
		return
	}
	minutes, _ := strconv.Atoi(c.DefaultQuery("bucket_minutes", "60"))
	if minutes <= 0 {
		minutes = 60
	}
	c.JSON(http.StatusOK, gin.H{
		"trends": Analytics.Trends(start, end, time.Duration(minutes)*time.Minute),
	})
}

// --- GET /api/reports/prep-time ---
func GetPrepTime(c *gin.Context) {
	start, end, ok := reportWindow(c)
	if !ok {
		return
	}
	avg := Analytics.AveragePrepTime(start, end)
	c.JSON(http.StatusOK, gin.H{
		"average_prep_seconds": int(avg.Seconds()),
	})
}

// --- GET /api/reports/backlog?threshold=10 ---
func GetBacklog(c *gin.Context) {
	threshold, _ := strconv.Atoi(c.DefaultQuery("threshold", "10"))
	c.JSON(http.StatusOK, Analytics.BacklogAlert(threshold))
}
