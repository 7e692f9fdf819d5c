package Controllers

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LogEntry mirrors the JSON lines written by the request logger.
type LogEntry struct {
	Timestamp     time.Time     `json:"timestamp"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	URL           string        `json:"url"`
	Status        int           `json:"status"`
	Latency       time.Duration `json:"latency"`
	IP            string        `json:"ip"`
	UserAgent     string        `json:"user_agent"`
	Error         string        `json:"error,omitempty"`
	UserID        interface{}   `json:"user_id"`
	Username      string        `json:"username"`
	ContentLength int64         `json:"content_length"`
}

const logFilePath = "logs/requests.log"

// parseLogDateRange resolves date_from/date_to query params, defaulting to today.
func parseLogDateRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	dateFromStr := c.Query("date_from", "")
	dateToStr := c.Query("date_to", "")

	var dateFrom, dateTo time.Time
	if dateFromStr == "" && dateToStr == "" {
		now := time.Now()
		dateFrom = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		dateTo = time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999999999, now.Location())
		return dateFrom, dateTo, nil
	}

	if dateFromStr != "" {
		parsed, err := time.Parse("2006-01-02", dateFromStr)
		if err != nil {
			return dateFrom, dateTo, err
		}
		dateFrom = parsed
	} else {
		dateFrom = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	if dateToStr != "" {
		parsed, err := time.Parse("2006-01-02", dateToStr)
		if err != nil {
			return dateFrom, dateTo, err
		}
		dateTo = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 999999999, parsed.Location())
	} else {
		dateTo = time.Now()
	}
	return dateFrom, dateTo, nil
}

// GetLogs retrieves the request audit trail with pagination and filtering.
func GetLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "50"))
	pathFilter := c.Query("path", "")
	methodFilter := c.Query("method", "")
	statusFilter := c.Query("status", "")
	userFilter := c.Query("username", "")

	dateFrom, dateTo, err := parseLogDateRange(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid date format. Use YYYY-MM-DD",
		})
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 1000 {
		pageSize = 50
	}

	logs, err := readLogsFromFile(logFilePath, dateFrom, dateTo)
	if err != nil {
		log.Printf("Error reading logs: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read logs",
		})
	}

	filtered := filterLogs(logs, pathFilter, methodFilter, statusFilter, userFilter)

	// Newest first
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})

	totalLogs := len(filtered)
	totalPages := (totalLogs + pageSize - 1) / pageSize
	startIndex := (page - 1) * pageSize
	endIndex := startIndex + pageSize
	if startIndex > totalLogs {
		startIndex = totalLogs
	}
	if endIndex > totalLogs {
		endIndex = totalLogs
	}

	var paginated []LogEntry
	if startIndex < totalLogs {
		paginated = filtered[startIndex:endIndex]
	}

	return c.JSON(fiber.Map{
		"logs":        paginated,
		"total_logs":  totalLogs,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages,
		"date_from":   dateFrom,
		"date_to":     dateTo,
	})
}

// GetLogStats returns summary statistics for the audit trail.
func GetLogStats(c *fiber.Ctx) error {
	dateFrom, dateTo, err := parseLogDateRange(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid date format. Use YYYY-MM-DD",
		})
	}

	logs, err := readLogsFromFile(logFilePath, dateFrom, dateTo)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read logs",
		})
	}

	var totalRequests, successfulRequests, errorRequests int
	var totalLatency time.Duration
	methodStats := make(map[string]int)
	userStats := make(map[string]int)
	pathStats := make(map[string]int)

	for _, entry := range logs {
		totalRequests++
		if entry.Status >= 200 && entry.Status < 300 {
			successfulRequests++
		} else if entry.Status >= 400 {
			errorRequests++
		}
		totalLatency += entry.Latency
		methodStats[entry.Method]++
		pathStats[entry.Path]++
		if entry.Username != "" {
			userStats[entry.Username]++
		}
	}

	avgLatency := time.Duration(0)
	successRate := 0.0
	if totalRequests > 0 {
		avgLatency = totalLatency / time.Duration(totalRequests)
		successRate = float64(successfulRequests) / float64(totalRequests) * 100
	}

	var topPaths []fiber.Map
	for path, count := range pathStats {
		topPaths = append(topPaths, fiber.Map{"path": path, "count": count})
	}
	sort.Slice(topPaths, func(i, j int) bool {
		return topPaths[i]["count"].(int) > topPaths[j]["count"].(int)
	})
	if len(topPaths) > 10 {
		topPaths = topPaths[:10]
	}

	return c.JSON(fiber.Map{
		"total_requests":      totalRequests,
		"successful_requests": successfulRequests,
		"error_requests":      errorRequests,
		"success_rate":        successRate,
		"avg_latency_ms":      float64(avgLatency.Microseconds()) / 1000.0,
		"method_stats":        methodStats,
		"user_stats":          userStats,
		"top_paths":           topPaths,
		"date_from":           dateFrom,
		"date_to":             dateTo,
	})
}

// readLogsFromFile reads JSON-line logs and keeps those inside the date range.
func readLogsFromFile(filePath string, dateFrom, dateTo time.Time) ([]LogEntry, error) {
	file, err := os.OpenFile(filePath, os.O_RDONLY, 0666)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var logs []LogEntry
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}

		if entry.Timestamp.After(dateFrom) && entry.Timestamp.Before(dateTo) {
			logs = append(logs, entry)
		}
	}
	return logs, nil
}

// filterLogs filters by path substring, method, status and username.
func filterLogs(logs []LogEntry, pathFilter, methodFilter, statusFilter, userFilter string) []LogEntry {
	var filtered []LogEntry
	for _, entry := range logs {
		if pathFilter != "" && !strings.Contains(strings.ToLower(entry.Path), strings.ToLower(pathFilter)) {
			continue
		}
		if methodFilter != "" && !strings.EqualFold(entry.Method, methodFilter) {
			continue
		}
		if statusFilter != "" {
			status, err := strconv.Atoi(statusFilter)
			if err == nil && entry.Status != status {
				continue
			}
		}
		if userFilter != "" && !strings.EqualFold(entry.Username, userFilter) {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}
