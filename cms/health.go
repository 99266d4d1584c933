package cms

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type GenericStatus struct {
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok"})
}

// healthRetries and the linear backoff match how long a freshly started
// database container typically takes to accept connections.
const healthRetries = 5

func retryPing(check func() error) error {
	var err error
	for attempt := 0; attempt < healthRetries; attempt++ {
		if err = check(); err == nil {
			return nil
		}
		if attempt < healthRetries-1 {
			time.Sleep(2 * time.Second * time.Duration(attempt+1))
		}
	}
	return err
}

// handleHealthDatabases pings the SQL database and, when configured,
// redis, retrying each before reporting failure.
func (s *Server) handleHealthDatabases(c echo.Context) error {
	ctx := c.Request().Context()

	checks := map[string]string{}
	healthy := true

	err := retryPing(func() error {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	if err != nil {
		healthy = false
		checks["database"] = "error: " + err.Error()
		s.log.Error("database health check failed", "err", err)
	} else {
		checks["database"] = "ok"
	}

	if s.rdb != nil {
		err := retryPing(func() error {
			return s.rdb.Ping(ctx).Err()
		})
		if err != nil {
			healthy = false
			checks["redis"] = "error: " + err.Error()
			s.log.Error("redis health check failed", "err", err)
		} else {
			checks["redis"] = "ok"
		}
	}

	code := http.StatusOK
	status := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}
	return c.JSON(code, map[string]any{
		"status": status,
		"checks": checks,
	})
}
