package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/carepulse/backend/internal/notify"
	"github.com/carepulse/backend/pkg/response"
)

// Health reports the liveness of the process, its database handle and the
// signaling channel state.
func Health(db *gorm.DB, system *notify.System) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		}

		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				status["status"] = "degraded"
				status["database"] = "unreachable"
			} else {
				status["database"] = "ok"
			}
		}

		if system != nil {
			status["signaling"] = system.Transport().State().String()
		}

		response.Success(c, http.StatusOK, status)
	}
}
