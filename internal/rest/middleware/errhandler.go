package middleware

import (
	"strings"

	"github.com/cockroachdb/errors"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
)

// ErrorHandler renders the last error attached to the gin context
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		response := ierr.ErrorResponse{
			Success: false,
			Error: ierr.ErrorDetail{
				Display: getDisplayMessage(err),
				Details: getSafeDetails(err),
			},
		}
		c.JSON(ierr.HTTPStatusFromErr(err), response)
	}
}

func getDisplayMessage(err error) string {
	// GetAllHints is a post-order traversal, the first non-empty hint is the innermost
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return "An unexpected error occurred"
}

func getSafeDetails(err error) map[string]any {
	details := make(map[string]any)

	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			if len(payload) > 9 && strings.HasPrefix(payload, "__json__:") {
				var jsonDetails map[string]any
				if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(payload[9:]), &jsonDetails); err == nil {
					for k, v := range jsonDetails {
						details[k] = v
					}
				}
			}
		}
	}

	return details
}
