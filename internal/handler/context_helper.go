package handler

import (
	"github.com/gin-gonic/gin"
)

// formatQueryKey selects a rendered download instead of JSON.
const formatQueryKey = "format"

// queryOverrides turns the query string into param overrides. Repeated keys
// keep their last value, so a checked HTML check box ("0" then "1") reads as
// set. Keys listed in skip are not params.
func queryOverrides(c *gin.Context, skip ...string) map[string]string {
	values := c.Request.URL.Query()
	overrides := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) == 0 || contains(skip, key) {
			continue
		}
		overrides[key] = vals[len(vals)-1]
	}
	return overrides
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
