package utils

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ParseZones reads the comma separated "zones" query parameter
// ("?zones=1,2"); an absent parameter means all zones.
func ParseZones(c *gin.Context) ([]int, error) {
	raw := c.Query("zones")
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	zones := make([]int, 0, len(parts))
	for _, part := range parts {
		zone, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	return zones, nil
}
