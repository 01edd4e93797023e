package validation

import (
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Allowed vocabulary for the type parameter. "learn" is the dashboard
// spelling of the stored "workflow" partition.
var allowedMetricTypes = map[string]struct{}{
	"learn":    {},
	"workflow": {},
	"talk":     {},
}

type Config struct {
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware validates the query-string contract of the metrics API before
// a handler touches the database: date parameters must be real ISO dates,
// bot_id must be an integer and type must be a known metric type. Body
// payloads stay with the handlers; only the shared shapes live here.
func Middleware(cfg Config) fiber.Handler {
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"status":  "error",
						"message": "Unsupported content type",
					})
				}
			}
		}

		for _, param := range []string{"date", "start_date", "end_date"} {
			value := c.Query(param)
			if value == "" {
				continue
			}
			if !isValidISODate(value) {
				cfg.Logger.Warn("Rejected malformed date parameter",
					zap.String("ip", c.IP()),
					zap.String("param", param),
					zap.String("value", value),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"status":  "error",
					"message": param + " must be a valid YYYY-MM-DD date",
				})
			}
		}

		if botID := c.Query("bot_id"); botID != "" && !isInteger(botID) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"status":  "error",
				"message": "bot_id must be an integer",
			})
		}

		if metricType := c.Query("type"); metricType != "" {
			if _, ok := allowedMetricTypes[metricType]; !ok {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"status":  "error",
					"message": "Unknown metric type",
				})
			}
		}

		return c.Next()
	}
}

func isValidISODate(value string) bool {
	if !isoDatePattern.MatchString(value) {
		return false
	}
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}

func isInteger(value string) bool {
	if value == "" {
		return false
	}
	start := 0
	if value[0] == '-' {
		if len(value) == 1 {
			return false
		}
		start = 1
	}
	for i := start; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
