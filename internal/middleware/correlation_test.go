package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDPropagation(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		require.Equal(t, GetCorrelationID(c), CorrelationIDFromContext(c.UserContext()))
		return c.SendString(GetCorrelationID(c))
	})

	cases := []struct {
		name     string
		header   string
		value    string
		expected string
	}{
		{name: "correlation header", header: "X-Correlation-ID", value: "req-123", expected: "req-123"},
		{name: "request id fallback", header: "X-Request-ID", value: "abc.def", expected: "abc.def"},
		{name: "unsafe value replaced", header: "X-Correlation-ID", value: "bad\nvalue"},
		{name: "oversized value replaced", header: "X-Correlation-ID", value: strings.Repeat("a", 200)},
		{name: "missing"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			got := resp.Header.Get("X-Correlation-ID")
			if tc.expected != "" {
				require.Equal(t, tc.expected, got)
				return
			}
			_, err = uuid.Parse(got)
			require.NoError(t, err)
		})
	}
}
