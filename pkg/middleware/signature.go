package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

// HeaderLineSignature carries the HMAC-SHA256 signature of the webhook body.
const HeaderLineSignature = "X-Line-Signature"

// LineSignature verifies webhook payloads against the channel secret before
// any handler runs. The body is re-buffered so handlers can still bind it.
func LineSignature(channelSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			body, err := io.ReadAll(req.Body)
			if err != nil {
				return httperror.NewHTTPError(http.StatusBadRequest, "failed to read request body")
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			signature := req.Header.Get(HeaderLineSignature)
			if signature == "" {
				return httperror.NewHTTPError(http.StatusUnauthorized, "missing signature")
			}

			mac := hmac.New(sha256.New, []byte(channelSecret))
			mac.Write(body)
			expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

			if !hmac.Equal([]byte(signature), []byte(expected)) {
				return httperror.NewHTTPError(http.StatusUnauthorized, "invalid signature")
			}

			return next(c)
		}
	}
}
