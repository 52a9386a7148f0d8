package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func runSignature(t *testing.T, secret, body, signature string) (error, string) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(HeaderLineSignature, signature)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seenBody string
	handler := LineSignature(secret)(func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		require.NoError(t, err)
		seenBody = string(b)
		return c.NoContent(http.StatusOK)
	})

	return handler(c), seenBody
}

func TestLineSignatureAcceptsValidSignature(t *testing.T) {
	body := `{"events":[]}`
	err, seenBody := runSignature(t, "secret", body, sign("secret", body))

	require.NoError(t, err)
	assert.Equal(t, body, seenBody, "handler should still be able to read the body")
}

func TestLineSignatureRejectsInvalidSignature(t *testing.T) {
	body := `{"events":[]}`
	err, _ := runSignature(t, "secret", body, sign("wrong-secret", body))

	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, httperror.GetStatusCode(err))
}

func TestLineSignatureRejectsMissingSignature(t *testing.T) {
	err, _ := runSignature(t, "secret", `{"events":[]}`, "")

	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, httperror.GetStatusCode(err))
}

func TestLineSignatureRejectsTamperedBody(t *testing.T) {
	err, _ := runSignature(t, "secret", `{"events":[{"type":"message"}]}`, sign("secret", `{"events":[]}`))

	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, httperror.GetStatusCode(err))
}
