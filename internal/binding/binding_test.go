package binding

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelnow/fuelnow/internal/apperror"
)

type sample struct {
	Phone string `json:"phone" validate:"required"`
	Kind  string `json:"kind" validate:"omitempty,oneof=prepaid credit"`
}

func run(t *testing.T, body string) (int, string) {
	t.Helper()
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(http.StatusBadRequest).SendString(string(apperror.KindOf(err)) + ":" + apperror.PublicMessage(err))
		},
	})
	app.Post("/", func(c *fiber.Ctx) error {
		var s sample
		if err := Body(c, &s); err != nil {
			return err
		}
		return c.SendString(s.Phone)
	})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(out)
}

func TestBodyValid(t *testing.T) {
	code, body := run(t, `{"phone":"0712345678","kind":"credit"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0712345678", body)
}

func TestBodyUsesJSONFieldNames(t *testing.T) {
	code, body := run(t, `{"kind":"credit"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input:phone is required", body)

	_, body = run(t, `{"phone":"07","kind":"gold"}`)
	assert.Equal(t, "invalid_input:kind must be one of [prepaid credit]", body)
}

func TestBodyMalformed(t *testing.T) {
	_, body := run(t, `{"phone":`)
	assert.Equal(t, "invalid_input:malformed request body", body)
}
