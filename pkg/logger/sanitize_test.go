package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "u***@*******.com", SanitizedEmail("user@example.com"))
	assert.Equal(t, "a@*******.com", SanitizedEmail("a@example.com"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("not-an-email"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("password=hunter2"))
	assert.True(t, SanitizeQueryString("PENDING_REF=abc"))
	assert.True(t, SanitizeQueryString("code=123456"))
	assert.False(t, SanitizeQueryString("page=2&sort=asc"))
	assert.False(t, SanitizeQueryString(""))
}

func TestRedactedAttr(t *testing.T) {
	prod := RedactedAttr("email", "user@example.com", "production")
	assert.Equal(t, "[REDACTED]", prod.Value.String())

	dev := RedactedAttr("email", "user@example.com", "development")
	assert.Equal(t, "user@example.com", dev.Value.String())
}
