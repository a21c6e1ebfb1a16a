package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	Env = map[string]string{"FROM_FILE": "file", "EMPTY": ""}
	t.Cleanup(func() { Env = nil })
	t.Setenv("FROM_OS", "os")
	t.Setenv("EMPTY", "os-empty")

	assert.Equal(t, "file", GetEnv("FROM_FILE", "def"))
	assert.Equal(t, "os", GetEnv("FROM_OS", "def"))
	assert.Equal(t, "os-empty", GetEnv("EMPTY", "def"))
	assert.Equal(t, "def", GetEnv("MISSING_KEY_FOR_TEST", "def"))
}

func TestTypedGetters(t *testing.T) {
	Env = map[string]string{
		"INT_OK":  "42",
		"INT_BAD": "forty",
		"DUR_OK":  "90s",
		"DUR_BAD": "soon",
		"DUR_NEG": "-5s",
	}
	t.Cleanup(func() { Env = nil })

	assert.Equal(t, 42, GetInt("INT_OK", 1))
	assert.Equal(t, 1, GetInt("INT_BAD", 1))
	assert.Equal(t, 1, GetInt("INT_MISSING", 1))

	assert.Equal(t, 90*time.Second, GetDuration("DUR_OK", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("DUR_BAD", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("DUR_NEG", time.Minute))
}

func TestIsDev(t *testing.T) {
	Env = map[string]string{"APP_ENV": "dev"}
	t.Cleanup(func() { Env = nil })
	assert.True(t, IsDev())

	Env = map[string]string{"APP_ENV": "prod"}
	assert.False(t, IsDev())
}
