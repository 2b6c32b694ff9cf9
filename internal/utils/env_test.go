package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeEnv(t *testing.T) {
	const key = "_WALL_TEST_SAFEENV"
	t.Setenv(key, "")
	assert.Equal(t, "fallback", SafeEnv(key, "fallback"))
	t.Setenv(key, " value ")
	assert.Equal(t, "value", SafeEnv(key, "fallback"))
}

func TestEnvDuration(t *testing.T) {
	const key = "_WALL_TEST_DURATION"
	t.Setenv(key, "3s")
	assert.Equal(t, 3*time.Second, EnvDuration(key, time.Second))
	t.Setenv(key, "soon")
	assert.Equal(t, time.Second, EnvDuration(key, time.Second))
}

func TestEnvFloat(t *testing.T) {
	const key = "_WALL_TEST_FLOAT"
	t.Setenv(key, "12.5")
	assert.Equal(t, 12.5, EnvFloat(key, 15))
	t.Setenv(key, "abc")
	assert.Equal(t, 15.0, EnvFloat(key, 15))
}
