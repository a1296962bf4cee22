package main

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
}

func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestNewLoggerReadsDotEnvLevel(t *testing.T) {
	chdirTemp(t)
	unsetenv(t, "LOG_LEVEL")
	unsetenv(t, "LOG_FORMAT")
	require.NoError(t, os.WriteFile(".env", []byte("LOG_LEVEL=debug\nLOG_FORMAT=text\n"), 0o600))

	log, err := newLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestNewLoggerWithoutDotEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LOG_LEVEL", "warn")

	log, err := newLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
}
