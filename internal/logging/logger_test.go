package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNew_LevelAndFormat(t *testing.T) {
	l := New(Options{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	l = New(Options{Level: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
}

func TestNew_FileOutput(t *testing.T) {
	name := filepath.Join(t.TempDir(), "nested", "app.log")
	l := New(Options{Output: "file", Filename: name, Format: "json"})

	lj, ok := l.Out.(*lumberjack.Logger)
	require.True(t, ok, "file output should rotate through lumberjack")
	t.Cleanup(func() { lj.Close() })

	l.Info("hello")
	_, err := os.Stat(name)
	require.NoError(t, err)
}

func TestComponent(t *testing.T) {
	e := Component(New(Options{}), "api")
	assert.Equal(t, "api", e.Data["component"])
}
