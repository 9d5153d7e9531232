package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func restore() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func TestDebug_OnlyWhenVerbose(t *testing.T) {
	defer restore()
	buf := &bytes.Buffer{}
	SetOutput(buf)

	SetVerbose(false)
	Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Debug("shown %d", 2)
	assert.Contains(t, buf.String(), "[DEBUG] shown 2")
}

func TestWarn_AlwaysPrinted(t *testing.T) {
	defer restore()
	buf := &bytes.Buffer{}
	SetOutput(buf)

	SetVerbose(false)
	Warn("save failed: %s", "disk full")
	assert.Contains(t, buf.String(), "[WARN] save failed: disk full")
}

func TestIsVerbose(t *testing.T) {
	defer restore()
	SetVerbose(true)
	assert.True(t, IsVerbose())
	SetVerbose(false)
	assert.False(t, IsVerbose())
}
