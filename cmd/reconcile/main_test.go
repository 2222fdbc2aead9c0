package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_ExitCodes(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-unknown"}))
	assert.Equal(t, 2, run([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}))
}
