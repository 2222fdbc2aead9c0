package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter_Levels(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("prod", &buf).Debug("hidden")
	assert.Empty(t, buf.String())

	NewWithWriter("dev", &buf).Debug("shown", "material_id", 7)
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"material_id":7`)
	assert.Contains(t, buf.String(), `"service":"salon-ledger"`)
}
