package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		target string
		valid  bool
	}{
		{"http://nas.local", true},
		{"https://grafana.lan:3000", true},
		{"tcp://192.168.1.1:22", true},
		{"192.168.1.1:8080", true},
		{"nas.local", true},
		{"dns://pi.hole", true},
		{"", false},
		{"ftp://files.local", false},
		{"http://", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidateTarget(tt.target), "target %q", tt.target)
	}
}

func TestValidateProtocol(t *testing.T) {
	for _, protocol := range []string{"http", "https", "tcp", "ping", "dns", "custom"} {
		assert.True(t, ValidateProtocol(protocol), "protocol %q", protocol)
	}

	assert.False(t, ValidateProtocol("gopher"))
	assert.False(t, ValidateProtocol(""))
}
