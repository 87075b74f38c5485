package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://yts.mx", "https://yts.mx/api/v2"},
		{"https://yts.mx/", "https://yts.mx/api/v2"},
		{"https://yts.mx/api/v2", "https://yts.mx/api/v2"},
		{"https://yts.mx/api/v2/", "https://yts.mx/api/v2"},
		{"  https://yts.mx  ", "https://yts.mx/api/v2"},
		{"", ""},
		{" / ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNewOrdersConfiguredFirst(t *testing.T) {
	r := New(
		[]string{"https://mine.example", "https://yts.mx/", ""},
		[]string{"https://yts.rs/api/v2", "https://yts.mx/api/v2"},
	)
	assert.Equal(t, []string{
		"https://mine.example/api/v2",
		"https://yts.mx/api/v2",
		"https://yts.rs/api/v2",
	}, r.Endpoints())
}

func TestNewDefaultsOnly(t *testing.T) {
	r := New(nil, Defaults)
	assert.Equal(t, Defaults, r.Endpoints())
}

func TestEndpointsReturnsCopy(t *testing.T) {
	r := New([]string{"https://a.example"}, nil)
	eps := r.Endpoints()
	eps[0] = "mutated"
	assert.Equal(t, "https://a.example/api/v2", r.Endpoints()[0])
}
