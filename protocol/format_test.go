package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{-15, "-15.0"},
		{1e6, "1000000.0"},
		{2.5, "2.5"},
		{0.003, "0.003"},
		{0.0001, "0.0001"},
		{123456.78, "123456.78"},
		{1e-5, "1e-05"},
		{2.5e-5, "2.5e-05"},
		{1e16, "1e+16"},
		{6.4, "6.4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFloat(tt.in), "%v", tt.in)
	}
}

func TestFormatFloats(t *testing.T) {
	assert.Equal(t, "0.0,0.5,1e-05", FormatFloats([]float64{0, 0.5, 1e-5}))
	assert.Equal(t, "2.5", FormatFloats([]float64{2.5}))
	assert.Equal(t, "", FormatFloats(nil))
}

func TestFormatBool(t *testing.T) {
	assert.Equal(t, "1", FormatBool(true))
	assert.Equal(t, "0", FormatBool(false))
}
