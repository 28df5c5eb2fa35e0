package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "VTI",
			expected: []string{"VTI"},
		},
		{
			name:     "two values",
			input:    "VTI, VXUS",
			expected: []string{"VTI", "VXUS"},
		},
		{
			name:     "three values with varied spacing",
			input:    "VTI,  VXUS , BND",
			expected: []string{"VTI", "VXUS", "BND"},
		},
		{
			name:     "no spaces after comma",
			input:    "SCHB,ITOT",
			expected: []string{"SCHB", "ITOT"},
		},
		{
			name:     "trailing comma",
			input:    "VTI,",
			expected: []string{"VTI"},
		},
		{
			name:     "leading comma",
			input:    ",VXUS",
			expected: []string{"VXUS"},
		},
		{
			name:     "only spaces",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "comma only",
			input:    ",",
			expected: nil,
		},
		{
			name:     "multiple commas",
			input:    ",,VTI,,BND,,",
			expected: []string{"VTI", "BND"},
		},
		{
			name:     "mixed spacing around values",
			input:    "  VTI  ,  VXUS  ",
			expected: []string{"VTI", "VXUS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCSV(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseCSV_PreservesInput(t *testing.T) {
	// Verify that the function doesn't modify the input string
	input := "VTI, VXUS"
	originalInput := input

	_ = ParseCSV(input)

	assert.Equal(t, originalInput, input, "input should not be modified")
}

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"already normalized", "VTI", "VTI"},
		{"lowercase", "vti", "VTI"},
		{"mixed case with spaces", "  vXuS ", "VXUS"},
		{"cash pseudo-ticker", "$$", "$$"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTicker(tt.input))
		})
	}
}
