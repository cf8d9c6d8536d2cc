package checks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectEmail(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"contact me at a@b.co", true},
		{"john.doe+support@example.com", true},
		{"no contact info", false},
		{"user@localhost", false},
		{"a@b.c", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectEmail(tt.text), tt.text)
	}
}

func TestDetectSSN(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"123-45-6789", true},
		{"my ssn is 123-45-6789.", true},
		{"123-456-789", false},
		{"1234-45-6789", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectSSN(tt.text), tt.text)
	}
}

func TestDetectPhone(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"call 555-1234", true},
		{"call 555-123-4567 today", true},
		{"order 12345", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectPhone(tt.text), tt.text)
	}
}

func TestDetectLanguageQuality(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name string
		text *string
		want bool
	}{
		{"missing", nil, false},
		{"clean sentence", str("I want to cancel my order"), false},
		{"symbol run", str("help ###$$$ me"), true},
		{"leading symbols", str("...why is this late"), true},
		{"trailing punctuation", str("Where is my order?"), true},
		{"lone letters", str("x y z order"), true},
		{"single article", str("I need a refund"), false},
		{"empty", str(""), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguageQuality(tt.text))
		})
	}
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("Here is my Social Security number", SensitiveMarkers))
	assert.True(t, ContainsAny("RANDOM text", IrrelevantMarkers))
	assert.False(t, ContainsAny("Where is my order", SensitiveMarkers))
	assert.False(t, ContainsAny("anything", nil))
}
