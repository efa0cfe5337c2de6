package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAction_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		a        Action
		expected bool
	}{
		{"click is valid", ActionClick, true},
		{"bookmark is valid", ActionBookmark, true},
		{"skip is valid", ActionSkip, true},
		{"empty is invalid", Action(""), false},
		{"unknown is invalid", Action("dwell"), false},
		{"uppercase is invalid", Action("CLICK"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.IsValid())
		})
	}
}

func TestAction_IsSuccess(t *testing.T) {
	tests := []struct {
		name     string
		a        Action
		expected bool
	}{
		{"click is success", ActionClick, true},
		{"bookmark is success", ActionBookmark, true},
		{"skip is not success", ActionSkip, false},
		{"unknown is not success", Action("dwell"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.IsSuccess())
		})
	}
}
