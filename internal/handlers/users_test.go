package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRole(t *testing.T) {
	tests := []struct {
		name          string
		requested     string
		requesterRole string
		want          string
	}{
		{"admin grants admin", "admin", "admin", "admin"},
		{"user cannot grant admin", "admin", "user", "user"},
		{"empty role defaults to user", "", "admin", "user"},
		{"plain user request", "user", "admin", "user"},
		{"unknown role downgraded", "superuser", "admin", "user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveRole(tt.requested, tt.requesterRole))
		})
	}
}
