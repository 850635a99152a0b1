package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "postgres://sigma:hunter2@db:5432/dash?sslmode=disable", want: "postgres://sigma:xxxxx@db:5432/dash?sslmode=disable"},
		{in: "postgres://db:5432/dash", want: "postgres://db:5432/dash"},
		{in: "postgres://sigma@db/dash", want: "postgres://sigma@db/dash"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeURL(tt.in))
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("SIGMA_TEST_VALUE", "")
	assert.Equal(t, "fallback", envOr("SIGMA_TEST_VALUE", "fallback"))

	t.Setenv("SIGMA_TEST_VALUE", "set")
	assert.Equal(t, "set", envOr("SIGMA_TEST_VALUE", "fallback"))
}
