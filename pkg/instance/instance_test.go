package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrefersOverride(t *testing.T) {
	t.Setenv(EnvInstanceID, "api-7")
	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "api-7", GetID())
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv(EnvInstanceID, "")
	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "web.1", GetID())
}

func TestGetIDNeverEmpty(t *testing.T) {
	t.Setenv(EnvInstanceID, "")
	t.Setenv("DYNO", "")
	assert.NotEmpty(t, GetID())
}
