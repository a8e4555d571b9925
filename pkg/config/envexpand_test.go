package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("LABOUR_ACTOR_TEST_VAR", "expanded")

	out := ExpandEnv([]byte("value: ${LABOUR_ACTOR_TEST_VAR}"))
	assert.Equal(t, "value: expanded", string(out))
}

func TestExpandEnvMissingVarIsEmpty(t *testing.T) {
	out := ExpandEnv([]byte("value: ${LABOUR_ACTOR_DEFINITELY_UNSET}"))
	assert.Equal(t, "value: ", string(out))
}
