package actor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/pkg/actor"
	"github.com/aretw0/weft/pkg/token"
)

func TestDecodeParams(t *testing.T) {
	type config struct {
		Prefix   string   `mapstructure:"prefix"`
		Capacity int      `mapstructure:"capacity"`
		Tags     []string `mapstructure:"tags"`
	}

	params := map[string]token.Token{
		"prefix":   token.String("--- "),
		"capacity": token.Number(8),
		"tags":     token.List(token.String("a"), token.String("b")),
	}

	var cfg config
	require.NoError(t, actor.DecodeParams(params, &cfg))
	assert.Equal(t, "--- ", cfg.Prefix)
	assert.Equal(t, 8, cfg.Capacity)
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
}

func TestDecodeParamsRejectsUnknownKeys(t *testing.T) {
	type config struct {
		Prefix string `mapstructure:"prefix"`
	}
	params := map[string]token.Token{
		"prefix":  token.String("x"),
		"unknown": token.Bool(true),
	}
	var cfg config
	assert.Error(t, actor.DecodeParams(params, &cfg))
}

func TestFaultf(t *testing.T) {
	err := actor.Faultf("upstream %s unreachable", "camera")
	var fault *actor.FireFault
	require.ErrorAs(t, err, &fault)
	assert.Contains(t, fault.Error(), "camera")
}
