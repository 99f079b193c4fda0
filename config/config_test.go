package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smbus-go/errcode"
	"smbus-go/smbus"
)

const sample = `
buses:
  - name: i2c-0
    algorithm: mock
    timeout_ms: 10
    retries: 2
  - name: i2c-1
    algorithm: serialbridge
    retries: -1
    max_clients: 4
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	want := &Config{Buses: []Bus{
		{Name: "i2c-0", Algorithm: "mock", TimeoutMS: 10, Retries: 2},
		{Name: "i2c-1", Algorithm: "serialbridge", Retries: -1, MaxClients: 4},
	}}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestAdapterConfig(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	ac := cfg.Buses[0].AdapterConfig()
	assert.Equal(t, 10*time.Millisecond, ac.Timeout)
	assert.Equal(t, 2, ac.Retries)

	// retries: -1 pins retries to zero; absent tunables defer to the
	// adapter defaults.
	ac = cfg.Buses[1].AdapterConfig()
	assert.Equal(t, 0, ac.Retries)
	a := smbus.NewAdapter(cfg.Buses[1].Name, smbus.NewMock("m"), ac)
	assert.Equal(t, 0, a.Retries())
	assert.Equal(t, 4, a.MaxClients())
	assert.NotZero(t, a.Timeout())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		code errcode.Code
	}{
		{"empty name", "buses:\n  - algorithm: mock\n", errcode.InvalidParams},
		{"no algorithm", "buses:\n  - name: i2c-0\n", errcode.InvalidParams},
		{"duplicate", "buses:\n  - {name: b, algorithm: m}\n  - {name: b, algorithm: m}\n", errcode.Duplicate},
		{"negative timeout", "buses:\n  - {name: b, algorithm: m, timeout_ms: -5}\n", errcode.InvalidParams},
		{"not yaml", ":\n  -", errcode.InvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Equal(t, tc.code, errcode.Of(err))
		})
	}
}
