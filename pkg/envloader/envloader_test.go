package envloader

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	type Config struct {
		Config    string        `env:"DECOY_CONFIG" envDefault:"decoy.yaml"`
		Port      int           `env:"DECOY_PORT" envDefault:"8080"`
		Transport string        `env:"DECOY_TRANSPORT"`
		Timeout   time.Duration `env:"DECOY_TIMEOUT" envDefault:"10s"`
		Untagged  string
	}

	cfg := &Config{Untagged: "original"}
	require.NoError(t, LoadWith(lookupFrom(nil), cfg))
	assert.Equal(t, "decoy.yaml", cfg.Config)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "", cfg.Transport)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "original", cfg.Untagged)

	cfg = &Config{}
	require.NoError(t, LoadWith(lookupFrom(map[string]string{
		"DECOY_CONFIG":    "s3://bucket/decoy.yaml",
		"DECOY_PORT":      "9090",
		"DECOY_TRANSPORT": "box",
		"DECOY_TIMEOUT":   "250ms",
	}), cfg))
	assert.Equal(t, "s3://bucket/decoy.yaml", cfg.Config)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "box", cfg.Transport)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
}

func TestLoad_Environment(t *testing.T) {
	type Config struct {
		Level string `env:"DECOY_TEST_LEVEL" envDefault:"info"`
	}

	t.Setenv("DECOY_TEST_LEVEL", "debug")
	cfg := &Config{}
	require.NoError(t, Load(cfg))
	assert.Equal(t, "debug", cfg.Level)

	// variável vazia cai no padrão
	t.Setenv("DECOY_TEST_LEVEL", "")
	cfg = &Config{}
	require.NoError(t, Load(cfg))
	assert.Equal(t, "info", cfg.Level)
}

func TestLoad_TypesAndNesting(t *testing.T) {
	type Database struct {
		DSN     string `env:"DB_DSN"`
		MaxConn uint16 `env:"DB_MAX_CONN" envDefault:"4"`
	}
	type Config struct {
		Database Database
		Cache    *Database
		Debug    bool      `env:"DEBUG"`
		Ratio    float64   `env:"RATIO"`
		Servers  []string  `env:"SERVERS"`
		Ports    []int     `env:"PORTS"`
		Small    int8      `env:"SMALL"`
		Ignored  []float32 `env:"NOT_SET"`
	}

	cfg := &Config{}
	require.NoError(t, LoadWith(lookupFrom(map[string]string{
		"DB_DSN":  "postgres://localhost/zoo",
		"DEBUG":   "TRUE",
		"RATIO":   "0.5",
		"SERVERS": "zoo, farm,,",
		"PORTS":   "8080,8081",
		"SMALL":   "-7",
	}), cfg))

	assert.Equal(t, "postgres://localhost/zoo", cfg.Database.DSN)
	assert.Equal(t, uint16(4), cfg.Database.MaxConn)
	require.NotNil(t, cfg.Cache)
	assert.Equal(t, "postgres://localhost/zoo", cfg.Cache.DSN)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 0.5, cfg.Ratio)
	assert.Equal(t, []string{"zoo", "farm"}, cfg.Servers)
	assert.Equal(t, []int{8080, 8081}, cfg.Ports)
	assert.Equal(t, int8(-7), cfg.Small)
	assert.Nil(t, cfg.Ignored)
}

func TestLoad_Errors(t *testing.T) {
	var invalid *InvalidConfigError
	assert.ErrorAs(t, Load("not a pointer"), &invalid)
	n := 1
	assert.ErrorAs(t, Load(&n), &invalid)
	assert.ErrorAs(t, Load(nil), &invalid)

	type Port struct {
		Port int `env:"PORT"`
	}
	err := LoadWith(lookupFrom(map[string]string{"PORT": "abc"}), &Port{})
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "Port", fieldErr.FieldName)
	var numErr *strconv.NumError
	assert.True(t, errors.As(err, &numErr))

	type Overflow struct {
		Small int8 `env:"SMALL"`
	}
	assert.Error(t, LoadWith(lookupFrom(map[string]string{"SMALL": "300"}), &Overflow{}))

	type Unsupported struct {
		Tags map[string]string `env:"TAGS"`
	}
	var unsupported *UnsupportedTypeError
	assert.ErrorAs(t, LoadWith(lookupFrom(map[string]string{"TAGS": "a=b"}), &Unsupported{}), &unsupported)
}

func TestMustLoad(t *testing.T) {
	assert.Panics(t, func() { MustLoad(42) })
}
