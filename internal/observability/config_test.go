package observability

import (
	"testing"

	"github.com/smallbiznis/smartinvoice/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigAuthorityDebugForcesDebugLogging(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DEPLOYMENT_ENV", "production")

	quiet := LoadConfig(config.Config{AppName: "smartinvoice", Environment: "production"})
	assert.False(t, quiet.Debug())
	assert.Equal(t, "warn", quiet.EffectiveLogLevel())

	loud := LoadConfig(config.Config{
		AppName:     "smartinvoice",
		Environment: "production",
		Authority:   config.AuthorityConfig{Debug: true},
	})
	assert.True(t, loud.Debug())
	assert.Equal(t, "debug", loud.EffectiveLogLevel())
	assert.Equal(t, "debug", provideLoggerConfig(loud).Level)
}

func TestLoadConfigDefaultsServiceName(t *testing.T) {
	cfg := LoadConfig(config.Config{})
	assert.Equal(t, "smartinvoice", cfg.ServiceName)
}
