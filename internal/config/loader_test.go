package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/futsalrank/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars(t)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New(ctx))
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			clearConfigEnvVars(t)
			t.Setenv("FUTSAL_ADDR", ":8080")
			t.Setenv("FUTSAL_HYBRID_ALPHA", "0.7")
			t.Setenv("FUTSAL_COOLDOWN_PERIOD", "12h")
			t.Setenv("FUTSAL_NOTIFY_WORKER_COUNT", "4")
			t.Setenv("FUTSAL_NOTIFY_BREAKER_FAILURES", "9")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.HybridAlpha, convey.ShouldEqual, 0.7)
				convey.So(cfg.CooldownPeriod, convey.ShouldEqual, 12*time.Hour)
				convey.So(cfg.NotifyWorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.NotifyBreakerFailures, convey.ShouldEqual, uint32(9))
				convey.So(cfg.CandidatePool, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			clearConfigEnvVars(t)
			path := writeConfigFile(t, `
addr: ":9090"
log_format: json
candidate_pool: 20
cooldown_period: 48h
notify_queue_size: 64
`)
			t.Setenv("FUTSAL_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.CandidatePool, convey.ShouldEqual, 20)
				convey.So(cfg.CooldownPeriod, convey.ShouldEqual, 48*time.Hour)
				convey.So(cfg.NotifyQueueSize, convey.ShouldEqual, 64)
			})

			convey.Convey("And env vars take precedence over the file", func() {
				t.Setenv("FUTSAL_CANDIDATE_POOL", "3")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.CandidatePool, convey.ShouldEqual, 3)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When the config file does not exist", func() {
			clearConfigEnvVars(t)
			t.Setenv("FUTSAL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file is not valid YAML", func() {
			clearConfigEnvVars(t)
			t.Setenv("FUTSAL_CONFIG", writeConfigFile(t, "addr: [unterminated"))

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value is out of range", func() {
			clearConfigEnvVars(t)
			t.Setenv("FUTSAL_HYBRID_ALPHA", "2")

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a duration is malformed", func() {
			clearConfigEnvVars(t)
			t.Setenv("FUTSAL_COOLDOWN_PERIOD", "soon")

			_, err := config.Load(ctx)

			convey.Convey("Then decoding fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// clearConfigEnvVars blanks out any FUTSAL_ variable inherited from the
// environment for the duration of the test.
func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix) {
			t.Setenv(key, "")
			_ = os.Unsetenv(key)
		}
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "futsal.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
