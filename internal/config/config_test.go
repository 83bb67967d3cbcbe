package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != defaultPort || cfg.DBPath != defaultDBPath || cfg.LogLevel != defaultLogLevel {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RetentionDays != defaultRetentionDays || cfg.OffsiteInterval != 0 {
		t.Errorf("retention = %d interval = %v", cfg.RetentionDays, cfg.OffsiteInterval)
	}
	if cfg.OffsiteEnabled() {
		t.Error("offsite enabled without credentials")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KERNELCMS_PORT", "9090")
	t.Setenv("KERNELCMS_LOG_FORMAT", "JSON")
	t.Setenv("KERNELCMS_S3_BUCKET", "b")
	t.Setenv("KERNELCMS_S3_ACCESS_KEY", "k")
	t.Setenv("KERNELCMS_S3_SECRET_KEY", "s")
	t.Setenv("KERNELCMS_OFFSITE_INTERVAL", "24h")
	t.Setenv("KERNELCMS_TRACING", "true")
	t.Setenv("KERNELCMS_WS_ORIGINS", "admin.example.com, *.example.org ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.LogFormat != "json" || !cfg.Tracing {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.OffsiteInterval != 24*time.Hour {
		t.Errorf("interval = %v", cfg.OffsiteInterval)
	}
	if !cfg.OffsiteEnabled() {
		t.Error("offsite not enabled")
	}
	if want := []string{"admin.example.com", "*.example.org"}; !reflect.DeepEqual(cfg.WSOrigins, want) {
		t.Errorf("origins = %v, want %v", cfg.WSOrigins, want)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	tests := []struct{ key, value string }{
		{"KERNELCMS_RETENTION_DAYS", "soon"},
		{"KERNELCMS_RETENTION_DAYS", "-1"},
		{"KERNELCMS_OFFSITE_INTERVAL", "daily"},
		{"KERNELCMS_TRACING", "maybe"},
		{"KERNELCMS_LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
