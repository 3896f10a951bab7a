package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2390
	defaultEnv        = "development"
	defaultRedisURL   = "redis://localhost:6379/0"
	defaultUploads    = "./data/uploads"
	defaultArtifacts  = "./data/artifacts"
	defaultWork       = "./data/work"
	defaultFFmpeg     = "ffmpeg"
	defaultFFprobe    = "ffprobe"
	defaultPdftoppm   = "pdftoppm"
	// 6x the 72dpi PDF point raster, enough headroom for 4K frames.
	defaultRasterDPI = 432
)

// Load reads the YAML config file, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing file falls through to pure defaults + env.
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = defaultRedisURL
	}
	if cfg.Paths.Uploads == "" {
		cfg.Paths.Uploads = defaultUploads
	}
	if cfg.Paths.Artifacts == "" {
		cfg.Paths.Artifacts = defaultArtifacts
	}
	if cfg.Paths.Work == "" {
		cfg.Paths.Work = defaultWork
	}
	if cfg.Render.FFmpegBin == "" {
		cfg.Render.FFmpegBin = defaultFFmpeg
	}
	if cfg.Render.FFprobeBin == "" {
		cfg.Render.FFprobeBin = defaultFFprobe
	}
	if cfg.Rasterizer.PdftoppmBin == "" {
		cfg.Rasterizer.PdftoppmBin = defaultPdftoppm
	}
	if cfg.Rasterizer.DPI == 0 {
		cfg.Rasterizer.DPI = defaultRasterDPI
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("NARRAY_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("NARRAY_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("NARRAY_API_KEY"); v != "" {
		// A bare key from the environment configures a single default
		// provider when the file declares none.
		if len(cfg.AI.Providers) == 0 {
			cfg.AI.Providers = []Provider{{
				ID:      "default",
				Name:    "default",
				Type:    "openai",
				APIKey:  v,
				Enabled: true,
			}}
		} else {
			for i := range cfg.AI.Providers {
				if cfg.AI.Providers[i].APIKey == "" && cfg.AI.Providers[i].KeyFile == "" {
					cfg.AI.Providers[i].APIKey = v
				}
			}
		}
	}
}

func validate(cfg *AppConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	for i, p := range cfg.AI.Providers {
		if !p.Enabled {
			continue
		}
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("ai provider #%d: id is required", i)
		}
		if strings.TrimSpace(p.APIKey) == "" && strings.TrimSpace(p.KeyFile) == "" {
			return fmt.Errorf("ai provider %q: api_key or key_file is required", p.ID)
		}
	}
	if s3 := cfg.Render.S3; s3 != nil && s3.Enable {
		if s3.Bucket == "" || s3.Region == "" || s3.AccessKeyID == "" || s3.SecretAccessKey == "" {
			return fmt.Errorf("incomplete s3 config: bucket/region/access_key_id/secret_access_key are required")
		}
	}
	return nil
}

// EnsureDirs creates the working directories if they are missing.
func EnsureDirs(cfg *AppConfig) error {
	for _, dir := range []string{cfg.Paths.Uploads, cfg.Paths.Artifacts, cfg.Paths.Work} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}
