package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int              `yaml:"port"`
	Env            string           `yaml:"env"` // "development" | "production"
	RedisURL       string           `yaml:"redis_url"`
	AllowedOrigins []string         `yaml:"allowed_origins"`
	Paths          PathsConfig      `yaml:"paths"`
	AI             AIConfig         `yaml:"ai"`
	Render         RenderConfig     `yaml:"render"`
	Rasterizer     RasterizerConfig `yaml:"rasterizer"`
}

// PathsConfig locates the on-disk working directories.
type PathsConfig struct {
	Uploads   string `yaml:"uploads"`   // slide source images
	Artifacts string `yaml:"artifacts"` // finished videos
	Work      string `yaml:"work"`      // encoder scratch space
}

// AIConfig configures the generation providers.
type AIConfig struct {
	Providers   []Provider `yaml:"providers"`
	ScriptModel string     `yaml:"script_model"` // override for narration generation
	SpeechModel string     `yaml:"speech_model"` // override for speech synthesis
}

// Provider is one configured generation backend.
type Provider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // OpenAI | OpenAI-Compatible | Anthropic
	APIKey       string `yaml:"api_key"`
	KeyFile      string `yaml:"key_file"` // re-read per call when set (external key vault)
	Endpoint     string `yaml:"endpoint,omitempty"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

// RenderConfig configures the video recording sink.
type RenderConfig struct {
	FFmpegBin  string     `yaml:"ffmpeg_bin"`
	FFprobeBin string     `yaml:"ffprobe_bin"`
	S3         *S3Options `yaml:"s3,omitempty"`
}

// S3Options enables uploading finished artifacts to S3-compatible storage.
type S3Options struct {
	Enable          bool   `yaml:"enable"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	PathStyleAccess bool   `yaml:"path_style_access"`
	CustomDomain    string `yaml:"custom_domain,omitempty"`
}

// RasterizerConfig configures the delegated PDF page rasterizer.
type RasterizerConfig struct {
	PdftoppmBin string `yaml:"pdftoppm_bin"`
	DPI         int    `yaml:"dpi"`
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env != "production" }
