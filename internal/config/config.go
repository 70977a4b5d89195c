// Package config loads configuration from environment variables and an
// optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all yanode configuration.
type Config struct {
	// Server
	ListenAddr  string `yaml:"listen_addr" env:"LISTEN_ADDR" env-default:":8080"`
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR" env-default:":9090"`

	// Logging
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`
	LogFile   string `yaml:"log_file" env:"LOG_FILE" env-default:"stderr"`

	// Database (optional; history falls back to memory)
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`

	Drive   Drive   `yaml:"drive"`
	S3      S3      `yaml:"s3"`
	Index   Index   `yaml:"index"`
	Search  Search  `yaml:"search"`
	Extract Extract `yaml:"extract"`
}

// Drive configures the remote directory backend.
type Drive struct {
	Backend      string        `yaml:"backend" env:"DRIVE_BACKEND" env-default:"dooray"`
	BaseURL      string        `yaml:"base_url" env:"DRIVE_BASE_URL" env-default:"https://api.dooray.com"`
	APIToken     string        `yaml:"api_token" env:"DRIVE_API_TOKEN"`
	Timeout      time.Duration `yaml:"timeout" env:"DRIVE_TIMEOUT" env-default:"30s"`
	RatePerSec   float64       `yaml:"rate_per_sec" env:"DRIVE_RATE_PER_SEC" env-default:"10"`
	RateBurst    int           `yaml:"rate_burst" env:"DRIVE_RATE_BURST" env-default:"5"`
	MaxAttempts  int           `yaml:"max_attempts" env:"DRIVE_MAX_ATTEMPTS" env-default:"6"`
	UIHost       string        `yaml:"ui_host" env:"DRIVE_UI_HOST" env-default:"smhrd.dooray.com"`
	PageSize     int           `yaml:"page_size" env:"DRIVE_PAGE_SIZE" env-default:"50"`
	BlobCacheDir string        `yaml:"blob_cache_dir" env:"BLOB_CACHE_DIR" env-default:"/tmp/yanode-blobs"`
	BlobCacheMB  int64         `yaml:"blob_cache_mb" env:"BLOB_CACHE_MB" env-default:"512"`
}

// S3 configures the object-store drive backend.
type S3 struct {
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:"http://localhost:9000"`
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
}

// Index configures the index cache.
type Index struct {
	TTL          time.Duration `yaml:"ttl" env:"INDEX_TTL" env-default:"3600s"`
	BuildTimeout time.Duration `yaml:"build_timeout" env:"INDEX_BUILD_TIMEOUT" env-default:"300s"`
}

// Search configures the search cascade. The defaults are the tuned values
// the cascade was calibrated with.
type Search struct {
	Budget         time.Duration `yaml:"budget" env:"SEARCH_BUDGET" env-default:"12s"`
	FastBudget     time.Duration `yaml:"fast_budget" env:"SEARCH_FAST_BUDGET" env-default:"3500ms"`
	Workers        int           `yaml:"workers" env:"SEARCH_WORKERS" env-default:"4"`
	DeepCapNoName  int           `yaml:"deep_cap_no_name" env:"SEARCH_DEEP_CAP_NO_NAME" env-default:"8"`
	DeepCapName    int           `yaml:"deep_cap_name" env:"SEARCH_DEEP_CAP_NAME" env-default:"4"`
	RemoteLimit    int           `yaml:"remote_limit" env:"SEARCH_REMOTE_LIMIT" env-default:"10"`
	NameCandidates int           `yaml:"name_candidates" env:"SEARCH_NAME_CANDIDATES" env-default:"30"`
	NameTop        int           `yaml:"name_top" env:"SEARCH_NAME_TOP" env-default:"10"`
	PreviewClip    int           `yaml:"preview_clip" env:"SEARCH_PREVIEW_CLIP" env-default:"1200"`

	StrictCaps Caps `yaml:"strict_caps" env-prefix:"SEARCH_STRICT_"`
	BroadCaps  Caps `yaml:"broad_caps" env-prefix:"SEARCH_BROAD_"`
	// BroadPDFNameCap replaces BroadCaps.PDF when some name signal exists.
	BroadPDFNameCap int `yaml:"broad_pdf_name_cap" env:"SEARCH_BROAD_PDF_NAME_CAP" env-default:"24"`
}

// Caps bounds how many candidates of each format Stage B samples.
type Caps struct {
	TXT  int `yaml:"txt" env:"TXT"`
	HWP  int `yaml:"hwp" env:"HWP"`
	PDF  int `yaml:"pdf" env:"PDF"`
	PPT  int `yaml:"ppt" env:"PPT"`
	XLSX int `yaml:"xlsx" env:"XLSX"`
	DOCX int `yaml:"docx" env:"DOCX"`
}

// Extract configures extraction budgets.
type Extract struct {
	PDFSamplePages int   `yaml:"pdf_sample_pages" env:"EXTRACT_PDF_SAMPLE_PAGES" env-default:"6"`
	OCRSamplePages int   `yaml:"ocr_sample_pages" env:"EXTRACT_OCR_SAMPLE_PAGES" env-default:"3"`
	DeepPages      int   `yaml:"deep_pages" env:"EXTRACT_DEEP_PAGES" env-default:"12"`
	OCRStride      int   `yaml:"ocr_stride" env:"EXTRACT_OCR_STRIDE" env-default:"2"`
	SampleBytes    int64 `yaml:"sample_bytes" env:"EXTRACT_SAMPLE_BYTES" env-default:"65536"`
	SniffCacheSize int   `yaml:"sniff_cache_size" env:"EXTRACT_SNIFF_CACHE_SIZE" env-default:"256"`
}

// DefaultStrictCaps are the per-format sampling caps for a restricted scope
// with no name signal.
func DefaultStrictCaps() Caps {
	return Caps{TXT: 12, HWP: 12, PDF: 16, PPT: 6, XLSX: 4, DOCX: 12}
}

// DefaultBroadCaps are the per-format sampling caps otherwise.
func DefaultBroadCaps() Caps {
	return Caps{TXT: 40, HWP: 40, PDF: 120, PPT: 12, XLSX: 6, DOCX: 40}
}

// Load reads configuration. When CONFIG_PATH is set the YAML file is read
// first and environment variables override it.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.Search.StrictCaps = DefaultStrictCaps()
	cfg.Search.BroadCaps = DefaultBroadCaps()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend-specific requirements.
func (c *Config) Validate() error {
	switch c.Drive.Backend {
	case "dooray":
		if c.Drive.APIToken == "" {
			return fmt.Errorf("DRIVE_API_TOKEN is required for the dooray backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown DRIVE_BACKEND %q", c.Drive.Backend)
	}
	if c.Search.Workers < 1 {
		return fmt.Errorf("SEARCH_WORKERS must be at least 1")
	}
	if c.Drive.PageSize < 1 {
		return fmt.Errorf("DRIVE_PAGE_SIZE must be at least 1")
	}
	return nil
}

// Usage returns the environment variable help text.
func Usage() string {
	desc, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return desc
}
