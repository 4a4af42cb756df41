// Package config loads the server settings.
//
// Values are layered: built-in defaults, then a .env file, then the process
// environment, then command-line flags. Later layers win.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"couple-diary/internal/auth"
	"couple-diary/internal/storage"

	"github.com/joho/godotenv"
)

// Storage backends for uploaded photos.
const (
	BackendDisk = "disk"
	BackendS3   = "s3"
)

// Config holds runtime settings for the diary server.
type Config struct {
	Port int

	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// SessionSecret signs session cookies. When none is configured a random
	// one is generated and SecretGenerated is set.
	SessionSecret   []byte
	SecretGenerated bool
	SessionTTL      time.Duration
	SecureCookie    bool

	TemplateDir string
	StaticDir   string

	StorageBackend string
	UploadDir      string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	MaxUploadBytes int64

	LogLevel  string
	LogFormat string
}

// Defaults returns the development defaults.
func Defaults() *Config {
	return &Config{
		Port:           3000,
		DBDriver:       storage.DriverSQLite,
		DBPath:         "diary.db",
		DBHost:         "localhost",
		DBPort:         5432,
		DBName:         "couple_diary",
		SessionTTL:     30 * 24 * time.Hour,
		TemplateDir:    "web/templates",
		StaticDir:      "web/static",
		StorageBackend: BackendDisk,
		UploadDir:      "uploads",
		S3Region:       "us-east-1",
		MaxUploadBytes: 10 << 20,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load builds a Config from defaults, the .env file in the working directory,
// the environment and args (without the program name).
func Load(args []string) (*Config, error) {
	return load(args, ".env", os.LookupEnv)
}

func load(args []string, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()

	fileEnv := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileEnv = vars
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}

	if err := cfg.applyEnv(get); err != nil {
		return nil, err
	}
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if len(cfg.SessionSecret) == 0 {
		secret, err := auth.GenerateSecret(32)
		if err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		cfg.SessionSecret = secret
		cfg.SecretGenerated = true
	}
	return cfg, nil
}

func (c *Config) applyEnv(get func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := get(key); ok && v != "" {
			*dst = v
		}
	}

	var errs []error
	num := func(key string, dst *int) {
		if v, ok := get(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	num("PORT", &c.Port)
	str("DB_DRIVER", &c.DBDriver)
	str("DB_PATH", &c.DBPath)
	str("DB_HOST", &c.DBHost)
	num("DB_PORT", &c.DBPort)
	str("DB_USER", &c.DBUser)
	str("DB_PASSWORD", &c.DBPassword)
	str("DB_NAME", &c.DBName)
	str("TEMPLATE_DIR", &c.TemplateDir)
	str("STATIC_DIR", &c.StaticDir)
	str("STORAGE_BACKEND", &c.StorageBackend)
	str("UPLOAD_DIR", &c.UploadDir)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_ENDPOINT", &c.S3Endpoint)
	str("S3_ACCESS_KEY", &c.S3AccessKey)
	str("S3_SECRET_KEY", &c.S3SecretKey)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	if v, ok := get("SESSION_SECRET"); ok && v != "" {
		c.SessionSecret = []byte(v)
	}
	if v, ok := get("SESSION_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SESSION_TTL: %w", err))
		} else {
			c.SessionTTL = d
		}
	}
	if v, ok := get("SECURE_COOKIE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SECURE_COOKIE: %w", err))
		} else {
			c.SecureCookie = b
		}
	}
	if v, ok := get("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err))
		} else {
			c.MaxUploadBytes = n
		}
	}
	return errors.Join(errs...)
}

func (c *Config) parseFlags(args []string) error {
	flags := flag.NewFlagSet("server", flag.ContinueOnError)

	flags.IntVar(&c.Port, "port", c.Port, "HTTP port to listen on")
	flags.StringVar(&c.DBDriver, "db-driver", c.DBDriver, "database driver (sqlite or pgx)")
	flags.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path")
	flags.StringVar(&c.TemplateDir, "templates", c.TemplateDir, "template directory")
	flags.StringVar(&c.StaticDir, "static", c.StaticDir, "static asset directory")
	flags.StringVar(&c.StorageBackend, "storage", c.StorageBackend, "photo storage backend (disk or s3)")
	flags.StringVar(&c.UploadDir, "uploads", c.UploadDir, "upload directory for the disk backend")
	flags.DurationVar(&c.SessionTTL, "session-ttl", c.SessionTTL, "session lifetime")
	flags.BoolVar(&c.SecureCookie, "secure-cookie", c.SecureCookie, "mark the session cookie Secure")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format (text or json)")

	return flags.Parse(args)
}

func (c *Config) validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	switch c.DBDriver {
	case storage.DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	case storage.DriverPostgres:
		if c.DBName == "" {
			errs = append(errs, errors.New("DB_NAME is required for pgx"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}
	switch c.StorageBackend {
	case BackendDisk:
		if c.UploadDir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR is required for the disk backend"))
		}
	case BackendS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// DSN returns the data source name for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver != storage.DriverPostgres {
		return c.DBPath
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	switch {
	case c.DBUser != "" && c.DBPassword != "":
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	case c.DBUser != "":
		u.User = url.User(c.DBUser)
	}
	return u.String()
}

// String summarises the config without credentials.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "port=%d db_driver=%s storage=%s", c.Port, c.DBDriver, c.StorageBackend)
	if c.DBDriver == storage.DriverSQLite {
		fmt.Fprintf(&b, " db_path=%s", c.DBPath)
	} else {
		fmt.Fprintf(&b, " db_host=%s db_name=%s", c.DBHost, c.DBName)
	}
	return b.String()
}
