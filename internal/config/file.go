package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig é o formato do arquivo YAML. Campos ausentes mantêm o valor atual.
type FileConfig struct {
	ListenAddr  string `yaml:"listenAddr"`
	UpstreamURL string `yaml:"upstreamUrl"`
	AppEnv      string `yaml:"appEnv"`
	JWTSecret   string `yaml:"jwtSecret"`

	RateLimit *FileRateLimit `yaml:"rateLimit"`
	Redis     *FileRedis     `yaml:"redis"`
	Stats     *FileStats     `yaml:"stats"`
	OTP       *FileOTP       `yaml:"otp"`
	Database  *FileDatabase  `yaml:"database"`

	SessionCheckPath string   `yaml:"sessionCheckPath"`
	AuthPaths        []string `yaml:"authPaths"`
}

type FileRateLimit struct {
	Enabled    *bool    `yaml:"enabled"`
	WindowMs   int64    `yaml:"windowMs"`
	MaxGeneral int64    `yaml:"maxGeneral"`
	MaxAuth    int64    `yaml:"maxAuth"`
	KeyPrefix  string   `yaml:"keyPrefix"`
	KeyHeader  string   `yaml:"keyHeader"`
	AddHeaders *bool    `yaml:"addHeaders"`
	SkipRoutes []string `yaml:"skipRoutes"`
}

type FileRedis struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         *int   `yaml:"db"`
	OpTimeout  string `yaml:"opTimeout"`
	MaxRetries *int   `yaml:"maxRetries"`
}

type FileStats struct {
	Enabled   *bool  `yaml:"enabled"`
	Prefix    string `yaml:"prefix"`
	TTL       string `yaml:"ttl"`
	Bucket    string `yaml:"bucket"`
	TrackKeys *bool  `yaml:"trackKeys"`
	OTel      *bool  `yaml:"otel"`
}

type FileOTP struct {
	Secret          string `yaml:"secret"`
	TTL             string `yaml:"ttl"`
	MaxAttempts     int    `yaml:"maxAttempts"`
	Digits          int    `yaml:"digits"`
	SweepEvery      string `yaml:"sweepEvery"`
	ExposeCode      *bool  `yaml:"exposeCode"`
	DeliveryURL     string `yaml:"deliveryUrl"`
	DeliveryTimeout string `yaml:"deliveryTimeout"`
}

type FileDatabase struct {
	Dialect     string `yaml:"dialect"`
	DSN         string `yaml:"dsn"`
	AutoMigrate *bool  `yaml:"autoMigrate"`
}

func LoadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, err
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, err
	}
	return fc, nil
}

func (fc FileConfig) apply(cfg *Config) error {
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.UpstreamURL, fc.UpstreamURL)
	setString(&cfg.AppEnv, fc.AppEnv)
	setString(&cfg.JWTSecret, fc.JWTSecret)
	setString(&cfg.SessionCheckPath, fc.SessionCheckPath)
	if len(fc.AuthPaths) > 0 {
		cfg.AuthPaths = fc.AuthPaths
	}

	if r := fc.RateLimit; r != nil {
		setBool(&cfg.Rate.Enabled, r.Enabled)
		if r.WindowMs > 0 {
			cfg.Rate.Window = time.Duration(r.WindowMs) * time.Millisecond
		}
		setInt64(&cfg.Rate.MaxGeneral, r.MaxGeneral)
		setInt64(&cfg.Rate.MaxAuth, r.MaxAuth)
		setString(&cfg.Rate.KeyPrefix, r.KeyPrefix)
		setString(&cfg.Rate.KeyHeader, r.KeyHeader)
		setBool(&cfg.Rate.AddHeaders, r.AddHeaders)
		if len(r.SkipRoutes) > 0 {
			cfg.Rate.SkipRoutes = r.SkipRoutes
		}
	}

	if r := fc.Redis; r != nil {
		setString(&cfg.Redis.Addr, r.Addr)
		setString(&cfg.Redis.Password, r.Password)
		if r.DB != nil {
			cfg.Redis.DB = *r.DB
		}
		if err := setDuration(&cfg.Redis.OpTimeout, r.OpTimeout, "redis.opTimeout"); err != nil {
			return err
		}
		if r.MaxRetries != nil {
			cfg.Redis.MaxRetries = *r.MaxRetries
		}
	}

	if s := fc.Stats; s != nil {
		setBool(&cfg.Stats.Enabled, s.Enabled)
		setString(&cfg.Stats.Prefix, s.Prefix)
		if err := setDuration(&cfg.Stats.TTL, s.TTL, "stats.ttl"); err != nil {
			return err
		}
		setString(&cfg.Stats.Bucket, s.Bucket)
		setBool(&cfg.Stats.TrackKeys, s.TrackKeys)
		setBool(&cfg.Stats.OTel, s.OTel)
	}

	if o := fc.OTP; o != nil {
		setString(&cfg.OTP.Secret, o.Secret)
		if err := setDuration(&cfg.OTP.TTL, o.TTL, "otp.ttl"); err != nil {
			return err
		}
		if o.MaxAttempts > 0 {
			cfg.OTP.MaxAttempts = o.MaxAttempts
		}
		if o.Digits > 0 {
			cfg.OTP.Digits = o.Digits
		}
		if err := setDuration(&cfg.OTP.SweepEvery, o.SweepEvery, "otp.sweepEvery"); err != nil {
			return err
		}
		setBool(&cfg.OTP.ExposeCode, o.ExposeCode)
		setString(&cfg.OTP.DeliveryURL, o.DeliveryURL)
		if err := setDuration(&cfg.OTP.DeliveryTimeout, o.DeliveryTimeout, "otp.deliveryTimeout"); err != nil {
			return err
		}
	}

	if d := fc.Database; d != nil {
		setString(&cfg.DB.Dialect, d.Dialect)
		setString(&cfg.DB.DSN, d.DSN)
		setBool(&cfg.DB.AutoMigrate, d.AutoMigrate)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt64(dst *int64, v int64) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, field string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}
