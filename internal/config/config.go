package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

const DefaultPath = "internal/config/local.yaml"

// Capture sources
const (
	SourceHTTP   = "http"
	SourceKafka  = "kafka"
	SourceDevice = "device"
)

// Config is the full appliance configuration. It is immutable after LoadConfig.
type Config struct {
	Node struct {
		Name string `yaml:"name" env:"NODE_NAME" validate:"required"`
	} `yaml:"node"`

	Monitoring struct {
		Start    string `yaml:"start" env:"MONITORING_START" validate:"required"`
		End      string `yaml:"end" env:"MONITORING_END" validate:"required"`
		Timezone string `yaml:"timezone" env:"MONITORING_TIMEZONE"`
	} `yaml:"monitoring"`

	Alert struct {
		CooldownSeconds int           `yaml:"cooldown_seconds" env:"ALERT_COOLDOWN_SECONDS" validate:"gte=0"`
		QueueSize       int           `yaml:"queue_size" env:"ALERT_QUEUE_SIZE" validate:"gte=1"`
		SendTimeout     time.Duration `yaml:"send_timeout" env:"ALERT_SEND_TIMEOUT" validate:"gt=0"`
		ShutdownGrace   time.Duration `yaml:"shutdown_grace" env:"ALERT_SHUTDOWN_GRACE" validate:"gt=0"`
	} `yaml:"alert"`

	Detection struct {
		Threshold float64       `yaml:"threshold" env:"DETECTION_THRESHOLD" validate:"gt=0,lte=1"`
		MinArea   int           `yaml:"min_area" env:"DETECTION_MIN_AREA" validate:"gt=0"`
		Labels    []string      `yaml:"labels" env:"DETECTION_LABELS" envSeparator:","`
		Endpoint  string        `yaml:"endpoint" env:"DETECTION_ENDPOINT"`
		Timeout   time.Duration `yaml:"timeout" env:"DETECTION_TIMEOUT" validate:"gt=0"`
	} `yaml:"detection"`

	Capture struct {
		Source         string        `yaml:"source" env:"CAPTURE_SOURCE" validate:"oneof=http kafka device"`
		SnapshotURL    string        `yaml:"snapshot_url" env:"CAPTURE_SNAPSHOT_URL" validate:"required_if=Source http,omitempty,url"`
		DeviceID       string        `yaml:"device_id" env:"CAPTURE_DEVICE_ID" validate:"required_if=Source device"`
		ModelPath      string        `yaml:"model_path" env:"CAPTURE_MODEL_PATH"`
		ModelConfig    string        `yaml:"model_config" env:"CAPTURE_MODEL_CONFIG"`
		Interval       time.Duration `yaml:"interval" env:"CAPTURE_INTERVAL" validate:"gte=0"`
		BackoffInitial time.Duration `yaml:"backoff_initial" env:"CAPTURE_BACKOFF_INITIAL" validate:"gt=0"`
		BackoffMax     time.Duration `yaml:"backoff_max" env:"CAPTURE_BACKOFF_MAX" validate:"gtefield=BackoffInitial"`
		MaxOutage      time.Duration `yaml:"max_outage" env:"CAPTURE_MAX_OUTAGE" validate:"gte=0"`
	} `yaml:"capture"`

	Evidence struct {
		Dir string `yaml:"dir" env:"EVIDENCE_DIR" validate:"required"`
		Ext string `yaml:"ext" env:"EVIDENCE_EXT" validate:"required,alphanum"`
	} `yaml:"evidence"`

	Email struct {
		Enabled        bool   `yaml:"enabled" env:"EMAIL_ENABLED"`
		SMTPServer     string `yaml:"smtp_server" env:"EMAIL_SMTP_SERVER" validate:"required_if=Enabled true"`
		SMTPPort       int    `yaml:"smtp_port" env:"EMAIL_SMTP_PORT" validate:"required_if=Enabled true,gte=0,lte=65535"`
		SenderEmail    string `yaml:"sender_email" env:"EMAIL_SENDER" validate:"required_if=Enabled true,omitempty,email"`
		SenderPassword string `yaml:"sender_password" env:"EMAIL_PASSWORD"`
		RecipientEmail string `yaml:"recipient_email" env:"EMAIL_RECIPIENT" validate:"required_if=Enabled true,omitempty,email"`
	} `yaml:"email"`

	Pushbullet struct {
		Enabled bool   `yaml:"enabled" env:"PUSHBULLET_ENABLED"`
		APIKey  string `yaml:"api_key" env:"PUSHBULLET_API_KEY" validate:"required_if=Enabled true"`
	} `yaml:"pushbullet"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled" env:"TELEGRAM_ENABLED"`
		BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN" validate:"required_if=Enabled true"`
		ChatID   string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID" validate:"required_if=Enabled true"`
	} `yaml:"telegram"`

	MQTT struct {
		Enabled  bool   `yaml:"enabled" env:"MQTT_ENABLED"`
		Broker   string `yaml:"broker" env:"MQTT_BROKER" validate:"required_if=Enabled true"`
		ClientID string `yaml:"client_id" env:"MQTT_CLIENT_ID"`
		Username string `yaml:"username" env:"MQTT_USERNAME"`
		Password string `yaml:"password" env:"MQTT_PASSWORD"`
		Topic    string `yaml:"topic" env:"MQTT_TOPIC" validate:"required_if=Enabled true"`
		QoS      byte   `yaml:"qos" env:"MQTT_QOS" validate:"lte=2"`
	} `yaml:"mqtt"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"postgres"`

	Minio struct {
		Endpoint   string        `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey  string        `yaml:"access_key" env:"MINIO_ACCESS_KEY" validate:"required_with=Endpoint"`
		SecretKey  string        `yaml:"secret_key" env:"MINIO_SECRET_KEY" validate:"required_with=Endpoint"`
		Bucket     string        `yaml:"bucket" env:"MINIO_BUCKET" validate:"required_with=Endpoint"`
		Secure     bool          `yaml:"secure" env:"MINIO_SECURE"`
		LinkExpiry time.Duration `yaml:"link_expiry" env:"MINIO_LINK_EXPIRY" validate:"gte=0"`
	} `yaml:"minio"`

	Kafka struct {
		Brokers           []string      `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		GroupID           string        `yaml:"group_id" env:"KAFKA_GROUP_ID"`
		FrameTopic        string        `yaml:"frame_topic" env:"FRAME_TOPIC"`
		AlertTopic        string        `yaml:"alert_topic" env:"ALERT_TOPIC"`
		HeartbeatTopic    string        `yaml:"heartbeat_topic" env:"HEARTBEAT_TOPIC"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL" validate:"gt=0"`
		OutboxInterval    time.Duration `yaml:"outbox_interval" env:"OUTBOX_INTERVAL" validate:"gt=0"`
	} `yaml:"kafka"`

	HTTP struct {
		Addr string `yaml:"addr" env:"HTTP_ADDR"`
	} `yaml:"http"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" env:"LOG_FORMAT" validate:"oneof=json console"`
	} `yaml:"log"`
}

// Default fills in operational settings. Safety-relevant settings (monitoring
// window, cooldown, thresholds) have no defaults and must be configured.
func Default() *Config {
	cfg := &Config{}
	cfg.Node.Name = "sentry"
	cfg.Monitoring.Timezone = "Local"
	// unset until the file or env provides it; fails gte=0
	cfg.Alert.CooldownSeconds = -1
	cfg.Alert.QueueSize = 8
	cfg.Alert.SendTimeout = 30 * time.Second
	cfg.Alert.ShutdownGrace = 10 * time.Second
	cfg.Detection.Timeout = 10 * time.Second
	cfg.Capture.Source = SourceHTTP
	cfg.Capture.Interval = time.Second
	cfg.Capture.BackoffInitial = time.Second
	cfg.Capture.BackoffMax = time.Minute
	cfg.Evidence.Dir = "detections"
	cfg.Evidence.Ext = "jpg"
	cfg.MQTT.Topic = "sentry/alerts"
	cfg.Minio.LinkExpiry = 24 * time.Hour
	cfg.Kafka.GroupID = "sentry"
	cfg.Kafka.FrameTopic = "frames"
	cfg.Kafka.AlertTopic = "alerts"
	cfg.Kafka.HeartbeatTopic = "heartbeats"
	cfg.Kafka.HeartbeatInterval = 30 * time.Second
	cfg.Kafka.OutboxInterval = 5 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// LoadConfig reads the YAML file, applies .env and environment overrides and validates the result
func LoadConfig(filename string) (*Config, error) {
	cfg := Default()

	if filename == "" {
		filename = DefaultPath
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &models.ConfigError{Field: ".env", Reason: "cannot load", Err: err}
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, &models.ConfigError{Field: filename, Reason: "cannot read", Err: err}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &models.ConfigError{Field: filename, Reason: "invalid yaml", Err: err}
	}

	// Environment has priority over the file
	if err := env.Parse(cfg); err != nil {
		return nil, &models.ConfigError{Field: "env", Reason: "invalid environment override", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validate = newValidator()

// newValidator reports fields by their yaml names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks struct rules first, then the rules that need parsing
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &models.ConfigError{
				Field:  strings.TrimPrefix(fe.Namespace(), "Config."),
				Reason: describe(fe),
			}
		}
		return &models.ConfigError{Field: "config", Reason: "invalid", Err: err}
	}

	start, end, err := c.Window()
	if err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if start == end {
		return &models.ConfigError{Field: "monitoring", Reason: fmt.Sprintf("start and end are both %s, window is empty", start)}
	}

	if c.Capture.Source == SourceKafka && len(c.Kafka.Brokers) == 0 {
		return &models.ConfigError{Field: "kafka.brokers", Reason: "required when capture.source is kafka"}
	}
	if c.Capture.Source != SourceDevice && c.Detection.Endpoint == "" {
		return &models.ConfigError{Field: "detection.endpoint", Reason: "required unless capture.source is device"}
	}

	return nil
}

// Window returns the parsed monitoring window bounds and location
func (c *Config) Window() (models.TimeOfDay, models.TimeOfDay, error) {
	start, err := models.ParseTimeOfDay(c.Monitoring.Start)
	if err != nil {
		return 0, 0, &models.ConfigError{Field: "monitoring.start", Reason: "malformed", Err: err}
	}
	end, err := models.ParseTimeOfDay(c.Monitoring.End)
	if err != nil {
		return 0, 0, &models.ConfigError{Field: "monitoring.end", Reason: "malformed", Err: err}
	}
	return start, end, nil
}

// Location resolves monitoring.timezone
func (c *Config) Location() (*time.Location, error) {
	name := c.Monitoring.Timezone
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &models.ConfigError{Field: "monitoring.timezone", Reason: "unknown time zone", Err: err}
	}
	return loc, nil
}

// Cooldown returns the configured alert spacing
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Alert.CooldownSeconds) * time.Second
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if", "required_with":
		return fmt.Sprintf("is required when %s is set", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("must be %s %s, got %v", fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %s check, got %v", fe.Tag(), fe.Value())
	}
}
