package webhook

import "time"

// Config configures change delivery. Delivery is disabled when URL is empty.
type Config struct {
	URL        string        `env:"WEBHOOK_URL"`
	Secret     string        `env:"WEBHOOK_SECRET"`
	Timeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	MaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	RetryDelay time.Duration `env:"WEBHOOK_RETRY_DELAY" envDefault:"500ms"`
	MaxDelay   time.Duration `env:"WEBHOOK_MAX_RETRY_DELAY" envDefault:"30s"`
	QueueSize  int           `env:"WEBHOOK_QUEUE_SIZE" envDefault:"256"`
}

// Enabled reports whether a target URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}
