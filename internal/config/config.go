package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Veraticus/dispute-assistant/internal/classification"
	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/dedup"
	"github.com/Veraticus/dispute-assistant/internal/llm"
	"github.com/Veraticus/dispute-assistant/internal/resolution"
)

// EnvPrefix is the prefix for environment overrides, e.g. DISPUTE_LLM_PROVIDER.
const EnvPrefix = "DISPUTE"

// Settings is the typed view of every configuration key used by a run.
type Settings struct {
	DisputesPath        string `validate:"required"`
	TransactionsPath    string
	OutputDir           string `validate:"required"`
	DatabasePath        string `validate:"required"`
	LLM                 LLMSettings
	Dedup               DedupSettings
	RulesOrder          []string
	EscalationThreshold decimal.Decimal
	Workers             int `validate:"min=1,max=64"`
}

// LLMSettings configures the model classifier and query translator.
type LLMSettings struct {
	Provider   string `validate:"oneof=openai anthropic"`
	Model      string
	APIKey     string
	BaseURL    string        `validate:"omitempty,url"`
	Timeout    time.Duration `validate:"gt=0"`
	CacheTTL   time.Duration `validate:"gte=0"`
	MaxRetries int           `validate:"min=0,max=5"`
	RateLimit  int           `validate:"gte=0"`
}

// DedupSettings configures the duplicate matcher.
type DedupSettings struct {
	AmountTolerance   decimal.Decimal
	TimeWindow        time.Duration `validate:"gt=0"`
	MerchantThreshold float64       `validate:"gt=0,lte=1"`
	ScoreThreshold    float64       `validate:"gt=0,lte=1"`
}

// BindEnv maps DISPUTE_SECTION_KEY environment variables onto section.key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data.disputes", "data/disputes.csv")
	v.SetDefault("data.transactions", "data/transactions.csv")
	v.SetDefault("output.dir", "output")
	v.SetDefault("database.path", "~/.local/share/dispute/runs.db")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", llm.DefaultTimeout)
	v.SetDefault("llm.max_retries", llm.DefaultMaxRetries)
	v.SetDefault("llm.rate_limit", 60)
	v.SetDefault("llm.cache_ttl", llm.DefaultCacheTTL)

	def := dedup.DefaultConfig()
	v.SetDefault("dedup.time_window", def.TimeWindow)
	v.SetDefault("dedup.amount_tolerance", def.AmountTolerance.String())
	v.SetDefault("dedup.merchant_threshold", def.MerchantThreshold)
	v.SetDefault("dedup.score_threshold", def.ScoreThreshold)

	v.SetDefault("rules.order", classification.DefaultOrder())
	v.SetDefault("resolution.escalation_threshold", resolution.DefaultConfig().EscalationThreshold.String())
	v.SetDefault("pipeline.workers", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding what is already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(ExpandPath(p)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads every key from v into Settings and validates the result.
func Load(v *viper.Viper) (Settings, error) {
	tolerance, err := decimalKey(v, "dedup.amount_tolerance")
	if err != nil {
		return Settings{}, err
	}
	threshold, err := decimalKey(v, "resolution.escalation_threshold")
	if err != nil {
		return Settings{}, err
	}

	s := Settings{
		DisputesPath:     ExpandPath(v.GetString("data.disputes")),
		TransactionsPath: ExpandPath(v.GetString("data.transactions")),
		OutputDir:        ExpandPath(v.GetString("output.dir")),
		DatabasePath:     ExpandPath(v.GetString("database.path")),
		LLM: LLMSettings{
			Provider:   strings.ToLower(strings.TrimSpace(v.GetString("llm.provider"))),
			Model:      v.GetString("llm.model"),
			APIKey:     v.GetString("llm.api_key"),
			BaseURL:    v.GetString("llm.base_url"),
			Timeout:    v.GetDuration("llm.timeout"),
			CacheTTL:   v.GetDuration("llm.cache_ttl"),
			MaxRetries: v.GetInt("llm.max_retries"),
			RateLimit:  v.GetInt("llm.rate_limit"),
		},
		Dedup: DedupSettings{
			AmountTolerance:   tolerance,
			TimeWindow:        v.GetDuration("dedup.time_window"),
			MerchantThreshold: v.GetFloat64("dedup.merchant_threshold"),
			ScoreThreshold:    v.GetFloat64("dedup.score_threshold"),
		},
		RulesOrder:          v.GetStringSlice("rules.order"),
		EscalationThreshold: threshold,
		Workers:             v.GetInt("pipeline.workers"),
	}

	if s.LLM.APIKey == "" {
		s.LLM.APIKey = providerKeyFromEnv(s.LLM.Provider)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks value ranges that viper cannot express.
func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q check (value %v)", common.ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if s.Dedup.AmountTolerance.IsNegative() {
		return fmt.Errorf("%w: dedup.amount_tolerance must not be negative", common.ErrInvalidConfig)
	}
	if s.EscalationThreshold.IsNegative() {
		return fmt.Errorf("%w: resolution.escalation_threshold must not be negative", common.ErrInvalidConfig)
	}
	return nil
}

// ModelEnabled reports whether an API key is available for the configured provider.
func (s Settings) ModelEnabled() bool {
	return s.LLM.APIKey != ""
}

// LLMConfig converts the settings into a provider configuration.
func (s Settings) LLMConfig() llm.Config {
	return llm.Config{
		Provider:   s.LLM.Provider,
		APIKey:     s.LLM.APIKey,
		Model:      s.LLM.Model,
		BaseURL:    s.LLM.BaseURL,
		Timeout:    s.LLM.Timeout,
		CacheTTL:   s.LLM.CacheTTL,
		MaxRetries: s.LLM.MaxRetries,
		RateLimit:  s.LLM.RateLimit,
	}
}

// DedupConfig converts the settings into matcher tolerances.
func (s Settings) DedupConfig() dedup.Config {
	return dedup.Config{
		AmountTolerance:   s.Dedup.AmountTolerance,
		TimeWindow:        s.Dedup.TimeWindow,
		MerchantThreshold: s.Dedup.MerchantThreshold,
		ScoreThreshold:    s.Dedup.ScoreThreshold,
	}
}

// ResolutionConfig converts the settings into resolution engine options.
func (s Settings) ResolutionConfig() resolution.Config {
	return resolution.Config{EscalationThreshold: s.EscalationThreshold}
}

func providerKeyFromEnv(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

func decimalKey(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %q is not a number", common.ErrInvalidConfig, key, raw)
	}
	return d, nil
}
