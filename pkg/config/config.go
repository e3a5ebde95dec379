package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string
	LogLevel string

	GRPCPort int
	HTTPPort int

	DB       DB
	Backend  Backend
	Shop     Shop
	Checkout Checkout
	Cart     Cart
	Catalog  Catalog
}

type DB struct {
	Driver string // sqlite | postgres
	Path   string

	Host string
	Port int
	User string
	Pass string
	Name string
}

type Backend struct {
	URL     string
	Project string
	Token   string
	Timeout time.Duration
}

type Shop struct {
	ID   string
	Name string
}

type Checkout struct {
	AcceptedMethods    []string
	FallbackMethod     string
	PollInterval       time.Duration
	OriginPollInterval time.Duration
	RetryInterval      time.Duration
}

type Cart struct {
	MaxAge          time.Duration
	CheckoutLimit   int64
	PaymentLimit    int64
	PricingDebounce time.Duration
}

type Catalog struct {
	FreshFor time.Duration
}

// Load reads the configuration from defaults, the file named by POS_CONFIG
// (if any) and POS_* environment variables. A broken config file falls
// back to defaults plus environment.
func Load() Config {
	cfg, err := LoadFile(os.Getenv("POS_CONFIG"))
	if err != nil {
		cfg, _ = LoadFile("")
	}
	return cfg
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	return Config{
		AppEnv:   v.GetString("app_env"),
		LogLevel: v.GetString("log_level"),
		HTTPPort: v.GetInt("http_port"),
		GRPCPort: v.GetInt("grpc_port"),
		DB: DB{
			Driver: v.GetString("db.driver"),
			Path:   v.GetString("db.path"),
			Host:   v.GetString("db.host"),
			Port:   v.GetInt("db.port"),
			User:   v.GetString("db.user"),
			Pass:   v.GetString("db.password"),
			Name:   v.GetString("db.name"),
		},
		Backend: Backend{
			URL:     v.GetString("backend.url"),
			Project: v.GetString("backend.project"),
			Token:   v.GetString("backend.token"),
			Timeout: v.GetDuration("backend.timeout"),
		},
		Shop: Shop{
			ID:   v.GetString("shop.id"),
			Name: v.GetString("shop.name"),
		},
		Checkout: Checkout{
			AcceptedMethods:    splitList(v.GetStringSlice("checkout.accepted_methods")),
			FallbackMethod:     v.GetString("checkout.fallback_method"),
			PollInterval:       v.GetDuration("checkout.poll_interval"),
			OriginPollInterval: v.GetDuration("checkout.origin_poll_interval"),
			RetryInterval:      v.GetDuration("checkout.retry_interval"),
		},
		Cart: Cart{
			MaxAge:          v.GetDuration("cart.max_age"),
			CheckoutLimit:   v.GetInt64("cart.checkout_limit"),
			PaymentLimit:    v.GetInt64("cart.payment_limit"),
			PricingDebounce: v.GetDuration("cart.pricing_debounce"),
		},
		Catalog: Catalog{
			FreshFor: v.GetDuration("catalog.fresh_for"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_port", 8080)
	v.SetDefault("grpc_port", 8081)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "pos.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "pos")
	v.SetDefault("db.password", "pospassword")
	v.SetDefault("db.name", "pos_db")

	v.SetDefault("backend.url", "http://localhost:9090")
	v.SetDefault("backend.project", "default")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", 10*time.Second)

	v.SetDefault("shop.id", "")
	v.SetDefault("shop.name", "")

	v.SetDefault("checkout.accepted_methods", []string{})
	v.SetDefault("checkout.fallback_method", "")
	v.SetDefault("checkout.poll_interval", 2*time.Second)
	v.SetDefault("checkout.origin_poll_interval", time.Second)
	v.SetDefault("checkout.retry_interval", time.Minute)

	v.SetDefault("cart.max_age", 4*time.Hour)
	v.SetDefault("cart.checkout_limit", 0)
	v.SetDefault("cart.payment_limit", 0)
	v.SetDefault("cart.pricing_debounce", time.Second)

	v.SetDefault("catalog.fresh_for", 24*time.Hour)
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
