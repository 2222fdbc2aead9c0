package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const DefaultPath = "config/example.yaml"

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	Telegram struct {
		Enabled     bool
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
		Timeout     int
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

// Path возвращает путь к конфигу: CONFIG_PATH или DefaultPath.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load читает yaml и перекрывает значения переменными APP_* (APP_POSTGRES_DSN и т.п.).
// .env в рабочей директории подхватывается, если он есть.
func Load(path string) (Config, error) {
	_ = gotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("telegram.timeout", 60)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
