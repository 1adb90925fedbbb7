package config

import (
	"bufio"
	"os"
	"strings"
	"time"

	"github.com/mmrzaf/termwatch/internal/timeutil"
)

type Config struct {
	DBDriver     string
	DBDSN        string
	BindAddr     string
	LogLevel     string
	QueryTimeout time.Duration
	CORSOrigin   string
}

// Load reads TERMWATCH_* settings. Values from a .env file in the working
// directory are used when the variable is not set in the environment.
func Load() *Config {
	dotenv := readDotEnv(".env")
	get := func(key, def string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		if v, ok := dotenv[key]; ok && v != "" {
			return v
		}
		return def
	}

	timeout, err := timeutil.ParseDuration(get("TERMWATCH_QUERY_TIMEOUT", "15s"))
	if err != nil || timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Config{
		DBDriver:     get("TERMWATCH_DB_DRIVER", "sqlite"),
		DBDSN:        get("TERMWATCH_DB", "./termwatch.sqlite"),
		BindAddr:     get("TERMWATCH_BIND_ADDR", ":8080"),
		LogLevel:     get("TERMWATCH_LOG_LEVEL", "info"),
		QueryTimeout: timeout,
		CORSOrigin:   get("TERMWATCH_CORS_ORIGIN", "*"),
	}
}

func readDotEnv(path string) map[string]string {
	out := map[string]string{}
	f, err := os.Open(path)
	if err != nil {
		return out
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		out[strings.TrimSpace(key)] = value
	}
	return out
}
