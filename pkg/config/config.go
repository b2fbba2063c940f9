package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Type         string `yaml:"type" json:"type"`
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	DatabaseName string `yaml:"database_name" json:"database_name"`
	DSN          string `yaml:"dsn" json:"dsn"` // optional explicit DSN
	// Introspect registers every table of the connection as a record type.
	Introspect bool `yaml:"introspect" json:"introspect"`
}

type ServerConfig struct {
	Port     int    `yaml:"port" json:"port"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

type RateLimitConfig struct {
	// RequestsPerSecond of zero disables rate limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// ApplicationConfig describes the web application insights are mounted in.
type ApplicationConfig struct {
	ID      string `yaml:"id" json:"id"`
	Path    string `yaml:"path" json:"path"`
	Offline bool   `yaml:"offline" json:"offline"`
	// Permissions lists the actions each role may run.
	Permissions map[string][]string `yaml:"permissions" json:"permissions"`
	RateLimit   RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
}

// UserConfig is a basic authentication account. Password holds a bcrypt hash.
type UserConfig struct {
	Name     string   `yaml:"name" json:"name"`
	Password string   `yaml:"password" json:"-"`
	Roles    []string `yaml:"roles" json:"roles"`
	// Contexts are the security context ids the user may act in.
	Contexts []string `yaml:"contexts" json:"contexts"`
}

type TypeFieldConfig struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"`
	Column   string `yaml:"column" json:"column"`
	Optional bool   `yaml:"optional" json:"optional"`
	// References is "Type" or "Type:field" for foreign keys.
	References string `yaml:"references" json:"references"`
}

// TypeConfig declares a record type backed by a table.
type TypeConfig struct {
	Name   string            `yaml:"name" json:"name"`
	Schema string            `yaml:"schema" json:"schema"`
	Table  string            `yaml:"table" json:"table"`
	Fields []TypeFieldConfig `yaml:"fields" json:"fields"`
}

type FieldConfig struct {
	Key       string `yaml:"key" json:"key"`
	Alias     string `yaml:"alias" json:"alias"`
	Aggregate string `yaml:"aggregate" json:"aggregate"`
}

// ForeignFieldConfig imports a field of a related type. Path walks foreign key fields
// from the core type, separated by colons, and ends with the imported field.
type ForeignFieldConfig struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

type FilterConfig struct {
	Key             string `yaml:"key" json:"key"`
	Alias           string `yaml:"alias" json:"alias"`
	Operator        string `yaml:"operator" json:"operator"`
	Input           bool   `yaml:"input" json:"input"`
	Value           any    `yaml:"value" json:"value"`
	Or              bool   `yaml:"or" json:"or"`
	CaseInsensitive bool   `yaml:"case_insensitive" json:"case_insensitive"`
}

// InsightConfig is one aggregation query definition.
type InsightConfig struct {
	ID                   string               `yaml:"id" json:"id"`
	Name                 string               `yaml:"name" json:"name"`
	BasePath             string               `yaml:"base_path" json:"base_path"`
	CoreType             string               `yaml:"core_type" json:"core_type"`
	Connection           string               `yaml:"connection" json:"connection"`
	Fields               []FieldConfig        `yaml:"fields" json:"fields"`
	ForeignFields        []ForeignFieldConfig `yaml:"foreign_fields" json:"foreign_fields"`
	Filters              []FilterConfig       `yaml:"filters" json:"filters"`
	Roles                []string             `yaml:"roles" json:"roles"`
	SecurityContextField string               `yaml:"security_context_field" json:"security_context_field"`
	// AllowHeaderAsQueryParameter defaults to true when omitted.
	AllowHeaderAsQueryParameter *bool `yaml:"allow_header_as_query_parameter" json:"allow_header_as_query_parameter"`
}

// HeaderAsQueryParameter reports whether header:<name> query parameters are honoured.
func (c InsightConfig) HeaderAsQueryParameter() bool {
	return c.AllowHeaderAsQueryParameter == nil || *c.AllowHeaderAsQueryParameter
}

type AppConfig struct {
	Database    DBConfig            `yaml:"database" json:"database"`
	Connections map[string]DBConfig `yaml:"connections" json:"connections"`
	Server      ServerConfig        `yaml:"server" json:"server"`
	Application ApplicationConfig   `yaml:"application" json:"application"`
	Users       []UserConfig        `yaml:"users" json:"users"`
	Types       []TypeConfig        `yaml:"types" json:"types"`
	Insights    []InsightConfig     `yaml:"insights" json:"insights"`
}

// LoadFile loads YAML config from path.
func LoadFile(path string) (AppConfig, error) {
	var cfg AppConfig
	f, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// NormalizeDriver maps common aliases to canonical keys (keeps backwards compat).
func NormalizeDriver(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "postgresql", "pg", "postgres":
		return "postgres"
	case "pgx":
		return "pgx"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "mssql", "sqlserver":
		return "sqlserver"
	case "godror", "oracle":
		return "godror"
	default:
		return strings.ToLower(d)
	}
}

// BuildDriverAndDSN produces a driver name and DSN string for supported DB types.
func BuildDriverAndDSN(db DBConfig) (driver string, dsn string, err error) {
	// If explicit DSN provided, user must also set Type to choose driver or we guess
	t := NormalizeDriver(db.Type)

	if db.DSN != "" {
		return t, db.DSN, nil
	}

	switch t {
	case "postgres", "pgx":
		driver = t
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	case "mysql":
		driver = "mysql"
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	case "sqlite":
		driver = "sqlite"
		if db.DatabaseName == "" {
			return "", "", fmt.Errorf("sqlite needs a file path in database_name")
		}
		dsn = fmt.Sprintf("file:%s?mode=ro", db.DatabaseName)
	case "sqlserver":
		driver = "sqlserver"
		dsn = fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	case "godror":
		driver = "godror"
		// simple EZCONNECT style; may need adjustments per environment
		dsn = fmt.Sprintf("%s/%s@%s:%d/%s",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	default:
		err = fmt.Errorf("unsupported database type: %s", db.Type)
	}
	return
}
