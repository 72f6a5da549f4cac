// Copyright (c) 2025 Netskope, Inc. All rights reserved.

package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the export tool.
type Config struct {
	// Export source & target
	SourcePath string // file, directory, or s3://bucket/prefix
	TableName  string

	// Record codec
	RecordClass string // explicit codec identifier; derived from table name if empty
	SplitBy     string // optional split column hint, recorded into the plan

	// Columns the delimited codec maps record fields to, in order. Empty
	// means read the column list from the target table's information_schema.
	Columns        []string
	FieldDelimiter string // field separator in text records, default ","

	// Format overrides. Empty means auto-detect.
	InputFormat  string // "text", "sequence", or "" for auto
	OutputFormat string // "" defaults to the database output

	// Map-task parallelism. 0 means derive from the engine default.
	MapTasks int

	// Database Connection (export sink)
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Optional: fetch DB password from AWS Secrets Manager
	DBSecret string // secret name, e.g. "rds!cluster-xxx"
	DBRegion string // region for Secrets Manager

	// S3 source access
	AWSRegion string

	// Sink batching
	BatchSize int // rows per INSERT batch, default 1000

	// Logging
	LogDir string
	Debug  bool
	Stdout bool

	// Probe-only mode: report the detected source format and exit
	ProbeFormat bool

	// Output Control
	Quiet bool
}

// LoadConfig loads configuration from CLI flags, environment variables, and YAML file.
// Priority: CLI flags > environment variables > YAML file > defaults
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// CLI flags
	sourcePath := flag.String("source-path", "", "Export source path (file, directory, or s3://bucket/prefix)")
	tableName := flag.String("table-name", "", "Target table name")
	recordClass := flag.String("record-class", "", "Record codec identifier (derived from table name if empty)")
	splitBy := flag.String("split-by", "", "Split column hint")
	columns := flag.String("columns", "", "Comma-separated target column list (default: read from information_schema)")
	fieldDelimiter := flag.String("field-delimiter", "", "Field separator in text records (default: ,)")
	inputFormat := flag.String("input-format", "", "Input format override: text or sequence (default: auto-detect)")
	outputFormat := flag.String("output-format", "", "Output format override (default: db)")
	mapTasks := flag.Int("map-tasks", 0, "Map task parallelism (default: engine default)")
	dbHost := flag.String("db-host", "", "Database host")
	dbPort := flag.Int("db-port", 3306, "Database port (default: 3306)")
	dbUser := flag.String("db-user", "", "Database username")
	dbPassword := flag.String("db-password", "", "Database password")
	dbAuth := flag.String("db-auth", "", "Database auth file path (JSON with user and password)")
	dbName := flag.String("db-name", "", "Database name")
	dbSecret := flag.String("db-secret", "", "AWS Secrets Manager secret name for the database password")
	dbRegion := flag.String("db-region", "", "AWS region for Secrets Manager")
	awsRegion := flag.String("aws-region", "", "AWS region for s3:// sources")
	batchSize := flag.Int("batch-size", 1000, "Rows per INSERT batch (default: 1000)")
	logDir := flag.String("log-dir", "/tmp", "Log directory")
	debug := flag.Bool("debug", false, "Enable debug logging")
	stdout := flag.Bool("stdout", false, "Log to stdout instead of a file")
	probeFormat := flag.Bool("probe-format", false, "Only report the detected source format and exit")
	quiet := flag.Bool("quiet", false, "Suppress the summary printout")
	configFile := flag.String("config-file", "export-config.yaml", "Config file path (default: export-config.yaml)")

	flag.Parse()

	// Load from YAML file if it exists
	if *configFile != "" {
		if err := loadFromYAML(cfg, *configFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnv(cfg)

	// Override with CLI flags (highest priority)
	if *sourcePath != "" {
		cfg.SourcePath = *sourcePath
	}
	if *tableName != "" {
		cfg.TableName = *tableName
	}
	if *recordClass != "" {
		cfg.RecordClass = *recordClass
	}
	if *splitBy != "" {
		cfg.SplitBy = *splitBy
	}
	if *columns != "" {
		cfg.Columns = splitColumns(*columns)
	}
	if *fieldDelimiter != "" {
		cfg.FieldDelimiter = *fieldDelimiter
	}
	if *inputFormat != "" {
		cfg.InputFormat = *inputFormat
	}
	if *outputFormat != "" {
		cfg.OutputFormat = *outputFormat
	}
	if *mapTasks > 0 {
		cfg.MapTasks = *mapTasks
	}
	if *dbHost != "" {
		cfg.DBHost = *dbHost
	}
	if *dbPort > 0 {
		cfg.DBPort = *dbPort
	}
	if *dbUser != "" {
		cfg.DBUser = *dbUser
	}
	if *dbPassword != "" {
		cfg.DBPassword = *dbPassword
	}
	if *dbAuth != "" {
		if err := cfg.ReadDBAuth(*dbAuth); err != nil {
			return nil, fmt.Errorf("failed to read DB auth file: %w", err)
		}
	}
	if *dbName != "" {
		cfg.DBName = *dbName
	}
	if *dbSecret != "" {
		cfg.DBSecret = *dbSecret
	}
	if *dbRegion != "" {
		cfg.DBRegion = *dbRegion
	}
	if *awsRegion != "" {
		cfg.AWSRegion = *awsRegion
	}
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if *debug {
		cfg.Debug = true
	}
	if *stdout {
		cfg.Stdout = true
	}
	if *probeFormat {
		cfg.ProbeFormat = true
	}
	if *quiet {
		cfg.Quiet = true
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.DBPort == 0 {
		c.DBPort = 3306
	}
	if c.BatchSize == 0 {
		c.BatchSize = 1000
	}
	if c.LogDir == "" {
		c.LogDir = "/tmp"
	}
	if c.FieldDelimiter == "" {
		c.FieldDelimiter = ","
	}
}

// splitColumns parses a comma-separated column list, trimming whitespace and
// dropping empty entries.
func splitColumns(s string) []string {
	var cols []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.SourcePath == "" {
		return fmt.Errorf("source-path is required")
	}
	if c.ProbeFormat {
		// Probe mode only inspects the source; no table or sink needed.
		return nil
	}
	if c.TableName == "" {
		return fmt.Errorf("table-name is required")
	}
	if c.DBHost == "" {
		return fmt.Errorf("db-host is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("db-name is required")
	}
	if c.InputFormat != "" && c.InputFormat != "text" && c.InputFormat != "sequence" {
		return fmt.Errorf("input-format must be text or sequence, got %q", c.InputFormat)
	}
	if c.DBSecret != "" && c.DBRegion == "" {
		return fmt.Errorf("db-region is required when db-secret is set")
	}
	return nil
}

// loadFromYAML loads configuration from a YAML file.
func loadFromYAML(cfg *Config, filepath string) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return err
	}

	var yamlCfg struct {
		SourcePath   string   `yaml:"source_path"`
		TableName    string   `yaml:"table_name"`
		RecordClass  string   `yaml:"record_class"`
		SplitBy      string   `yaml:"split_by"`
		Columns      []string `yaml:"columns"`
		FieldDelim   string   `yaml:"field_delimiter"`
		InputFormat  string   `yaml:"input_format"`
		OutputFormat string   `yaml:"output_format"`
		MapTasks     int      `yaml:"map_tasks"`
		DBHost       string   `yaml:"db_host"`
		DBPort       int      `yaml:"db_port"`
		DBUser       string   `yaml:"db_user"`
		DBPassword   string   `yaml:"db_password"`
		DBName       string   `yaml:"db_name"`
		DBSecret     string   `yaml:"db_secret"`
		DBRegion     string   `yaml:"db_region"`
		AWSRegion    string   `yaml:"aws_region"`
		BatchSize    int      `yaml:"batch_size"`
		LogDir       string   `yaml:"log_dir"`
	}

	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return err
	}

	if yamlCfg.SourcePath != "" {
		cfg.SourcePath = yamlCfg.SourcePath
	}
	if yamlCfg.TableName != "" {
		cfg.TableName = yamlCfg.TableName
	}
	if yamlCfg.RecordClass != "" {
		cfg.RecordClass = yamlCfg.RecordClass
	}
	if yamlCfg.SplitBy != "" {
		cfg.SplitBy = yamlCfg.SplitBy
	}
	if len(yamlCfg.Columns) > 0 {
		cfg.Columns = yamlCfg.Columns
	}
	if yamlCfg.FieldDelim != "" {
		cfg.FieldDelimiter = yamlCfg.FieldDelim
	}
	if yamlCfg.InputFormat != "" {
		cfg.InputFormat = yamlCfg.InputFormat
	}
	if yamlCfg.OutputFormat != "" {
		cfg.OutputFormat = yamlCfg.OutputFormat
	}
	if yamlCfg.MapTasks > 0 {
		cfg.MapTasks = yamlCfg.MapTasks
	}
	if yamlCfg.DBHost != "" {
		cfg.DBHost = yamlCfg.DBHost
	}
	if yamlCfg.DBPort > 0 {
		cfg.DBPort = yamlCfg.DBPort
	}
	if yamlCfg.DBUser != "" {
		cfg.DBUser = yamlCfg.DBUser
	}
	if yamlCfg.DBPassword != "" {
		cfg.DBPassword = yamlCfg.DBPassword
	}
	if yamlCfg.DBName != "" {
		cfg.DBName = yamlCfg.DBName
	}
	if yamlCfg.DBSecret != "" {
		cfg.DBSecret = yamlCfg.DBSecret
	}
	if yamlCfg.DBRegion != "" {
		cfg.DBRegion = yamlCfg.DBRegion
	}
	if yamlCfg.AWSRegion != "" {
		cfg.AWSRegion = yamlCfg.AWSRegion
	}
	if yamlCfg.BatchSize > 0 {
		cfg.BatchSize = yamlCfg.BatchSize
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func loadFromEnv(cfg *Config) {
	if val := os.Getenv("DB_EXPORT_SOURCE_PATH"); val != "" {
		cfg.SourcePath = val
	}
	if val := os.Getenv("DB_EXPORT_TABLE_NAME"); val != "" {
		cfg.TableName = val
	}
	if val := os.Getenv("DB_EXPORT_RECORD_CLASS"); val != "" {
		cfg.RecordClass = val
	}
	if val := os.Getenv("DB_EXPORT_COLUMNS"); val != "" {
		cfg.Columns = splitColumns(val)
	}
	if val := os.Getenv("DB_EXPORT_FIELD_DELIMITER"); val != "" {
		cfg.FieldDelimiter = val
	}
	if val := os.Getenv("DB_EXPORT_INPUT_FORMAT"); val != "" {
		cfg.InputFormat = val
	}
	if val := os.Getenv("DB_EXPORT_MAP_TASKS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MapTasks = n
		}
	}
	if val := os.Getenv("DB_EXPORT_DB_HOST"); val != "" {
		cfg.DBHost = val
	}
	if val := os.Getenv("DB_EXPORT_DB_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.DBPort = port
		}
	}
	if val := os.Getenv("DB_EXPORT_DB_USER"); val != "" {
		cfg.DBUser = val
	}
	if val := os.Getenv("DB_EXPORT_DB_PASSWORD"); val != "" {
		cfg.DBPassword = val
	}
	if val := os.Getenv("DB_EXPORT_DB_NAME"); val != "" {
		cfg.DBName = val
	}
	if val := os.Getenv("DB_EXPORT_DB_SECRET"); val != "" {
		cfg.DBSecret = val
	}
	if val := os.Getenv("DB_EXPORT_DB_REGION"); val != "" {
		cfg.DBRegion = val
	}
	if val := os.Getenv("DB_EXPORT_AWS_REGION"); val != "" {
		cfg.AWSRegion = val
	}
	if val := os.Getenv("DB_EXPORT_BATCH_SIZE"); val != "" {
		if batch, err := strconv.Atoi(val); err == nil {
			cfg.BatchSize = batch
		}
	}
}

// GetDBDSN returns the database connection string for the export sink.
func (c *Config) GetDBDSN() string {
	host := c.DBHost
	if c.DBPort > 0 && c.DBPort != 3306 {
		host = fmt.Sprintf("%s:%d", c.DBHost, c.DBPort)
	}

	dsn := fmt.Sprintf("tcp(%s)/%s?parseTime=true", host, c.DBName)
	if c.DBUser != "" {
		if c.DBPassword != "" {
			dsn = fmt.Sprintf("%s:%s@%s", c.DBUser, c.DBPassword, dsn)
		} else {
			dsn = fmt.Sprintf("%s@%s", c.DBUser, dsn)
		}
	}
	return dsn
}

// ReadDBAuth reads database credentials from an auth file (JSON format).
func (c *Config) ReadDBAuth(authFile string) error {
	if authFile == "" {
		return nil
	}

	data, err := os.ReadFile(authFile)
	if err != nil {
		return fmt.Errorf("failed to read auth file: %w", err)
	}

	var auth struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}

	if err := json.Unmarshal(data, &auth); err != nil {
		return fmt.Errorf("failed to parse auth file: %w", err)
	}

	c.DBUser = auth.User
	c.DBPassword = auth.Password
	return nil
}
