// Package config loads and validates the target configuration from an
// optional config file plus TARGET_LDIF_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the immutable target configuration. It is constructed once in
// main and passed down; nothing mutates it afterwards.
type Config struct {
	OutputPath        string            `mapstructure:"output_path" validate:"required"`
	FileNamingPattern string            `mapstructure:"file_naming_pattern" validate:"required"`
	DNTemplate        string            `mapstructure:"dn_template" validate:"required"`
	BaseDN            string            `mapstructure:"base_dn"`
	AttributeMapping  map[string]string `mapstructure:"attribute_mapping"`
	ObjectClasses     []string          `mapstructure:"object_classes"`
	BatchSize         int               `mapstructure:"batch_size" validate:"gte=1,lte=10000"`
	MaxEntriesPerFile int               `mapstructure:"max_entries_per_file" validate:"gte=0"`
	MaxBytesPerFile   int64             `mapstructure:"max_bytes_per_file" validate:"gte=0"`
	LdifOptions       LdifOptions       `mapstructure:"ldif_options"`
	Publish           *PublishConfig    `mapstructure:"publish"`
}

// LdifOptions tune the LDIF wire format.
type LdifOptions struct {
	LineLength        int    `mapstructure:"line_length" validate:"gte=40,lte=200"`
	Base64Encode      bool   `mapstructure:"base64_encode"`
	IncludeTimestamps bool   `mapstructure:"include_timestamps"`
	Encoding          string `mapstructure:"encoding" validate:"required"`
	FoldLines         bool   `mapstructure:"fold_lines"`
}

// PublishConfig enables uploading finalized LDIF files to an S3-compatible
// object store after close.
type PublishConfig struct {
	EndpointURL     string `mapstructure:"endpoint_url" validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id" validate:"required"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required"`
	Bucket          string `mapstructure:"bucket" validate:"required"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Load reads configuration from configFile (optional) and the environment,
// applies defaults, and validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetDefault("output_path", "./output")
	v.SetDefault("file_naming_pattern", "{stream_name}_{timestamp}.ldif")
	v.SetDefault("batch_size", 1000)
	v.SetDefault("ldif_options.line_length", 78)
	v.SetDefault("ldif_options.base64_encode", false)
	v.SetDefault("ldif_options.include_timestamps", true)
	v.SetDefault("ldif_options.encoding", "utf-8")
	v.SetDefault("ldif_options.fold_lines", true)

	v.SetEnvPrefix("TARGET_LDIF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !strings.Contains(cfg.DNTemplate, "{") || !strings.Contains(cfg.DNTemplate, "}") {
		return nil, fmt.Errorf("invalid configuration: dn_template must contain at least one {field} placeholder")
	}
	return &cfg, nil
}

// SinkParams renders the configuration as the loose parameter map consumed
// by the file.ldif connector factory.
func (c *Config) SinkParams() map[string]any {
	return map[string]any{
		"output_path":          c.OutputPath,
		"file_naming_pattern":  c.FileNamingPattern,
		"dn_template":          c.DNTemplate,
		"base_dn":              c.BaseDN,
		"attribute_mapping":    c.AttributeMapping,
		"object_classes":       c.ObjectClasses,
		"max_entries_per_file": c.MaxEntriesPerFile,
		"max_bytes_per_file":   int(c.MaxBytesPerFile),
		"ldif_options": map[string]any{
			"line_length":        c.LdifOptions.LineLength,
			"base64_encode":      c.LdifOptions.Base64Encode,
			"include_timestamps": c.LdifOptions.IncludeTimestamps,
			"encoding":           c.LdifOptions.Encoding,
			"fold_lines":         c.LdifOptions.FoldLines,
		},
	}
}
