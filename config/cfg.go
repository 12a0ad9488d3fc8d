package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	ImagesConfig struct {
		DefaultDPI   int           `yaml:"default_dpi" validate:"min=1,max=2400"`
		MaxWidth     float64       `yaml:"max_width" validate:"gt=0"`
		MaxHeight    float64       `yaml:"max_height" validate:"gt=0"`
		DefaultWidth float64       `yaml:"default_width" validate:"gt=0"`
		Transcode    TranscodeMode `yaml:"transcode" validate:"gte=0"`
	}

	FormattingConfig struct {
		// Paragraphs with more runs than this collapse to dominant style.
		ProportionalLimit int  `yaml:"proportional_limit" validate:"min=1"`
		ParagraphContext  bool `yaml:"paragraph_context"`
	}

	DocumentConfig struct {
		FixZip                bool             `yaml:"fix_zip"`
		OutputNameTemplate    string           `yaml:"output_name_template"`
		FileNameTransliterate bool             `yaml:"file_name_transliterate"`
		SaveXML               bool             `yaml:"save_xml"`
		Images                ImagesConfig     `yaml:"images"`
		Formatting            FormattingConfig `yaml:"formatting"`
	}

	TranslationConfig struct {
		APIKey                SecretString  `yaml:"api_key"`
		BaseURL               string        `yaml:"base_url" validate:"omitempty,url"`
		Model                 string        `yaml:"model" validate:"required"`
		SourceLanguage        string        `yaml:"source_language" validate:"required"`
		TargetLanguage        string        `yaml:"target_language" validate:"required"`
		PromptTemplate        string        `yaml:"prompt_template" validate:"required"`
		Temperature           float64       `yaml:"temperature" validate:"gte=0,lte=2"`
		MaxTokens             int           `yaml:"max_tokens" validate:"min=256"`
		ChunkSize             int           `yaml:"chunk_size" validate:"min=100"`
		MaxRetries            int           `yaml:"max_retries" validate:"min=1,max=10"`
		RetryDelay            time.Duration `yaml:"retry_delay" validate:"gte=0"`
		RequestTimeout        time.Duration `yaml:"request_timeout" validate:"gt=0"`
		MaxConcurrentRequests int           `yaml:"max_concurrent_requests" validate:"min=1,max=32"`
	}

	Config struct {
		Version     int               `yaml:"version" validate:"eq=1"`
		Document    DocumentConfig    `yaml:"document"`
		Translation TranslationConfig `yaml:"translation"`
		Logging     LoggingConfig     `yaml:"logging"`
		Reporting   ReporterConfig    `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
	PromptTemplateFieldName     TemplateFieldName = "prompt_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
	gencfg.WithDoNotExpandField(string(PromptTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration is not valid: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
