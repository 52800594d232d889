// Package config loads assistant settings from the environment, an optional
// .env file and an optional YAML tuning file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bull/pdf-assistant/internal/errs"
)

// Vector index backends.
const (
	BackendPinecone = "pinecone"
	BackendQdrant   = "qdrant"
	BackendChromem  = "chromem"
)

// Embedding providers.
const (
	ProviderGemini      = "gemini"
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
)

const (
	DefaultDocumentsDir    = "Documents"
	DefaultPort            = "7860"
	DefaultIndexName       = "pdf-assistant"
	DefaultNamespace       = "default"
	DefaultGenerativeModel = "gemma-3-1b-it"
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
	DefaultTopK            = 4

	DefaultGeminiEmbeddingModel = "gemini-embedding-001"
	DefaultHuggingFaceModel     = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultOpenAIModel          = "text-embedding-3-small"

	defaultConfigFile = "config.yaml"
)

// Config holds every setting the assistant reads at startup.
// Secrets only come from the environment; tuning values may also come from
// the YAML file named by CONFIG_FILE.
type Config struct {
	PineconeAPIKey    string
	PineconeIndexName string
	PineconeCloud     string
	PineconeRegion    string
	GeminiAPIKey      string

	DocumentsDir string
	Port         string

	VectorBackend string
	Namespace     string
	QdrantHost    string
	QdrantPort    int
	ChromemPath   string

	EmbeddingProvider string
	EmbeddingModel    string
	HuggingFaceToken  string
	HuggingFaceURL    string
	OpenAIAPIKey      string

	GenerativeModel string

	ChunkSize    int
	ChunkOverlap int
	TopK         int

	MaxConcurrentQueries int
	StrictIngestion      bool

	LogLevel  string
	LogFormat string

	GitHubToken string // docsync fetch only
}

// fileConfig mirrors the tunable subset of Config in the YAML file.
type fileConfig struct {
	DocumentsDir         string `yaml:"documents_dir"`
	Port                 string `yaml:"port"`
	VectorBackend        string `yaml:"vector_backend"`
	Namespace            string `yaml:"namespace"`
	GenerativeModel      string `yaml:"generative_model"`
	ChunkSize            int    `yaml:"chunk_size"`
	ChunkOverlap         int    `yaml:"chunk_overlap"`
	TopK                 int    `yaml:"top_k"`
	MaxConcurrentQueries int    `yaml:"max_concurrent_queries"`
	StrictIngestion      bool   `yaml:"strict_ingestion"`

	Embedding struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		URL      string `yaml:"url"`
	} `yaml:"embedding"`

	Qdrant struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"qdrant"`

	Chromem struct {
		Path string `yaml:"path"`
	} `yaml:"chromem"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns a Config with every tunable set to its default.
func Default() *Config {
	return &Config{
		DocumentsDir:      DefaultDocumentsDir,
		Port:              DefaultPort,
		VectorBackend:     BackendPinecone,
		Namespace:         DefaultNamespace,
		QdrantHost:        "localhost",
		QdrantPort:        6334,
		EmbeddingProvider: ProviderGemini,
		GenerativeModel:   DefaultGenerativeModel,
		ChunkSize:         DefaultChunkSize,
		ChunkOverlap:      DefaultChunkOverlap,
		TopK:              DefaultTopK,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load builds a Config from defaults, the YAML file, then the environment,
// in increasing precedence. getenv is usually os.Getenv.
// Load does not check required values; call Validate for that.
func Load(getenv func(string) string) (*Config, error) {
	cfg := Default()

	path, explicit := getenv("CONFIG_FILE"), true
	if path == "" {
		path, explicit = defaultConfigFile, false
	}
	if err := cfg.applyFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	if cfg.EmbeddingModel == "" {
		switch cfg.EmbeddingProvider {
		case ProviderOpenAI:
			cfg.EmbeddingModel = DefaultOpenAIModel
		case ProviderHuggingFace:
			cfg.EmbeddingModel = DefaultHuggingFaceModel
		default:
			cfg.EmbeddingModel = DefaultGeminiEmbeddingModel
		}
	}
	if cfg.PineconeIndexName == "" && cfg.VectorBackend != BackendPinecone {
		cfg.PineconeIndexName = DefaultIndexName
	}

	return cfg, nil
}

// applyFile merges the YAML file at path. A missing file is only an error
// when it was named explicitly.
func (c *Config) applyFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return errs.Configuration("read config file %s: %v", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return errs.Configuration("parse config file %s: %v", path, err)
	}

	setString(&c.DocumentsDir, fc.DocumentsDir)
	setString(&c.Port, fc.Port)
	setString(&c.VectorBackend, fc.VectorBackend)
	setString(&c.Namespace, fc.Namespace)
	setString(&c.GenerativeModel, fc.GenerativeModel)
	setString(&c.EmbeddingProvider, fc.Embedding.Provider)
	setString(&c.EmbeddingModel, fc.Embedding.Model)
	setString(&c.HuggingFaceURL, fc.Embedding.URL)
	setString(&c.QdrantHost, fc.Qdrant.Host)
	setString(&c.ChromemPath, fc.Chromem.Path)
	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.LogFormat, fc.Log.Format)
	setInt(&c.QdrantPort, fc.Qdrant.Port)
	setInt(&c.ChunkSize, fc.ChunkSize)
	setInt(&c.ChunkOverlap, fc.ChunkOverlap)
	setInt(&c.TopK, fc.TopK)
	setInt(&c.MaxConcurrentQueries, fc.MaxConcurrentQueries)
	if fc.StrictIngestion {
		c.StrictIngestion = true
	}

	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	c.PineconeAPIKey = getenv("PINECONE_API_KEY")
	c.PineconeIndexName = getenv("PINECONE_INDEX_NAME")
	c.PineconeCloud = getenv("PINECONE_CLOUD")
	c.PineconeRegion = getenv("PINECONE_REGION")
	c.GeminiAPIKey = getenv("GEMINI_API_KEY")
	c.HuggingFaceToken = getenv("HUGGINGFACEHUB_API_TOKEN")
	c.OpenAIAPIKey = getenv("OPENAI_API_KEY")
	c.GitHubToken = getenv("GITHUB_TOKEN")

	setString(&c.DocumentsDir, getenv("DOCUMENTS_DIR"))
	setString(&c.Port, getenv("PORT"))
	setString(&c.VectorBackend, strings.ToLower(getenv("VECTOR_BACKEND")))
	setString(&c.QdrantHost, getenv("QDRANT_HOST"))
	setString(&c.ChromemPath, getenv("CHROMEM_PATH"))
	setString(&c.EmbeddingProvider, strings.ToLower(getenv("EMBEDDING_PROVIDER")))
	setString(&c.EmbeddingModel, getenv("EMBEDDING_MODEL"))
	setString(&c.HuggingFaceURL, getenv("HUGGINGFACE_URL"))
	setString(&c.GenerativeModel, getenv("GENERATIVE_MODEL"))
	setString(&c.LogLevel, getenv("LOG_LEVEL"))
	setString(&c.LogFormat, getenv("LOG_FORMAT"))

	ints := []struct {
		key string
		dst *int
	}{
		{"QDRANT_PORT", &c.QdrantPort},
		{"TOP_K", &c.TopK},
		{"MAX_CONCURRENT_QUERIES", &c.MaxConcurrentQueries},
	}
	for _, v := range ints {
		raw := getenv(v.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return errs.Configuration("%s must be an integer, got %q", v.key, raw)
		}
		*v.dst = n
	}

	if raw := getenv("STRICT_INGESTION"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return errs.Configuration("STRICT_INGESTION must be a boolean, got %q", raw)
		}
		c.StrictIngestion = b
	}

	return nil
}

// Validate reports every missing required variable and invalid setting.
// With the default backend and embedding provider the required set is the
// four PINECONE_* variables and GEMINI_API_KEY.
// The returned error wraps errs.ErrConfiguration.
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		key, value string
		needed     bool
	}{
		{"PINECONE_API_KEY", c.PineconeAPIKey, c.VectorBackend == BackendPinecone},
		{"PINECONE_INDEX_NAME", c.PineconeIndexName, c.VectorBackend == BackendPinecone},
		{"PINECONE_CLOUD", c.PineconeCloud, c.VectorBackend == BackendPinecone},
		{"PINECONE_REGION", c.PineconeRegion, c.VectorBackend == BackendPinecone},
		{"GEMINI_API_KEY", c.GeminiAPIKey, true},
		{"HUGGINGFACEHUB_API_TOKEN", c.HuggingFaceToken, c.EmbeddingProvider == ProviderHuggingFace},
		{"OPENAI_API_KEY", c.OpenAIAPIKey, c.EmbeddingProvider == ProviderOpenAI},
	}
	for _, r := range required {
		if r.needed && strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return errs.Configuration("missing environment variables: %s", strings.Join(missing, ", "))
	}

	switch c.VectorBackend {
	case BackendPinecone, BackendQdrant, BackendChromem:
	default:
		return errs.Configuration("unknown vector backend %q", c.VectorBackend)
	}
	switch c.EmbeddingProvider {
	case ProviderGemini, ProviderHuggingFace, ProviderOpenAI:
	default:
		return errs.Configuration("unknown embedding provider %q", c.EmbeddingProvider)
	}

	if c.ChunkSize <= 0 {
		return errs.Configuration("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return errs.Configuration("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return errs.Configuration("TOP_K must be positive, got %d", c.TopK)
	}
	if c.MaxConcurrentQueries < 0 {
		return errs.Configuration("MAX_CONCURRENT_QUERIES must not be negative, got %d", c.MaxConcurrentQueries)
	}

	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%s", c.Port)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
