package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM          LLMConfig          `yaml:"llm"`
	ReviewSource ReviewSourceConfig `yaml:"review_source"`
	Ingestion    IngestionConfig    `yaml:"ingestion"`
	Report       ReportConfig       `yaml:"report"`
	ObjectStore  ObjectStoreConfig  `yaml:"object_store"`
	Log          LogConfig          `yaml:"log"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency"`
	DB           DBConfig           `yaml:"db"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // azure, openai or gemini
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	APIVersion  string  `yaml:"api_version"` // 仅 azure 使用
	Temperature float32 `yaml:"temperature"`
	Timeout     int     `yaml:"timeout"` // 秒
}

// ReviewSourceConfig 评论来源配置
type ReviewSourceConfig struct {
	Provider  string          `yaml:"provider"` // playstore or file
	PlayStore PlayStoreConfig `yaml:"playstore"`
	File      FileConfig      `yaml:"file"`
}

// PlayStoreConfig Google Play 抓取配置
type PlayStoreConfig struct {
	Lang      string `yaml:"lang"`
	Country   string `yaml:"country"`
	Count     int    `yaml:"count"`
	Timeout   int    `yaml:"timeout"` // 秒
	CacheSize int    `yaml:"cache_size"`
	CacheTTL  int    `yaml:"cache_ttl"` // 秒
}

// FileConfig 本地评论文件配置
type FileConfig struct {
	Path string `yaml:"path"`
}

// IngestionConfig 采集阶段配置
type IngestionConfig struct {
	DelayMS *int `yaml:"delay_ms"` // 相邻两天请求之间的间隔，未配置时 500ms
}

// Delay 返回采集间隔
func (c IngestionConfig) Delay() time.Duration {
	if c.DelayMS == nil {
		return 500 * time.Millisecond
	}
	if *c.DelayMS <= 0 {
		return 0
	}
	return time.Duration(*c.DelayMS) * time.Millisecond
}

// ReportConfig 报告输出配置
type ReportConfig struct {
	OutputDir       string   `yaml:"output_dir"`
	Formats         []string `yaml:"formats"` // csv, html
	ResolveAppTitle bool     `yaml:"resolve_app_title"`
	TitleTimeout    int      `yaml:"title_timeout"` // 秒
}

// ObjectStoreConfig S3/MinIO 配置，Endpoint 为空时不上传
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig LLM 调用限流配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// DBConfig 数据库相关配置，Host 为空时不连接
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// LoadConfig 从指定路径加载配置，随后应用默认值和环境变量
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyEnv 使用环境变量覆盖配置
func (c *Config) ApplyEnv() {
	// 兼容 Azure OpenAI 的标准环境变量
	if v := env("AZURE_OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
		if c.LLM.Provider == "" {
			c.LLM.Provider = "azure"
		}
	}
	if v := env("AZURE_OPENAI_ENDPOINT"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := env("AZURE_OPENAI_DEPLOYMENT_NAME"); v != "" {
		c.LLM.Model = v
	}
	if v := env("AZURE_OPENAI_API_VERSION"); v != "" {
		c.LLM.APIVersion = v
	}

	if v := env("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := env("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := env("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := env("GEMINI_API_KEY"); v != "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = v
	}
}

// ApplyDefaults 填充未配置项
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Provider == "azure" && c.LLM.APIVersion == "" {
		c.LLM.APIVersion = "2025-01-01-preview"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.1
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 120
	}

	if c.ReviewSource.Provider == "" {
		c.ReviewSource.Provider = "playstore"
	}
	ps := &c.ReviewSource.PlayStore
	if ps.Lang == "" {
		ps.Lang = "en"
	}
	if ps.Country == "" {
		ps.Country = "in"
	}
	if ps.Count <= 0 {
		ps.Count = 200
	}
	if ps.Timeout <= 0 {
		ps.Timeout = 30
	}
	if ps.CacheSize <= 0 {
		ps.CacheSize = 64
	}
	if ps.CacheTTL <= 0 {
		ps.CacheTTL = 600
	}

	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "output"
	}
	if len(c.Report.Formats) == 0 {
		c.Report.Formats = []string{"csv"}
	}
	if c.Report.TitleTimeout <= 0 {
		c.Report.TitleTimeout = 15
	}

	if c.ObjectStore.Region == "" {
		c.ObjectStore.Region = "us-east-1"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 60
	}

	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
