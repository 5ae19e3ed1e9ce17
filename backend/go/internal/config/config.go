package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FieldConfig 定义了 Milvus 集合中字段的配置。
type FieldConfig struct {
	Name         string `yaml:"name"`                // 字段名称
	DataType     string `yaml:"dataType"`            // 字段数据类型 (例如: "Int64", "VarChar", "FloatVector")
	IsPrimaryKey bool   `yaml:"isPrimaryKey"`        // 是否为主键
	IsAutoID     bool   `yaml:"isAutoID"`            // 是否自动生成ID
	Dim          int    `yaml:"dim,omitempty"`       // 向量维度 (仅适用于向量类型)
	MaxLength    int    `yaml:"maxLength,omitempty"` // 最大长度 (仅适用于VarChar类型)
}

// IndexConfig 定义了 Milvus 集合中索引的配置。
type IndexConfig struct {
	FieldName  string                 `yaml:"fieldName"`  // 要创建索引的字段名称
	IndexType  string                 `yaml:"indexType"`  // 索引类型 (例如: "IVF_FLAT", "HNSW")
	MetricType string                 `yaml:"metricType"` // 相似度度量类型 (例如: "L2", "COSINE")
	Params     map[string]interface{} `yaml:"params"`     // 索引参数 (例如: {"nlist": 128})
}

// SchemaConfig 定义了 Milvus 集合的 Schema 配置。
type SchemaConfig struct {
	CollectionName string        `yaml:"collectionName"` // 集合名称
	Description    string        `yaml:"description"`    // 集合描述
	VectorField    string        `yaml:"vectorField"`    // 向量字段名称
	Fields         []FieldConfig `yaml:"fields"`         // 字段配置列表，为空时使用归档默认字段
	Index          IndexConfig   `yaml:"index"`          // 索引配置
}

// MilvusConfig 定义了 Milvus 数据库的连接和 Schema 配置。
type MilvusConfig struct {
	Address string       `yaml:"address"` // Milvus 服务地址
	Dim     int          `yaml:"dim"`     // 嵌入向量维度
	Schema  SchemaConfig `yaml:"schema"`  // Milvus 集合 Schema 配置
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点，为空时不保存上传的原始文件
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 默认存储桶名称
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// EtcdConfig 定义了 Etcd 服务发现的连接配置。
type EtcdConfig struct {
	Endpoints   []string `yaml:"endpoints"`   // Etcd 节点地址列表，为空时不注册服务
	Username    string   `yaml:"username"`    // 用户名
	Password    string   `yaml:"password"`    // 密码
	ServiceName string   `yaml:"serviceName"` // 注册的服务名
	LeaseTTL    int64    `yaml:"leaseTTL"`    // 租约有效期（秒）
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers   []string `yaml:"brokers"`   // Kafka Broker 地址列表，为空时同步事件只写日志
	SyncTopic string   `yaml:"syncTopic"` // 数据不一致事件的主题
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Milvus MilvusConfig `yaml:"milvus"` // Milvus 数据库配置
	Redis  RedisConfig  `yaml:"redis"`  // Redis 数据库配置
	MySQL  MySQLConfig  `yaml:"mysql"`  // MySQL 数据库配置
	MinIO  MinIOConfig  `yaml:"minio"`  // MinIO 对象存储配置
	Etcd   EtcdConfig   `yaml:"etcd"`   // Etcd 服务发现配置
	Kafka  KafkaConfig  `yaml:"kafka"`  // Kafka 消息队列配置
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// ServerConfig 定义了 HTTP 与 gRPC 监听地址和超时。
type ServerConfig struct {
	HTTPAddr        string        `yaml:"httpAddr"`        // HTTP 监听地址
	GRPCAddr        string        `yaml:"grpcAddr"`        // gRPC 健康检查监听地址，为空时不启动
	ReadTimeout     time.Duration `yaml:"readTimeout"`     // 读取超时
	WriteTimeout    time.Duration `yaml:"writeTimeout"`    // 写入超时
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"` // 优雅关闭超时
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`  // PDF 上传大小上限
}

// AuthConfig 用于配置认证方法和相关设置。
type AuthConfig struct {
	Method    string `yaml:"method"`    // 认证方法, "jwt" 或 "header"（仅开发环境）
	JwtSecret string `yaml:"jwtSecret"` // JWT 密钥
	TokenTTL  int    `yaml:"tokenTTL"`  // JWT 令牌的有效期（秒）
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// GeminiConfig 包含了 Gemini 模型的配置。
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"` // Gemini API 密钥
	Model  string `yaml:"model"`  // Gemini 模型名称
}

// OpenAIConfig 包含了 OpenAI 兼容接口的配置。
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`  // API 密钥
	BaseURL string `yaml:"baseURL"` // 接口地址，为空时使用官方地址
	Model   string `yaml:"model"`   // 模型名称
}

// OllamaConfig 包含了本地 Ollama 服务的配置。
type OllamaConfig struct {
	Host  string `yaml:"host"`  // Ollama 服务地址
	Model string `yaml:"model"` // 模型名称
}

// LLMConfig 包含了不同LLM提供商的配置。
type LLMConfig struct {
	Provider string       `yaml:"provider"` // LLM提供商 (例如: "gemini", "openai", "ollama")
	Gemini   GeminiConfig `yaml:"gemini"`   // Gemini 模型配置
	OpenAI   OpenAIConfig `yaml:"openai"`   // OpenAI 模型配置
	Ollama   OllamaConfig `yaml:"ollama"`   // Ollama 模型配置
}

// EmbeddingConfig 包含了不同Embedding提供商的配置。
type EmbeddingConfig struct {
	Provider  string       `yaml:"provider"`  // Embedding提供商 (例如: "gemini", "openai", "ollama")
	Gemini    GeminiConfig `yaml:"gemini"`    // Gemini 模型配置
	OpenAI    OpenAIConfig `yaml:"openai"`    // OpenAI 模型配置
	Ollama    OllamaConfig `yaml:"ollama"`    // Ollama 模型配置
	CacheSize int          `yaml:"cacheSize"` // 查询向量缓存条目数，0 表示不缓存
}

// ArchiveConfig 定义了切分、写入和检索的参数。
type ArchiveConfig struct {
	MaxChars     int           `yaml:"maxChars"`     // 单个分块的最大字符数
	OverlapChars int           `yaml:"overlapChars"` // 相邻分块的重叠字符数
	BatchSize    int           `yaml:"batchSize"`    // 向量写入批大小
	TopK         int           `yaml:"topK"`         // 默认检索条数
	HistoryLimit int           `yaml:"historyLimit"` // 问答时携带的历史消息条数
	LockTTL      time.Duration `yaml:"lockTTL"`      // 同一来源并发写入锁的有效期
	VectorStore  string        `yaml:"vectorStore"`  // 向量库实现, "milvus" 或 "memory"
}

// YouTubeConfig 定义了字幕抓取的地址和语言偏好。
type YouTubeConfig struct {
	WatchURL   string        `yaml:"watchURL"`   // 视频页面地址
	OEmbedURL  string        `yaml:"oembedURL"`  // 标题查询地址
	Languages  []string      `yaml:"languages"`  // 字幕语言优先级
	Timeout    time.Duration `yaml:"timeout"`    // 单次请求超时
	MaxRetries int           `yaml:"maxRetries"` // 请求失败时的重试次数
}

// ExtractorConfig 包含所有内容抽取器的配置。
type ExtractorConfig struct {
	YouTube YouTubeConfig `yaml:"youtube"`
}

// MCPConfig 定义了 MCP 服务的传输方式。
type MCPConfig struct {
	Transport string `yaml:"transport"` // "stdio", "sse" 或 "http"
	Addr      string `yaml:"addr"`      // sse/http 模式下的监听地址
	UserID    string `yaml:"userID"`    // 工具调用所代表的用户
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Algorithm   string            `yaml:"algorithm"` // 支持: "slidingLog", "tokenBucket"
	SlidingLog  SlidingLogConfig  `yaml:"slidingLog"`
	TokenBucket TokenBucketConfig `yaml:"tokenBucket"`
}

// SlidingLogConfig 定义了滑动窗口日志算法的配置。
type SlidingLogConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // 例如: "1m", "30s"
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`        // 应用程序信息
	Server     ServerConfig     `yaml:"server"`     // 监听配置
	Auth       AuthConfig       `yaml:"auth"`       // 认证配置
	LLM        LLMConfig        `yaml:"llm"`        // LLM 配置部分
	Embedding  EmbeddingConfig  `yaml:"embedding"`  // Embedding 配置部分
	Archive    ArchiveConfig    `yaml:"archive"`    // 归档参数
	Extractors ExtractorConfig  `yaml:"extractors"` // 内容抽取配置
	MCP        MCPConfig        `yaml:"mcp"`        // MCP 服务配置
	Logger     LoggerConfig     `yaml:"logger"`     // 日志记录器配置
	Databases  DatabaseConfigs  `yaml:"databases"`  // 数据库配置
	Middleware MiddlewareConfig `yaml:"middleware"` // 中间件配置
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 文件内容中的 ${VAR} 会先用环境变量展开，当前目录下的 .env 文件（如果存在）会先被加载。
// 解析后补全默认值并校验。
func LoadConfig(path string) (*AppConfig, error) {
	// .env 不存在时忽略。
	_ = godotenv.Load()

	// 读取 YAML 文件内容。
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	return Parse(yamlFile)
}

// Parse 展开环境变量、解析 YAML、补全默认值并校验。
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// 0 是合法的重叠长度，所以默认值要在解析前填入。
	cfg.Archive.OverlapChars = 300
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults 为未设置的字段填充默认值。
func (c *AppConfig) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "ask-archive"
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 32 << 20
	}
	if c.Auth.Method == "" {
		c.Auth.Method = "jwt"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Archive.MaxChars == 0 {
		c.Archive.MaxChars = 2000
	}
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = 100
	}
	if c.Archive.TopK == 0 {
		c.Archive.TopK = 5
	}
	if c.Archive.HistoryLimit == 0 {
		c.Archive.HistoryLimit = 10
	}
	if c.Archive.LockTTL == 0 {
		c.Archive.LockTTL = 10 * time.Minute
	}
	if c.Archive.VectorStore == "" {
		c.Archive.VectorStore = "milvus"
	}
	yt := &c.Extractors.YouTube
	if yt.WatchURL == "" {
		yt.WatchURL = "https://www.youtube.com/watch"
	}
	if yt.OEmbedURL == "" {
		yt.OEmbedURL = "https://www.youtube.com/oembed"
	}
	if len(yt.Languages) == 0 {
		yt.Languages = []string{"en"}
	}
	if yt.Timeout == 0 {
		yt.Timeout = 15 * time.Second
	}
	if c.MCP.Transport == "" {
		c.MCP.Transport = "stdio"
	}
	if c.MCP.Addr == "" {
		c.MCP.Addr = ":8090"
	}
	m := &c.Databases.Milvus
	if m.Schema.CollectionName == "" {
		m.Schema.CollectionName = "archive_chunks"
	}
	if m.Schema.VectorField == "" {
		m.Schema.VectorField = "embedding"
	}
	if m.Schema.Index.IndexType == "" {
		m.Schema.Index = IndexConfig{FieldName: m.Schema.VectorField, IndexType: "AUTOINDEX", MetricType: "COSINE"}
	}
	if c.Databases.Kafka.SyncTopic == "" {
		c.Databases.Kafka.SyncTopic = "archive.sync-events"
	}
	if c.Databases.Etcd.ServiceName == "" {
		c.Databases.Etcd.ServiceName = c.App.Name
	}
	if c.Databases.Etcd.LeaseTTL == 0 {
		c.Databases.Etcd.LeaseTTL = 10
	}
}

// Validate 检查会导致启动后才暴露的问题的配置。
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Archive.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("archive.maxChars 必须为正数"))
	}
	if c.Archive.OverlapChars < 0 || c.Archive.OverlapChars >= c.Archive.MaxChars {
		errs = append(errs, fmt.Errorf("archive.overlapChars 必须在 [0, maxChars) 之间"))
	}
	if c.Archive.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("archive.batchSize 必须为正数"))
	}
	switch c.Archive.VectorStore {
	case "milvus":
		if c.Databases.Milvus.Address == "" {
			errs = append(errs, fmt.Errorf("databases.milvus.address 不能为空"))
		}
		if c.Databases.Milvus.Dim <= 0 {
			errs = append(errs, fmt.Errorf("databases.milvus.dim 必须为正数"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("不支持的向量库: %s", c.Archive.VectorStore))
	}
	switch c.Auth.Method {
	case "jwt":
		if c.Auth.JwtSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwtSecret 不能为空"))
		}
	case "header":
	default:
		errs = append(errs, fmt.Errorf("不支持的认证方法: %s", c.Auth.Method))
	}
	switch c.MCP.Transport {
	case "stdio", "sse", "http":
	default:
		errs = append(errs, fmt.Errorf("不支持的 MCP 传输方式: %s", c.MCP.Transport))
	}
	return errors.Join(errs...)
}
