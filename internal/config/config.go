package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	AI         AIConfig
	Questions  QuestionsConfig
	Hesitation HesitationConfig
	Presence   PresenceConfig
	Archive    ArchiveConfig
	Log        LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	questions, err := loadQuestionsConfig()
	if err != nil {
		return nil, err
	}

	hesitation, err := loadHesitationConfig()
	if err != nil {
		return nil, err
	}

	presence, err := loadPresenceConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		AI:         ai,
		Questions:  questions,
		Hesitation: hesitation,
		Presence:   presence,
		Archive: ArchiveConfig{
			Path: getEnvOrDefault("ARCHIVE_DB_PATH", "data/reports.db"),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origins := splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AIConfig 描述出题大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// QuestionsConfig 描述题库来源。
type QuestionsConfig struct {
	BankPath string
	Count    int
	Adaptive bool
}

func loadQuestionsConfig() (QuestionsConfig, error) {
	adaptive, err := parseBoolEnv("QUESTIONS_ADAPTIVE", false)
	if err != nil {
		return QuestionsConfig{}, err
	}

	count := 3
	if override, err := parseOptionalIntEnv("QUESTIONS_COUNT"); err != nil {
		return QuestionsConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return QuestionsConfig{}, fmt.Errorf("invalid QUESTIONS_COUNT value %d: must be positive", *override)
		}
		count = *override
	}

	return QuestionsConfig{
		BankPath: strings.TrimSpace(os.Getenv("QUESTIONS_BANK_PATH")),
		Count:    count,
		Adaptive: adaptive,
	}, nil
}

// HesitationConfig 描述语音犹豫度分析服务。
type HesitationConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Enabled 表示是否配置了分析服务地址。
func (c HesitationConfig) Enabled() bool {
	return c.BaseURL != ""
}

func loadHesitationConfig() (HesitationConfig, error) {
	timeout, err := parseDurationEnv("HESITATION_TIMEOUT", 30*time.Second)
	if err != nil {
		return HesitationConfig{}, err
	}
	return HesitationConfig{
		BaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("HESITATION_URL")), "/"),
		Timeout: timeout,
	}, nil
}

// PresenceConfig 描述实时分析循环与阈值。
type PresenceConfig struct {
	TickInterval    time.Duration
	SpeechThreshold float64
	MaxAudioBytes   int
}

func loadPresenceConfig() (PresenceConfig, error) {
	tick, err := parseDurationEnv("PRESENCE_TICK", 50*time.Millisecond)
	if err != nil {
		return PresenceConfig{}, err
	}
	if tick < 10*time.Millisecond {
		return PresenceConfig{}, fmt.Errorf("invalid PRESENCE_TICK value %s: must be at least 10ms", tick)
	}

	threshold := 15.0
	if override, err := parseOptionalFloatEnv("PRESENCE_SPEECH_THRESHOLD"); err != nil {
		return PresenceConfig{}, err
	} else if override != nil {
		threshold = *override
	}

	maxAudio := 32 << 20
	if override, err := parseOptionalIntEnv("PRESENCE_MAX_AUDIO_BYTES"); err != nil {
		return PresenceConfig{}, err
	} else if override != nil && *override > 0 {
		maxAudio = *override
	}

	return PresenceConfig{
		TickInterval:    tick,
		SpeechThreshold: threshold,
		MaxAudioBytes:   maxAudio,
	}, nil
}

// ArchiveConfig 描述报告归档数据库。Path 为空时不归档。
type ArchiveConfig struct {
	Path string
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// 纯数字按秒解析。
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
