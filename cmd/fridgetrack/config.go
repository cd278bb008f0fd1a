package main

import (
	"fmt"

	"github.com/peterbourgon/ff/v4"
)

// Config is the parsed command line and FRIDGETRACK_* environment
type Config struct {
	Port int

	Store         string
	DBPath        string
	MongoURI      string
	MongoDatabase string

	Storage     string
	StoragePath string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	Cache         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GeminiKey   string
	GeminiModel string
	OllamaURL   string
	OllamaModel string
	GroqKey     string

	YOLOURL           string
	RoboflowKey       string
	RoboflowWorkspace string
	RoboflowProject   string
	RoboflowVersion   int
	VisionOCRKey      string

	DetectThreshold float64
	MockMinItems    int
	MockMaxItems    int

	ShowVersion bool
}

// parseConfig reads flags, then FRIDGETRACK_* variables. Provider keys also fall back to
// their conventional unprefixed variables.
func parseConfig(args []string, getenv func(string) string) (*Config, *ff.FlagSet, error) {
	fs := ff.NewFlagSet("fridgetrack")
	var (
		port              = fs.IntLong("port", 8000, "HTTP server port")
		store             = fs.StringLong("store", "bolt", "Record store: 'bolt' or 'mongo'")
		dbPath            = fs.StringLong("db", "fridgetrack.db", "BoltDB file path")
		mongoURI          = fs.StringLong("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
		mongoDatabase     = fs.StringLong("mongo-database", "fridgetrack", "MongoDB database name")
		storage           = fs.StringLong("storage", "local", "Upload storage: 'local' or 's3'")
		storagePath       = fs.StringLong("storage-path", "./uploads", "Local upload directory")
		s3Bucket          = fs.StringLong("s3-bucket", "", "S3 bucket for uploads")
		s3Region          = fs.StringLong("s3-region", "us-east-1", "S3 region")
		s3Endpoint        = fs.StringLong("s3-endpoint", "", "S3-compatible endpoint URL (optional)")
		s3AccessKey       = fs.StringLong("s3-access-key", "", "S3 access key (optional)")
		s3SecretKey       = fs.StringLong("s3-secret-key", "", "S3 secret key (optional)")
		cacheType         = fs.StringLong("cache", "memory", "Shelf-life cache: 'memory' or 'redis'")
		redisAddr         = fs.StringLong("redis-addr", "localhost:6379", "Redis address")
		redisPassword     = fs.StringLong("redis-password", "", "Redis password")
		redisDB           = fs.IntLong("redis-db", 0, "Redis database number")
		geminiKey         = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel       = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		ollamaURL         = fs.StringLong("ollama-url", "", "Ollama API base URL, e.g. http://localhost:11434 (optional)")
		ollamaModel       = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		groqKey           = fs.StringLong("groq-key", "", "Groq API key (or set GROQ_API_KEY env var)")
		yoloURL           = fs.StringLong("yolo-url", "", "YOLO inference service URL (optional)")
		roboflowKey       = fs.StringLong("roboflow-key", "", "Roboflow API key (or set ROBOFLOW_API_KEY env var)")
		roboflowWorkspace = fs.StringLong("roboflow-workspace", "", "Roboflow workspace")
		roboflowProject   = fs.StringLong("roboflow-project", "", "Roboflow project")
		roboflowVersion   = fs.IntLong("roboflow-version", 1, "Roboflow model version")
		visionOCRKey      = fs.StringLong("vision-ocr-key", "", "Google Cloud Vision API key for OCR (or set GOOGLE_VISION_API_KEY env var)")
		threshold         = fs.Float64Long("detect-threshold", 0.4, "Minimum detection confidence")
		mockMin           = fs.IntLong("mock-min-items", 2, "Minimum mock detections per image")
		mockMax           = fs.IntLong("mock-max-items", 5, "Maximum mock detections per image")
		showVersion       = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("FRIDGETRACK"),
	); err != nil {
		return nil, fs, err
	}

	cfg := &Config{
		Port:              *port,
		Store:             *store,
		DBPath:            *dbPath,
		MongoURI:          *mongoURI,
		MongoDatabase:     *mongoDatabase,
		Storage:           *storage,
		StoragePath:       *storagePath,
		S3Bucket:          *s3Bucket,
		S3Region:          *s3Region,
		S3Endpoint:        *s3Endpoint,
		S3AccessKey:       *s3AccessKey,
		S3SecretKey:       *s3SecretKey,
		Cache:             *cacheType,
		RedisAddr:         *redisAddr,
		RedisPassword:     *redisPassword,
		RedisDB:           *redisDB,
		GeminiKey:         firstSet(*geminiKey, getenv("GEMINI_API_KEY")),
		GeminiModel:       *geminiModel,
		OllamaURL:         *ollamaURL,
		OllamaModel:       *ollamaModel,
		GroqKey:           firstSet(*groqKey, getenv("GROQ_API_KEY")),
		YOLOURL:           *yoloURL,
		RoboflowKey:       firstSet(*roboflowKey, getenv("ROBOFLOW_API_KEY")),
		RoboflowWorkspace: *roboflowWorkspace,
		RoboflowProject:   *roboflowProject,
		RoboflowVersion:   *roboflowVersion,
		VisionOCRKey:      firstSet(*visionOCRKey, getenv("GOOGLE_VISION_API_KEY")),
		DetectThreshold:   *threshold,
		MockMinItems:      *mockMin,
		MockMaxItems:      *mockMax,
		ShowVersion:       *showVersion,
	}

	if err := cfg.validate(); err != nil {
		return nil, fs, err
	}
	return cfg, fs, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case "bolt", "mongo":
	default:
		return fmt.Errorf("invalid store %q (valid: bolt, mongo)", c.Store)
	}
	switch c.Storage {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("--s3-bucket is required when --storage=s3")
		}
	default:
		return fmt.Errorf("invalid storage %q (valid: local, s3)", c.Storage)
	}
	switch c.Cache {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid cache %q (valid: memory, redis)", c.Cache)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
