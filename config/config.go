package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"accidentlab/ml"
	"accidentlab/tuning"

	"gopkg.in/yaml.v2"
)

const DefaultPath = "config.yaml"

type Config struct {
	Data struct {
		Input     string `yaml:"input"`
		OutputDir string `yaml:"output_dir"`
	} `yaml:"data"`
	Database struct {
		Path string `yaml:"path"`
		WAL  bool   `yaml:"wal"`
	} `yaml:"database"`
	Http struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	ML struct {
		ModelPath string              `yaml:"model_path"`
		TestRatio float64             `yaml:"test_ratio"`
		Seed      int64               `yaml:"seed"`
		Boosting  ml.BoostingParams   `yaml:"boosting"`
		Search    tuning.SearchConfig `yaml:"search"`
	} `yaml:"ml"`
	Predictor struct {
		CacheSize int `yaml:"cache_size"`
	} `yaml:"predictor"`
	Risk struct {
		RulesPath string `yaml:"rules_path"`
	} `yaml:"risk"`
}

// Default 默认配置
func Default() *Config {
	var c Config
	c.Data.Input = "data/only_road_accidents_data_month2.csv"
	c.Data.OutputDir = "output"
	c.Database.Path = "data/accidentlab.db"
	c.Database.WAL = true
	c.Http.Port = 8080
	c.Http.ReadTimeout = 15 * time.Second
	c.Http.WriteTimeout = 15 * time.Second
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 50
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 28
	c.ML.ModelPath = "models/best_accident_predictor_rf_model.json"
	c.ML.TestRatio = 0.2
	c.ML.Seed = 42
	c.ML.Boosting = ml.DefaultBoostingParams()
	c.ML.Search = tuning.DefaultSearchConfig()
	c.Predictor.CacheSize = 1024
	c.Risk.RulesPath = "risk_rules.yaml"
	return &c
}

// Find 在当前目录找不到时回退到上级目录
func Find(path string) string {
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil || filepath.IsAbs(path) {
		return path
	}
	parent := filepath.Join("..", path)
	if _, err := os.Stat(parent); err == nil {
		return parent
	}
	return path
}

// Load 读取配置；文件不存在时返回默认值。相对路径以配置文件所在目录为基准
func Load(path string) (*Config, error) {
	c := Default()
	grid := c.ML.Search.Parameters
	c.ML.Search.Parameters = nil

	file, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.ML.Search.Parameters = grid
		return c, c.Validate()
	case err != nil:
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if c.ML.Search.Parameters == nil {
		c.ML.Search.Parameters = grid
	}
	c.resolvePaths(filepath.Dir(path))
	return c, c.Validate()
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{
		&c.Data.Input, &c.Data.OutputDir, &c.Database.Path,
		&c.Log.File, &c.ML.ModelPath, &c.Risk.RulesPath,
	} {
		if *p != "" && !filepath.IsAbs(*p) && *p != ":memory:" {
			*p = filepath.Join(base, *p)
		}
	}
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.ML.TestRatio <= 0 || c.ML.TestRatio >= 1 {
		return fmt.Errorf("ml.test_ratio %.2f must be in (0, 1)", c.ML.TestRatio)
	}
	if c.ML.Search.Folds < 2 {
		return fmt.Errorf("ml.search.folds must be at least 2, got %d", c.ML.Search.Folds)
	}
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.Http.Port)
	}
	if c.Data.Input == "" {
		return errors.New("data.input is required")
	}
	return nil
}
