// Package config 读取 CLI 的 YAML 配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是导出命令的默认参数；命令行参数会覆盖其中的值。
type Config struct {
	DPI           float64           `yaml:"dpi"`
	Workers       int               `yaml:"workers"`
	AssetTimeout  Duration          `yaml:"assetTimeout"`
	LogLevel      string            `yaml:"logLevel"`
	Fonts         map[string]string `yaml:"fonts"`
	LayoutsDir    string            `yaml:"layoutsDir"`
	Placeholders  []string          `yaml:"placeholders"`
	ColorProfiles map[string]string `yaml:"colorProfiles"` // 配置 id → 颜色校正表路径
	Meta          Meta              `yaml:"meta"`
}

// Meta 写入 PDF 文档信息。
type Meta struct {
	Author  string `yaml:"author"`
	Creator string `yaml:"creator"`
}

// Duration 接受 "10s"、"1m30s" 或整数秒。
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var secs int64
	if err := node.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("无效的时长 %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default 返回内置默认配置。
func Default() Config {
	return Config{
		DPI:          300,
		Workers:      4,
		AssetTimeout: Duration(10 * time.Second),
		LogLevel:     "info",
		LayoutsDir:   "layouts",
		Placeholders: []string{"Topcard", "Bottomcard"},
	}
}

// Load 读取配置文件；path 为空或文件不存在时返回默认配置。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("读取配置 %s 失败: %w", path, err)
	}
	return Parse(data)
}

// Parse 在默认配置之上解析 YAML。
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate 检查数值范围。
func (c Config) Validate() error {
	switch {
	case c.DPI <= 0:
		return fmt.Errorf("配置 dpi 必须大于 0，当前为 %g", c.DPI)
	case c.Workers < 1:
		return fmt.Errorf("配置 workers 必须至少为 1，当前为 %d", c.Workers)
	case c.AssetTimeout < 0:
		return fmt.Errorf("配置 assetTimeout 不能为负")
	}
	return nil
}
