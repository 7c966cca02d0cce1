package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"spice/logging"
	"spice/types"
)

// fileConfig 配置文件结构, 命令行参数和 SPICE_* 环境变量优先
type fileConfig struct {
	Solver types.Config   `mapstructure:"solver"`
	Log    logging.Config `mapstructure:"log"`
	Store  struct {
		Dir  string `mapstructure:"dir"`
		Kind string `mapstructure:"kind"`
	} `mapstructure:"store"`
	Warm bool `mapstructure:"warm"`
}

// flagKeys 命令行参数到配置键
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-json":   "log.json",
	"log-file":   "log.file",
	"threads":    "solver.threads",
	"param-mode": "solver.param_mode",
	"do-last":    "solver.do_last",
	"store":      "store.dir",
	"store-kind": "store.kind",
	"warm":       "warm",
}

// loadConfig 合并默认值、配置文件、环境变量和命令行参数
func loadConfig(cmd *cobra.Command, file string) (fileConfig, error) {
	v := viper.New()
	def := types.DefaultConfig()
	for key, val := range map[string]any{
		"reltol":          def.RelTol,
		"abstol":          def.AbsTol,
		"vntol":           def.VnTol,
		"gmin":            def.Gmin,
		"max_iter":        def.MaxIter,
		"sweep_max_iter":  def.SweepMaxIter,
		"mixing":          def.Mixing,
		"check_fp":        def.CheckFP,
		"interrupt_every": def.InterruptEvery,
		"threads":         def.Threads,
		"do_last":         def.DoLast,
		"param_mode":      def.ParamMode.String(),
	} {
		v.SetDefault("solver."+key, val)
	}
	v.SetDefault("log.level", "info")
	v.SetDefault("store.kind", "file")

	v.SetEnvPrefix("SPICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fileConfig{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fileConfig{}, err
			}
		}
	}

	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fileConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Solver.ParamMode.UnmarshalText([]byte(v.GetString("solver.param_mode"))); err != nil {
		return fileConfig{}, err
	}
	if err := cfg.Solver.Validate(); err != nil {
		return fileConfig{}, err
	}
	return cfg, nil
}
