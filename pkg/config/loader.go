// pkg/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序: 当前目录 -> ./.nest -> ~/.nest
		viper.AddConfigPath(".")
		viper.AddConfigPath(".nest")
		viper.AddConfigPath(filepath.Join(home, ".nest"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// 环境变量 (NEST_CONTAINER_PATH 等)
	viper.SetEnvPrefix("NEST")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// 没有配置文件不算错 (可能全靠默认值和环境变量)；
		// 配置文件格式坏了才是错
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	return nil
}

func setDefaults() {
	wd, _ := os.Getwd()
	viper.SetDefault("container.path", filepath.Join(wd, ".nest", "container.db"))
	viper.SetDefault("container.chunk_size", 0) // 0 = 引擎自选

	viper.SetDefault("cache.redis_url", "") // 空 = 不启用缓存
	viper.SetDefault("cache.ttl", 24*time.Hour)

	viper.SetDefault("backup.region", "us-east-1")
}
