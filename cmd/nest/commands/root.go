package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nestfs/pkg/app"
	"nestfs/pkg/config"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	Nest *app.App
)

var rootCmd = &cobra.Command{
	Use:   "nest",
	Short: "Nest: a virtual file store inside a single SQLite container",
	// PersistentPreRunE 在所有子命令执行前统一初始化 App
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "init":
			// init 自己创建容器
			return nil
		case "restore":
			// restore 要在容器文件不存在时也能跑
			return nil
		}

		var err error
		Nest, err = app.NewApp(false)
		if err != nil {
			return fmt.Errorf("failed to open container: %w\n(did you run 'nest init'?)", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if Nest != nil {
			return Nest.Close()
		}
		return nil
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.nest/config.yaml)")

	// --container 覆盖 container.path，既可以写 yaml 也可以用 flag
	rootCmd.PersistentFlags().String("container", "", "container location (file path, :memory:, or postgres DSN)")
	if err := viper.BindPFlag("container.path", rootCmd.PersistentFlags().Lookup("container")); err != nil {
		fmt.Println("Failed to bind flag:", err)
		os.Exit(1)
	}
}

func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}
