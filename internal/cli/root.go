package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd 创建顶层 hajj-engine 命令并注册全部子命令
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "hajj-engine",
		Short:         "朝觐阶段放行与集散中心补员引擎",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认查找 ./config/config.yaml 与 ./config.yaml，可用 HAJJ_ 前缀环境变量覆盖）")

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newSweepCmd(&configPath),
		newAuditCmd(&configPath),
		newTokenCmd(&configPath),
	)

	return root
}

// Execute 运行根命令，出错时以非零状态退出
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
