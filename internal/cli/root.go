// Package cli 提供 lifekit 命令行框架
package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"lifekit-core/internal/core/log"
	"lifekit-core/internal/version"

	"github.com/spf13/cobra"
)

// 全局标志
var (
	configFile string
	noColor    bool
)

// rootCmd 代表根命令
var rootCmd = &cobra.Command{
	Use:   "lifekit",
	Short: "Lifekit - resource lifecycle and event subscription runtime",
	Long: `Lifekit tracks runtime resources with weak ownership, releases them through
a profile-aware scheduler, and routes events to capped subscriptions.

Quick Start:
  lifekit demo              Run a scripted walkthrough of the runtime
  lifekit stress            Churn resources and subscriptions, print telemetry
  lifekit inspect           Start the interactive inspection shell
  lifekit serve             Run the runtime with the ops HTTP API`,
	Version: version.Full(),
}

// Execute 执行根命令
func Execute() {
	// 全局 panic recovery
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("FATAL: main goroutine panic recovered: %v", r)
			log.Errorf("Stack trace:\n%s", string(debug.Stack()))
			fmt.Fprintf(os.Stderr, "\nPANIC: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(debug.Stack()))
			os.Exit(2)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// 全局标志
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path (default: lifekit.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// 添加子命令
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// exitErr 打印错误并退出
func exitErr(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
