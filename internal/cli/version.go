package cli

import (
	"fmt"
	"runtime"

	"lifekit-core/internal/version"

	"github.com/spf13/cobra"
)

// versionCmd 显示版本信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show detailed version information including build time and git commit.

Example:
  lifekit version`,
	Run: runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Println()
	fmt.Printf("Lifekit %s\n", version.Full())
	fmt.Printf("  %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Println()
	fmt.Println("A resource lifecycle and event subscription runtime with")
	fmt.Println("weak ownership tracking and profile-aware cleanup scheduling.")
	fmt.Println()
}
