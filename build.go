//go:build ignore

// build.go - Sales Dashboard Build System
// Usage: go run build.go [-target=TARGET] [-version=VERSION]
// Targets: all, dashboard, dashctl, clean, test, release

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const module = "salesdash"

var (
	rootDir string
	distDir string

	// key = directory under cmd/, value = output name without extension
	executables = map[string]string{
		"dashboard": "dashboard",
		"dashctl":   "dashctl",
	}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type buildContext struct {
	Verbose bool
	Version string
	GOOS    string
	GOARCH  string
}

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("Failed to get current directory: %v", err))
	}
	rootDir = cwd
	if _, err := os.Stat(filepath.Join(rootDir, "go.mod")); os.IsNotExist(err) {
		panic(fmt.Sprintf("go.mod not found in %s, run from the repository root", rootDir))
	}
	distDir = filepath.Join(rootDir, "dist")
}

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	version := flag.String("version", "dev", "Version stamped into the binaries")
	flag.Parse()

	printHeader()
	startTime := time.Now()

	ctx := &buildContext{
		Verbose: *verbose,
		Version: *version,
		GOOS:    runtime.GOOS,
		GOARCH:  runtime.GOARCH,
	}

	var err error
	switch *target {
	case "all":
		err = buildAll(ctx)
	case "dashboard", "dashctl":
		err = buildExecutable(*target, ctx)
	case "clean":
		err = clean()
	case "test":
		err = runTests(ctx.Verbose)
	case "release":
		err = buildRelease(ctx)
	default:
		showHelp()
		os.Exit(1)
	}
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "     Sales Dashboard - Build System       " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

func buildAll(ctx *buildContext) error {
	printInfo("Building all components...")
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return fmt.Errorf("create dist directory: %w", err)
	}
	for name := range executables {
		if err := buildExecutable(name, ctx); err != nil {
			return err
		}
	}
	return copyFile(filepath.Join(rootDir, ".env.example"), filepath.Join(distDir, ".env.example"))
}

func outputName(name string, ctx *buildContext) string {
	exe := executables[name]
	if ctx.GOOS == "windows" {
		exe += ".exe"
	}
	return exe
}

func buildExecutable(name string, ctx *buildContext) error {
	if _, ok := executables[name]; !ok {
		return fmt.Errorf("unknown executable: %s", name)
	}
	printInfo(fmt.Sprintf("Building %s (%s/%s)...", name, ctx.GOOS, ctx.GOARCH))

	outDir := distDir
	if ctx.GOOS != runtime.GOOS || ctx.GOARCH != runtime.GOARCH {
		outDir = filepath.Join(distDir, ctx.GOOS+"_"+ctx.GOARCH)
	}
	outputPath := filepath.Join(outDir, outputName(name, ctx))

	ldflags := strings.Join([]string{
		"-s", "-w",
		fmt.Sprintf("-X %s/internal/infrastructure.Version=%s", module, ctx.Version),
		fmt.Sprintf("-X %s/internal/app.BuildTime=%s", module, time.Now().UTC().Format(time.RFC3339)),
	}, " ")

	args := []string{"build"}
	if ctx.Verbose {
		args = append(args, "-v")
	}
	args = append(args, "-trimpath", "-ldflags", ldflags, "-o", outputPath, "./cmd/"+name)

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Env = append(os.Environ(), "GOOS="+ctx.GOOS, "GOARCH="+ctx.GOARCH, "CGO_ENABLED=0")
	cmd.Stderr = os.Stderr
	if ctx.Verbose {
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
		cmd.Stdout = os.Stdout
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build %s: %w", name, err)
	}

	if info, err := os.Stat(outputPath); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", outputPath, float64(info.Size())/1024/1024))
	}
	return nil
}

func clean() error {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(distDir); err != nil {
		return fmt.Errorf("clean dist directory: %w", err)
	}
	printSuccess("Build artifacts cleaned")
	return nil
}

func runTests(verbose bool) error {
	printInfo("Running Go tests...")
	args := []string{"test", "-race"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go tests failed: %w", err)
	}
	printSuccess("All tests passed")
	return nil
}

// release cross-compiles every executable for the supported platforms
func buildRelease(ctx *buildContext) error {
	printInfo("Building release version...")
	if ctx.Version == "dev" {
		printWarning("No -version given, stamping binaries as dev")
	}
	if err := clean(); err != nil {
		return err
	}

	platforms := [][2]string{
		{"linux", "amd64"},
		{"linux", "arm64"},
		{"darwin", "arm64"},
		{"windows", "amd64"},
	}
	for _, p := range platforms {
		pctx := *ctx
		pctx.GOOS, pctx.GOARCH = p[0], p[1]
		for name := range executables {
			if err := buildExecutable(name, &pctx); err != nil {
				return err
			}
		}
	}

	content := fmt.Sprintf("Sales Dashboard %s\nBuilt: %s\n", ctx.Version, time.Now().Format("2006-01-02 15:04:05"))
	if err := os.WriteFile(filepath.Join(distDir, "VERSION.txt"), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write version file: %w", err)
	}
	printSuccess("Release build completed")
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	return os.WriteFile(dst, data, 0o644)
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v] [-version=VERSION]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all        Build dashboard and dashctl (default)")
	fmt.Println("  dashboard  Build the web dashboard server")
	fmt.Println("  dashctl    Build the command line tool")
	fmt.Println("  clean      Remove build artifacts")
	fmt.Println("  test       Run all Go tests")
	fmt.Println("  release    Cross-compile for linux, darwin and windows")
}
