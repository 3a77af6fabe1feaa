//go:build mage

// Package main provides build targets for larder using Mage.
//
// Usage:
//
//	mage build     Compile the larder binary to bin/
//	mage test      Run all tests
//	mage cover     Run tests with a coverage profile in bin/coverage.out
//	mage smoke     Build, then drive the binary through init, add and get
//	mage lint      Run golangci-lint
//	mage clean     Remove build artifacts
//	mage install   Install larder to GOPATH/bin
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "larder"
	binaryDir  = "bin"
	cmdDir     = "./cmd/larder"
	modulePath = "github.com/mesh-intelligence/larder"
)

// Build compiles the larder binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Cover runs all tests with a coverage profile and prints the summary.
func Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV("go", "test", "-coverprofile="+profile, "./..."); err != nil {
		return err
	}
	out, err := sh.Output("go", "tool", "cover", "-func="+profile)
	if err != nil {
		return err
	}
	lines := strings.Split(out, "\n")
	fmt.Println(lines[len(lines)-1])
	return nil
}

// Smoke builds the binary and runs it against a scratch data directory.
func Smoke() error {
	mg.Deps(Build)
	scratch, err := os.MkdirTemp("", "larder-smoke-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	bin := filepath.Join(binaryDir, binaryName)
	run := func(args ...string) error {
		base := []string{"--config-dir", filepath.Join(scratch, "config"), "--data-dir", filepath.Join(scratch, "data")}
		return sh.RunV(bin, append(base, args...)...)
	}
	steps := [][]string{
		{"init"},
		{"add", "range", `{"unique_code":"kg","name":"kilogram","value":1}`},
		{"get", "unit", "kg"},
		{"audit"},
	}
	for _, step := range steps {
		if err := run(step...); err != nil {
			return fmt.Errorf("larder %s: %w", strings.Join(step, " "), err)
		}
	}
	return nil
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV("go", "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", binaryName), filepath.Join(binaryDir, binaryName))
}

// Version prints the module path and the version compiled into the binary.
func Version() error {
	mg.Deps(Build)
	out, err := sh.Output(filepath.Join(binaryDir, binaryName), "version")
	if err != nil {
		return err
	}
	fmt.Println(strings.Replace(out, "module: "+modulePath, "module: "+modulePath+" ("+cmdDir+")", 1))
	return nil
}
