//go:build mage

// Package main provides build targets for the pagevault project using Mage.
//
// Usage:
//
//	mage build          Compile the pagevault binary to bin/
//	mage test:all       Run all tests
//	mage test:race      Run all tests with the race detector
//	mage test:cover     Run all tests and write coverage.out
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install pagevault to GOPATH/bin
//	mage stats          Print Go LOC per package
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "pagevault"
	binaryDir  = "bin"
	cmdDir     = "./cmd/pagevault"
	versionVar = "github.com/mesh-intelligence/pagevault/internal/cli.Version"
)

// ldflags stamps the binary with the version from git describe, when there
// is one.
func ldflags() string {
	v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || v == "" {
		return ""
	}
	return fmt.Sprintf("-X %s=%s", versionVar, strings.TrimPrefix(v, "v"))
}

// Build compiles the pagevault binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if lf := ldflags(); lf != "" {
		args = append(args, "-ldflags", lf)
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Clean removes build artifacts.
func Clean() error {
	for _, p := range []string{binaryDir, coverFile} {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Stats prints production and test lines of Go code per package directory.
func Stats() error {
	type counts struct{ prod, test int }
	perDir := map[string]*counts{}

	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			switch path {
			case "vendor", ".git", binaryDir, "magefiles", "_examples":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return nil
		}
		dir := filepath.Dir(path)
		c := perDir[dir]
		if c == nil {
			c = &counts{}
			perDir[dir] = c
		}
		if strings.HasSuffix(path, "_test.go") {
			c.test += n
		} else {
			c.prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(perDir))
	for d := range perDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var prod, test int
	for _, d := range dirs {
		c := perDir[d]
		fmt.Printf("%-20s %6d prod %6d test\n", d, c.prod, c.test)
		prod += c.prod
		test += c.test
	}
	fmt.Printf("%-20s %6d prod %6d test\n", "total", prod, test)
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
