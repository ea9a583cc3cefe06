//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const coverFile = "coverage.out"

// Test groups test targets (all, race, cover).
type Test mg.Namespace

// All runs every package's tests.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs every package's tests with the race detector. The ledger and
// chapter tests drive concurrent writers.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover runs every package's tests and writes a coverage profile.
func (Test) Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile="+coverFile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+coverFile)
}
