// ABOUTME: Tests for version constants
// ABOUTME: Ensures version information is properly defined
package version

import (
	"strings"
	"testing"
)

func TestVersionDefined(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestProductDefined(t *testing.T) {
	if Product == "" {
		t.Error("Product should not be empty")
	}
}

func TestManufacturerDefined(t *testing.T) {
	if Manufacturer == "" {
		t.Error("Manufacturer should not be empty")
	}
}

func TestUserAgentComposition(t *testing.T) {
	if !strings.HasPrefix(UserAgent, Manufacturer+"/") {
		t.Errorf("UserAgent = %q", UserAgent)
	}
	if !strings.HasSuffix(UserAgent, Version) {
		t.Errorf("UserAgent = %q", UserAgent)
	}
}
