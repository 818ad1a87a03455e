package db

import (
	"context"
	"strings"
	"testing"
)

func TestNewPool_InvalidURL(t *testing.T) {
	_, err := NewPool(context.Background(), Config{URL: "://not-a-url"})
	if err == nil {
		t.Fatal("expected error for malformed database url")
	}
	if !strings.Contains(err.Error(), "parse database url") {
		t.Errorf("error %q should mention url parsing", err)
	}
}
