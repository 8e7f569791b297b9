package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mktvis.log")

	log, err := New("debug", path)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	log.Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte(`"msg":"hello"`)) {
		t.Errorf("log file does not contain message: %s", data)
	}
}

func TestNew_InvalidPath(t *testing.T) {
	if _, err := New("info", "/invalid-path/does-not-exist.log"); err == nil {
		t.Fatal("expected error for invalid path, got nil")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("loud", ""); err == nil {
		t.Fatal("expected error for invalid level, got nil")
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, logrus.DebugLevel)

	log.WithFields(map[string]any{"ip": "8.8.8.8"}).Warn("lookup")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if line["ip"] != "8.8.8.8" || line["level"] != "warning" {
		t.Errorf("unexpected log line: %v", line)
	}
}
