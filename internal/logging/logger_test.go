package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readCategoryLog(t *testing.T, workspace string, category Category) string {
	t.Helper()
	dir := filepath.Join(workspace, ".scout", "logs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading logs dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), "_"+string(category)+".log") {
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				t.Fatalf("reading log file: %v", err)
			}
			return string(data)
		}
	}
	return ""
}

func TestDisabledLoggingIsNoOp(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws, Options{Debug: false}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer Close()

	Pipeline("this should go nowhere")

	if _, err := os.Stat(filepath.Join(ws, ".scout", "logs")); !os.IsNotExist(err) {
		t.Error("disabled logging must not create the logs directory")
	}
}

func TestEnabledLoggingWritesCategoryFile(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws, Options{Debug: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer Close()

	Pipeline("run %s started", "abc-123")
	PipelineDebug("detail line")
	Discovery("found %d hits", 4)

	pipelineLog := readCategoryLog(t, ws, CategoryPipeline)
	if !strings.Contains(pipelineLog, "run abc-123 started") {
		t.Errorf("pipeline log missing info line: %q", pipelineLog)
	}
	if !strings.Contains(pipelineLog, "detail line") {
		t.Errorf("pipeline log missing debug line: %q", pipelineLog)
	}

	discoveryLog := readCategoryLog(t, ws, CategoryDiscovery)
	if !strings.Contains(discoveryLog, "found 4 hits") {
		t.Errorf("discovery log missing line: %q", discoveryLog)
	}
}

func TestLevelFiltering(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws, Options{Debug: true, Level: "warn"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer Close()

	Get(CategoryStore).Info("info suppressed")
	Get(CategoryStore).Warn("warn kept")

	storeLog := readCategoryLog(t, ws, CategoryStore)
	if strings.Contains(storeLog, "info suppressed") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(storeLog, "warn kept") {
		t.Error("warn line should be written at warn level")
	}
}

func TestCategoryFiltering(t *testing.T) {
	ws := t.TempDir()
	err := Initialize(ws, Options{
		Debug:      true,
		Level:      "debug",
		Categories: map[string]bool{string(CategoryCrawler): false},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer Close()

	Crawler("should be dropped")
	Verifier("should be written")

	if got := readCategoryLog(t, ws, CategoryCrawler); got != "" {
		t.Errorf("disabled category wrote output: %q", got)
	}
	if got := readCategoryLog(t, ws, CategoryVerifier); !strings.Contains(got, "should be written") {
		t.Errorf("enabled category missing output: %q", got)
	}
}

func TestJSONFormat(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws, Options{Debug: true, Level: "info", JSONFormat: true}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer Close()

	Boot("structured %s", "line")

	bootLog := readCategoryLog(t, ws, CategoryBoot)
	if !strings.Contains(bootLog, `"msg":"structured line"`) {
		t.Errorf("expected JSON line, got %q", bootLog)
	}
	if !strings.Contains(bootLog, `"cat":"boot"`) {
		t.Errorf("expected category field, got %q", bootLog)
	}
}
