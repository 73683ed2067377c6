package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func execute(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func exitCode(err error) int {
	var ee *exitErr
	if errors.As(err, &ee) {
		return ee.code
	}
	return -1
}

const evidenceBatch = `[
  {
    "subjectId": "alice",
    "records": [
      {"dimensionCode": "GAI", "timestamp": "2025-05-01T00:00:00Z", "magnitude": 92},
      {"dimensionCode": "RQS", "timestamp": "2025-05-02T00:00:00Z", "magnitude": "85"},
      {"dimensionCode": "EQS", "timestamp": "2025-05-03T00:00:00Z", "magnitude": null}
    ],
    "history": [{"periodIndex": 1, "score": 70}, {"periodIndex": 2, "score": 74}]
  },
  {
    "subjectId": "bob",
    "records": [{"dimensionCode": "GAI", "timestamp": "2025-05-01T00:00:00Z", "magnitude": 55}]
  }
]`

func TestScoreBatchJSON(t *testing.T) {
	path := writeFile(t, "evidence.json", evidenceBatch)
	out, err := execute("score", path)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var outputs []scoreOutput
	if err := json.Unmarshal([]byte(out), &outputs); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(outputs) != 2 || outputs[0].SubjectID != "alice" || outputs[1].SubjectID != "bob" {
		t.Fatalf("unexpected outputs: %+v", outputs)
	}
	if outputs[0].Result == nil || outputs[0].Result.Dropped != 1 {
		t.Fatalf("expected alice to have one dropped record: %+v", outputs[0])
	}
	if outputs[0].Result.Score <= outputs[1].Result.Score {
		t.Fatalf("expected alice to outscore bob: %v vs %v", outputs[0].Result.Score, outputs[1].Result.Score)
	}
}

func TestScoreSingleSubjectText(t *testing.T) {
	path := writeFile(t, "one.json", `{"subjectId": "carol", "records": [{"dimensionCode": "CRI", "timestamp": "2025-05-01T00:00:00Z", "magnitude": 70}]}`)
	out, err := execute("score", "--format", "text", path)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !strings.HasPrefix(out, "SUBJECT") || !strings.Contains(out, "carol") {
		t.Fatalf("unexpected text output:\n%s", out)
	}
}

func TestScoreReportsFailedSubjects(t *testing.T) {
	path := writeFile(t, "bad.json", `[{"subjectId": "dave", "records": [{"dimensionCode": "NOPE", "magnitude": 1}]}]`)
	out, err := execute("score", path)
	if exitCode(err) != 4 {
		t.Fatalf("expected exit code 4, got %v", err)
	}
	if !strings.Contains(out, "malformed evidence") {
		t.Fatalf("expected error in output, got %s", out)
	}
}

func TestScoreRejectsUnknownFormat(t *testing.T) {
	path := writeFile(t, "one.json", `{"subjectId": "x"}`)
	if _, err := execute("score", "--format", "xml", path); exitCode(err) != 2 {
		t.Fatalf("expected exit code 2, got %v", err)
	}
	if _, err := execute("score", filepath.Join(t.TempDir(), "missing.json")); exitCode(err) != 3 {
		t.Fatalf("expected exit code 3 for missing file, got %v", err)
	}
}

func TestPolicyValidate(t *testing.T) {
	good := writeFile(t, "good.yaml", "smoothing_k: 2\nconfidence_k: 30\n")
	out, err := execute("policy", "validate", good)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "policy ok") || !strings.Contains(out, "smoothing k 2") {
		t.Fatalf("unexpected output %q", out)
	}

	bad := writeFile(t, "bad.yaml", "weights:\n  GAI: 0.5\n  RQS: 0.5\n")
	if _, err := execute("policy", "validate", bad); exitCode(err) != 2 {
		t.Fatalf("expected exit code 2 for incomplete weights, got %v", err)
	}
}

func TestPolicyShow(t *testing.T) {
	out, err := execute("policy", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "smoothing_k: 1") || !strings.Contains(out, "GAI: 0.25") {
		t.Fatalf("unexpected policy yaml:\n%s", out)
	}
}
