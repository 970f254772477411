package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/campuserp/abac-core/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

const multiDoc = `policies:
  - name: faculty-read-courses
    priority: 10
    isActive: true
    effect: allow
    resource:
      modelName: course
    actions: ["read", "list"]
    subjectConditions:
      - attribute: roles
        operator: contains
        value: faculty
  - name: deny-inactive
    priority: 1
    isActive: true
    effect: deny
    resource:
      modelName: course
    actions: ["*"]
    subjectConditions:
      - attribute: isActive
        operator: equals
        value: false
`

const singleDoc = `name: hod-update-department
priority: 5
isActive: true
effect: allow
resource:
  modelName: department
  resourceConditions:
    - attribute: departmentId
      operator: same_as_user
      referenceUserAttribute: primaryDepartment
actions: ["update"]
`

func TestLoadFromFileList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "policies.yaml", multiDoc)

	rules, err := NewLoader(nil).LoadFromFile(filepath.Join(dir, "policies.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("rule count = %d, want 2", len(rules))
	}
	first := rules[0]
	if first.Name != "faculty-read-courses" || first.Effect != types.EffectAllow {
		t.Errorf("unexpected first rule: %+v", first)
	}
	if len(first.SubjectConditions) != 1 {
		t.Fatalf("subject conditions = %d, want 1", len(first.SubjectConditions))
	}
	if !first.SubjectConditions[0].Value.Equal(types.String("faculty")) {
		t.Errorf("condition value = %v, want faculty", first.SubjectConditions[0].Value)
	}
	if !rules[1].SubjectConditions[0].Value.Equal(types.Bool(false)) {
		t.Errorf("boolean YAML value did not survive: %v", rules[1].SubjectConditions[0].Value)
	}
}

func TestLoadFromFileSingleDocument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rule.yml", singleDoc)

	rules, err := NewLoader(nil).LoadFromFile(filepath.Join(dir, "rule.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 1 || rules[0].Name != "hod-update-department" {
		t.Fatalf("unexpected rules: %+v", rules)
	}
	rc := rules[0].Resource.ResourceConditions
	if len(rc) != 1 || rc[0].Operator != types.OpSameAsUser {
		t.Errorf("resource conditions did not parse: %+v", rc)
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rule.json", `{
  "name": "registrar-export",
  "priority": 3,
  "isActive": true,
  "effect": "allow",
  "resource": {"modelName": "transcript"},
  "actions": ["export"]
}`)

	rules, err := NewLoader(nil).LoadFromFile(filepath.Join(dir, "rule.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 1 || rules[0].Resource.ModelName != "transcript" {
		t.Fatalf("unexpected rules: %+v", rules)
	}
}

func TestLoadFromFileRejectsInvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", `name: broken
effect: allow
resource:
  modelName: course
actions: []
`)

	if _, err := NewLoader(nil).LoadFromFile(filepath.Join(dir, "bad.yaml")); err == nil {
		t.Error("policy without actions should fail validation")
	}
}

func TestLoadFromDirectorySkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", singleDoc)
	writeFile(t, dir, "broken.yaml", ":\nnot yaml at all [")
	writeFile(t, dir, "notes.txt", "ignore me")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	rules, err := NewLoader(nil).LoadFromDirectory(dir)
	if err != nil {
		t.Fatalf("load directory: %v", err)
	}
	if len(rules) != 1 || rules[0].Name != "hod-update-department" {
		t.Errorf("rules = %+v, want just the good file", rules)
	}
}

func TestLoadFromDirectoryMissing(t *testing.T) {
	if _, err := NewLoader(nil).LoadFromDirectory(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("missing directory should error")
	}
}
