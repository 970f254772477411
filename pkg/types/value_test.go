package types

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestValueEqual(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"strings", String("x"), String("x"), true},
		{"strings differ", String("x"), String("y"), false},
		{"numbers", Number(3), Number(3), true},
		{"bools", Bool(true), Bool(true), true},
		{"nulls", Null(), Null(), true},
		{"times", Time(now), Time(now.In(time.FixedZone("IST", 19800))), true},
		{"kind mismatch", String("3"), Number(3), false},
		{"bool vs null", Bool(false), Null(), false},
		{"lists never equal", StringList([]string{"a"}), StringList([]string{"a"}), false},
		{"empty lists never equal", List(), List(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueCompare(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	tests := []struct {
		name string
		a, b Value
		want int
		ok   bool
	}{
		{"numbers less", Number(1), Number(2), -1, true},
		{"numbers greater", Number(2), Number(1), 1, true},
		{"numbers equal", Number(2), Number(2), 0, true},
		{"strings", String("a"), String("b"), -1, true},
		{"times", Time(early), Time(late), -1, true},
		{"cross kind unordered", Number(1), String("2"), 0, false},
		{"bools unordered", Bool(false), Bool(true), 0, false},
		{"lists unordered", List(), List(), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.a.Compare(tt.b)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Compare = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestValueAccessors(t *testing.T) {
	if s, ok := String("x").AsString(); !ok || s != "x" {
		t.Errorf("AsString = (%q, %v)", s, ok)
	}
	if _, ok := Number(1).AsString(); ok {
		t.Error("AsString on a number should report false")
	}
	if n, ok := Number(2.5).AsNumber(); !ok || n != 2.5 {
		t.Errorf("AsNumber = (%f, %v)", n, ok)
	}
	if b, ok := Bool(true).AsBool(); !ok || !b {
		t.Errorf("AsBool = (%v, %v)", b, ok)
	}
	if items, ok := StringList([]string{"a", "b"}).AsList(); !ok || len(items) != 2 {
		t.Errorf("AsList = (%v, %v)", items, ok)
	}
	if !Null().IsNull() || String("").IsNull() {
		t.Error("IsNull misreports")
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Value
	}{
		{"string", `"faculty"`, String("faculty")},
		{"number", `42`, Number(42)},
		{"bool", `true`, Bool(true)},
		{"null", `null`, Null()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Value
			if err := json.Unmarshal([]byte(tt.json), &v); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !v.Equal(tt.want) {
				t.Errorf("decoded %v, want %v", v, tt.want)
			}

			out, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(out) != tt.json {
				t.Errorf("re-encoded %s, want %s", out, tt.json)
			}
		})
	}
}

func TestValueJSONList(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`["a", 2, true]`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	items, ok := v.AsList()
	if !ok || len(items) != 3 {
		t.Fatalf("AsList = (%v, %v)", items, ok)
	}
	if !items[0].Equal(String("a")) || !items[1].Equal(Number(2)) || !items[2].Equal(Bool(true)) {
		t.Errorf("list elements decoded wrong: %v", items)
	}
}

func TestValueJSONRejectsObjects(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`{"nested": true}`), &v); err == nil {
		t.Error("object values should be rejected")
	}
}

func TestValueJSONDateStringStaysString(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`"2026-03-10T12:00:00Z"`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Kind() != KindString {
		t.Errorf("date-shaped string decoded as %s, want string", v.Kind())
	}
}

func TestValueTimeJSONEncoding(t *testing.T) {
	v := Time(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2026-03-10T12:00:00Z"` {
		t.Errorf("encoded %s, want RFC 3339 string", out)
	}
}

func TestValueYAMLNormalization(t *testing.T) {
	var doc struct {
		Scalar Value `yaml:"scalar"`
		Flag   Value `yaml:"flag"`
		Items  Value `yaml:"items"`
	}
	input := "scalar: 7\nflag: false\nitems: [1, two]\n"
	if err := yaml.Unmarshal([]byte(input), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// yaml.v3 hands integers over as int; they must land as numbers.
	if !doc.Scalar.Equal(Number(7)) {
		t.Errorf("scalar = %v, want number 7", doc.Scalar)
	}
	if !doc.Flag.Equal(Bool(false)) {
		t.Errorf("flag = %v, want bool false", doc.Flag)
	}
	items, ok := doc.Items.AsList()
	if !ok || len(items) != 2 {
		t.Fatalf("items = (%v, %v)", items, ok)
	}
	if !items[0].Equal(Number(1)) || !items[1].Equal(String("two")) {
		t.Errorf("list normalization wrong: %v", items)
	}
}

func TestFromInterface(t *testing.T) {
	if v := FromInterface(3); !v.Equal(Number(3)) {
		t.Errorf("int = %v, want number", v)
	}
	if v := FromInterface(int64(3)); !v.Equal(Number(3)) {
		t.Errorf("int64 = %v, want number", v)
	}
	if v := FromInterface(map[string]interface{}{"x": 1}); !v.IsNull() {
		t.Errorf("map = %v, want null", v)
	}
	if v := FromInterface(String("wrapped")); !v.Equal(String("wrapped")) {
		t.Errorf("Value passthrough = %v", v)
	}
	if v := FromInterface([]string{"a"}); v.Kind() != KindList {
		t.Errorf("[]string = %v, want list", v)
	}
}

func TestKindString(t *testing.T) {
	kinds := map[Kind]string{
		KindNull:   "null",
		KindString: "string",
		KindNumber: "number",
		KindBool:   "bool",
		KindTime:   "time",
		KindList:   "list",
		Kind(99):   "unknown",
	}
	for k, want := range kinds {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
