package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParamMapping_ObjectFormPreservesOrder(t *testing.T) {
	input := `{"client_id": "client_id", "status": "status_field", "data": "created_at"}`

	var m ParamMapping
	if err := json.Unmarshal([]byte(input), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Sequence {
		t.Error("object form must not be marked as sequence")
	}

	want := []ParamPair{
		{Name: "client_id", Field: "client_id"},
		{Name: "status", Field: "status_field"},
		{Name: "data", Field: "created_at"},
	}
	if !reflect.DeepEqual(m.Pairs, want) {
		t.Errorf("pairs = %v, want %v", m.Pairs, want)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"client_id":"client_id","status":"status_field","data":"created_at"}` {
		t.Errorf("marshalled = %s, key order not preserved", out)
	}
}

func TestParamMapping_SequenceForm(t *testing.T) {
	input := `["client_id", "status"]`

	var m ParamMapping
	if err := json.Unmarshal([]byte(input), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !m.Sequence {
		t.Error("array form must be marked as sequence")
	}
	if len(m.Pairs) != 2 || m.Pairs[0].Field != "client_id" || m.Pairs[1].Field != "status" {
		t.Errorf("pairs = %v", m.Pairs)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `["client_id","status"]` {
		t.Errorf("marshalled = %s", out)
	}
}

func TestParamMapping_InvalidShapes(t *testing.T) {
	for _, input := range []string{`"scalar"`, `42`, `{"k": 1}`, `[1, 2]`} {
		var m ParamMapping
		if err := json.Unmarshal([]byte(input), &m); err == nil {
			t.Errorf("expected error for %s", input)
		}
	}
}

func TestParamMapping_NullAndEmpty(t *testing.T) {
	var m ParamMapping
	if err := json.Unmarshal([]byte(`null`), &m); err != nil {
		t.Fatalf("null: %v", err)
	}
	if len(m.Pairs) != 0 {
		t.Errorf("null mapping has pairs: %v", m.Pairs)
	}

	if err := json.Unmarshal([]byte(`{}`), &m); err != nil {
		t.Fatalf("empty object: %v", err)
	}
	if len(m.Pairs) != 0 {
		t.Errorf("empty mapping has pairs: %v", m.Pairs)
	}
}

func TestDrillDownConfig_Link(t *testing.T) {
	cfg := &DrillDownConfig{}
	if cfg.Link() != nil {
		t.Error("config without link column must return nil")
	}

	cfg.DetailLinkColumn = "id"
	if cfg.Link() != nil {
		t.Error("link requires a template as well")
	}

	cfg.DetailLinkTemplate = "/lead/{id}"
	cfg.DetailLinkTextColumn = "nome"
	link := cfg.Link()
	if link == nil {
		t.Fatal("expected link config")
	}
	if link.Column != "id" || link.Template != "/lead/{id}" || link.TextColumn != "nome" {
		t.Errorf("link = %+v", link)
	}
}

func TestValidModalSize(t *testing.T) {
	for _, s := range []ModalSize{ModalSmall, ModalMedium, ModalLarge, ModalFullscreen} {
		if !ValidModalSize(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	if ValidModalSize("huge") || ValidModalSize("") {
		t.Error("unknown sizes must be invalid")
	}
}
