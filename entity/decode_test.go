package entity

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-sql/civil"

	"github.com/darianmavgo/hotelload/converters/common"
)

func lookup(t *testing.T, name string) *Descriptor {
	t.Helper()
	d, ok := Lookup(Catalog(DefaultOptions()), name)
	if !ok {
		t.Fatalf("no descriptor for %s", name)
	}
	return d
}

func TestDecodeCoercions(t *testing.T) {
	d := lookup(t, RoomUnavailability)
	row := common.Row{Line: 3, Fields: common.FieldMap{
		"ruid":      json.Number("7"),
		"rid":       "12",
		"startdate": "2023-03-01",
		"enddate":   time.Date(2023, 3, 4, 23, 30, 0, 0, time.UTC),
	}}

	rec, err := Decode(d, row, CoerceReject)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if rec.Line != 3 {
		t.Errorf("expected line 3, got %d", rec.Line)
	}
	if v, _ := rec.Int("ruid"); v != 7 {
		t.Errorf("ruid = %d, want 7", v)
	}
	if v, _ := rec.Int("rid"); v != 12 {
		t.Errorf("rid = %d, want 12", v)
	}
	if v, _ := rec.Date("startdate"); v != (civil.Date{Year: 2023, Month: time.March, Day: 1}) {
		t.Errorf("startdate = %v", v)
	}
	if v, _ := rec.Date("enddate"); v != (civil.Date{Year: 2023, Month: time.March, Day: 4}) {
		t.Errorf("enddate = %v, want the calendar date without timezone shift", v)
	}
}

func TestDecodeMissingKeyIsSchemaError(t *testing.T) {
	d := lookup(t, Hotel)
	row := common.Row{Line: 1, Fields: common.FieldMap{"hid": "1", "chid": "1", "hname": "Sea View"}}

	_, err := Decode(d, row, CoerceReject)
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestDecodeNullIsNotAnError(t *testing.T) {
	d := lookup(t, Hotel)
	row := common.Row{Line: 1, Fields: common.FieldMap{"hid": "1", "chid": nil, "hname": "", "hcity": "Ponce"}}

	rec, err := Decode(d, row, CoerceReject)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !rec.IsNull("chid") || !rec.IsNull("hname") {
		t.Errorf("expected chid and hname null, got %v", rec)
	}
	if len(rec.Uncoercible) != 0 {
		t.Errorf("nulls must not be reported as uncoercible: %v", rec.Uncoercible)
	}
}

func TestDecodeIntegerPolicies(t *testing.T) {
	tests := []struct {
		raw     any
		policy  CoercionPolicy
		want    int64
		coerced bool
	}{
		{"42", CoerceReject, 42, true},
		{" 42 ", CoerceReject, 42, true},
		{"3.0", CoerceReject, 3, true},
		{3.0, CoerceReject, 3, true},
		{json.Number("9007199254740993"), CoerceReject, 9007199254740993, true},
		{"12.7", CoerceReject, 0, false},
		{"12.7", CoerceTruncate, 12, true},
		{"12abc", CoerceReject, 0, false},
		{"12abc", CoerceTruncate, 12, true},
		{"-4x", CoerceTruncate, -4, true},
		{"abc", CoerceTruncate, 0, false},
		{true, CoerceTruncate, 0, false},
	}

	d := &Descriptor{Name: "t", Fields: []Field{{Name: "id", Kind: Int}}}
	for _, tt := range tests {
		rec, err := Decode(d, common.Row{Fields: common.FieldMap{"id": tt.raw}}, tt.policy)
		if err != nil {
			t.Fatalf("Decode(%v) failed: %v", tt.raw, err)
		}
		got, ok := rec.Int("id")
		if ok != tt.coerced {
			t.Errorf("Decode(%#v, %s): coerced = %v, want %v", tt.raw, tt.policy, ok, tt.coerced)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("Decode(%#v, %s) = %d, want %d", tt.raw, tt.policy, got, tt.want)
		}
		if !ok {
			if _, bad := rec.Uncoercible["id"]; !bad {
				t.Errorf("Decode(%#v): expected field marked uncoercible", tt.raw)
			}
		}
	}
}

func TestDecodeScalars(t *testing.T) {
	d := &Descriptor{Name: "t", Fields: []Field{
		{Name: "price", Kind: Float},
		{Name: "flag", Kind: Bool},
		{Name: "label", Kind: Text},
	}}

	tests := []struct {
		fields common.FieldMap
		price  float64
		flag   bool
		label  string
	}{
		{common.FieldMap{"price": "$1,250.50", "flag": "Yes", "label": "a"}, 1250.5, true, "a"},
		{common.FieldMap{"price": int64(3), "flag": int64(0), "label": json.Number("5")}, 3, false, "5"},
		{common.FieldMap{"price": json.Number("0.25"), "flag": "2", "label": int64(8)}, 0.25, true, "8"},
		{common.FieldMap{"price": 9.5, "flag": false, "label": true}, 9.5, false, "true"},
	}

	for _, tt := range tests {
		rec, err := Decode(d, common.Row{Fields: tt.fields}, CoerceReject)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if v, ok := rec.Float("price"); !ok || v != tt.price {
			t.Errorf("price = %v (%v), want %v", v, ok, tt.price)
		}
		if v, ok := rec.Bool("flag"); !ok || v != tt.flag {
			t.Errorf("flag = %v (%v), want %v", v, ok, tt.flag)
		}
		if v, ok := rec.Text("label"); !ok || v != tt.label {
			t.Errorf("label = %q (%v), want %q", v, ok, tt.label)
		}
	}
}

func TestParseCoercionPolicy(t *testing.T) {
	for in, want := range map[string]CoercionPolicy{"": CoerceReject, "reject": CoerceReject, "Truncate": CoerceTruncate} {
		got, err := ParseCoercionPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseCoercionPolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseCoercionPolicy("zero"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
