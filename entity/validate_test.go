package entity

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/darianmavgo/hotelload/converters/common"
)

// sampleRow builds a field-map that every descriptor accepts.
func sampleRow(d *Descriptor) common.FieldMap {
	fields := make(common.FieldMap, len(d.Fields))
	for _, f := range d.Fields {
		switch f.Kind {
		case Int:
			fields[f.Name] = "3"
		case Float:
			fields[f.Name] = "120.75"
		case Text:
			fields[f.Name] = "value"
		case Bool:
			fields[f.Name] = "true"
		case Date:
			fields[f.Name] = "2023-06-01"
		}
	}
	return fields
}

func decodeValidate(t *testing.T, d *Descriptor, fields common.FieldMap) error {
	t.Helper()
	rec, err := Decode(d, common.Row{Line: 1, Fields: fields}, CoerceReject)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return Validate(d, rec)
}

func TestSampleRowsAccepted(t *testing.T) {
	for _, d := range Catalog(DefaultOptions()) {
		if err := decodeValidate(t, d, sampleRow(d)); err != nil {
			t.Errorf("%s: sample row rejected: %v", d.Name, err)
		}
	}
}

// Every field of every entity is required, so nulling any one of them must
// reject the row.
func TestInjectedNullsRejected(t *testing.T) {
	for _, d := range Catalog(DefaultOptions()) {
		for _, f := range d.Fields {
			fields := sampleRow(d)
			fields[f.Name] = nil
			err := decodeValidate(t, d, fields)
			var rej *RejectError
			if !errors.As(err, &rej) {
				t.Errorf("%s: null %s accepted", d.Name, f.Name)
				continue
			}
			if rej.Field != f.Name {
				t.Errorf("%s: null %s rejected for %s", d.Name, f.Name, rej.Field)
			}
		}
	}
}

// invariantsHold restates the per-table invariants independently of the rules.
func invariantsHold(d *Descriptor, r Record) bool {
	for _, f := range d.Fields {
		if r.IsNull(f.Name) {
			return false
		}
	}
	switch d.Name {
	case Reservation:
		guests, _ := r.Int("guests")
		payment, _ := r.Text("payment")
		return guests >= 1 && strings.TrimSpace(payment) != ""
	case Room:
		price, _ := r.Float("rprice")
		return price > 0
	case Chain:
		id, _ := r.Int("chid")
		return id >= 1
	}
	return true
}

func TestAcceptedRecordsSatisfyInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(4060))
	mutations := []any{nil, "", "-1", "0", "1", "2.5", "abc", "  ", "7"}

	for _, d := range Catalog(DefaultOptions()) {
		for i := 0; i < 300; i++ {
			fields := sampleRow(d)
			for _, f := range d.Fields {
				if rng.Intn(3) == 0 {
					fields[f.Name] = mutations[rng.Intn(len(mutations))]
				}
			}

			rec, err := Decode(d, common.Row{Line: i + 1, Fields: fields}, CoerceReject)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if Validate(d, rec) == nil && !invariantsHold(d, rec) {
				t.Fatalf("%s: accepted record violates invariants: %v (from %v)", d.Name, rec, fields)
			}
		}
	}
}

func TestBoundaries(t *testing.T) {
	catalog := Catalog(DefaultOptions())
	get := func(name string) *Descriptor {
		d, _ := Lookup(catalog, name)
		return d
	}

	tests := []struct {
		name   string
		entity string
		field  string
		value  any
		accept bool
	}{
		{"guests one", Reservation, "guests", "1", true},
		{"guests zero", Reservation, "guests", "0", false},
		{"payment blank", Reservation, "payment", "   ", false},
		{"price zero", Room, "rprice", "0", false},
		{"price negative", Room, "rprice", "-5", false},
		{"price cent", Room, "rprice", "0.01", true},
		{"price NaN", Room, "rprice", "NaN", false},
		{"price Inf", Room, "rprice", "Inf", false},
		{"price +Inf", Room, "rprice", "+Inf", false},
		{"price -Inf", Room, "rprice", "-Inf", false},
		{"price float NaN", Room, "rprice", math.NaN(), false},
		{"salary Inf", Employee, "salary", math.Inf(1), false},
		{"chain zero", Chain, "chid", "0", false},
		{"chain one", Chain, "chid", "1", true},
		{"chain text id", Chain, "chid", "one", false},
		{"login text id", Login, "lid", "L-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := get(tt.entity)
			fields := sampleRow(d)
			fields[tt.field] = tt.value
			err := decodeValidate(t, d, fields)
			if (err == nil) != tt.accept {
				t.Errorf("%s=%v: accept = %v, want %v (err %v)", tt.field, tt.value, err == nil, tt.accept, err)
			}
		})
	}
}

func TestPositiveRejectsNonFinite(t *testing.T) {
	room, _ := Lookup(Catalog(DefaultOptions()), Room)
	rule := Positive("rprice")
	for _, v := range []float64{math.NaN(), 0, -1} {
		r := Record{Line: 1, Values: map[string]any{"rprice": v}}
		if err := rule(room, r); err == nil {
			t.Errorf("rprice=%v accepted", v)
		}
	}
	if err := rule(room, Record{Line: 1, Values: map[string]any{"rprice": 0.5}}); err != nil {
		t.Errorf("rprice=0.5 rejected: %v", err)
	}
}

func TestChainFloorIsConfigurable(t *testing.T) {
	d, _ := Lookup(Catalog(Options{}), Chain)
	fields := sampleRow(d)
	fields["chid"] = "0"
	if err := decodeValidate(t, d, fields); err != nil {
		t.Errorf("chain id 0 rejected with the floor disabled: %v", err)
	}
}

func TestChainEndToEndScenario(t *testing.T) {
	d, _ := Lookup(Catalog(DefaultOptions()), Chain)
	rows := []common.FieldMap{
		{"chid": "1", "cname": "Acme", "springmkup": "1.1", "summermkup": "1.3", "fallmkup": "1.05", "wintermkup": "1.2"},
		{"chid": nil, "cname": "Bad", "springmkup": "1.0", "summermkup": "1.0", "fallmkup": "1.0", "wintermkup": "1.0"},
	}

	var clean []Record
	for i, fields := range rows {
		rec, err := Decode(d, common.Row{Line: i + 1, Fields: fields}, CoerceReject)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if Validate(d, rec) == nil {
			clean = append(clean, rec)
		}
	}

	if len(clean) != 1 {
		t.Fatalf("expected exactly one clean record, got %d", len(clean))
	}
	if id, _ := clean[0].Int("chid"); id != 1 {
		t.Errorf("expected chain 1, got %d", id)
	}
	if mk, _ := clean[0].Float("summermkup"); mk != 1.3 {
		t.Errorf("expected summer markup 1.3, got %v", mk)
	}
}

func TestVerifyOrder(t *testing.T) {
	catalog := Catalog(DefaultOptions())
	if err := VerifyOrder(catalog); err != nil {
		t.Fatalf("LoadOrder violates a foreign key: %v", err)
	}

	// The listing in which login precedes employee must be caught.
	var swapped []*Descriptor
	for _, name := range []string{Login, Employee} {
		d, _ := Lookup(catalog, name)
		swapped = append(swapped, d)
	}
	if err := VerifyOrder(swapped); err == nil {
		t.Error("expected login before employee to fail")
	}
}

func TestCheckHeaders(t *testing.T) {
	d, _ := Lookup(Catalog(DefaultOptions()), Room)
	if err := d.CheckHeaders([]string{"rid", "hid", "rdid", "rprice", "extra"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := d.CheckHeaders([]string{"rid", "hid"})
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	if !strings.Contains(err.Error(), "rdid, rprice") {
		t.Errorf("error should name absent fields: %v", err)
	}
}
