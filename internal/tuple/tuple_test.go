package tuple

import "testing"

func empDescriptor() Descriptor {
	return Descriptor{
		{Name: "EmpName", Type: TypeVarChar, MaxLength: 30},
		{Name: "Age", Type: TypeInt},
		{Name: "Height", Type: TypeFloat},
		{Name: "Salary", Type: TypeInt},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := empDescriptor()
	data, err := Encode(d, []any{"Anteater", int32(25), float32(177.8), int32(6200)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(d, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []any{"Anteater", int32(25), float32(177.8), int32(6200)}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFormatMatchesScenario1(t *testing.T) {
	d := empDescriptor()
	data, err := Encode(d, []any{"Anteater", int32(25), float32(177.8), int32(6200)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Format(d, data)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	want := "EmpName: Anteater, Age: 25, Height: 177.8, Salary: 6200"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestNullsRoundTripAndFormat(t *testing.T) {
	d := empDescriptor()
	data, err := Encode(d, []any{"Anteater", nil, float32(177.8), nil})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if data[0] != 0x50 {
		t.Fatalf("null indicator byte = %#x, want 0x50", data[0])
	}
	got, err := Format(d, data)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	want := "EmpName: Anteater, Age: NULL, Height: 177.8, Salary: NULL"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestProjectKeepsOnlyRequestedFields(t *testing.T) {
	d := empDescriptor()
	data, err := Encode(d, []any{"Anteater", int32(25), float32(177.8), int32(6200)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	size, err := EncodedSize(d, data)
	if err != nil {
		t.Fatalf("EncodedSize: %v", err)
	}

	projection := []string{"Age", "Height", "EmpName"}
	out, err := Project(d, data, size, projection)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	pd := ProjectedDescriptor(d, projection)
	got, err := Decode(pd, out)
	if err != nil {
		t.Fatalf("Decode projected: %v", err)
	}
	want := []any{int32(25), float32(177.8), "Anteater"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestProjectMissingAttributeIsNull(t *testing.T) {
	d := empDescriptor()
	data, err := Encode(d, []any{"Anteater", int32(25), float32(177.8), int32(6200)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	size, _ := EncodedSize(d, data)

	projection := []string{"DoesNotExist"}
	out, err := Project(d, data, size, projection)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	pd := ProjectedDescriptor(d, projection)
	got, err := Decode(pd, out)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got[0] != nil {
		t.Fatalf("got[0] = %v, want nil", got[0])
	}
}

func TestMatchesNoOpAlwaysTrue(t *testing.T) {
	d := empDescriptor()
	data, _ := Encode(d, []any{"A", int32(1), float32(1), int32(1)})
	size, _ := EncodedSize(d, data)
	ok, err := Matches(d, data, size, "", NoOp, Value{})
	if err != nil || !ok {
		t.Fatalf("Matches() = (%v,%v), want (true,nil)", ok, err)
	}
}

func TestMatchesIntComparison(t *testing.T) {
	d := empDescriptor()
	cases := []struct {
		age  int32
		op   CompOp
		val  int32
		want bool
	}{
		{30, EQ, 30, true},
		{30, EQ, 31, false},
		{30, NE, 31, true},
		{30, LT, 31, true},
		{30, LE, 30, true},
		{30, GT, 29, true},
		{30, GE, 30, true},
	}
	for _, c := range cases {
		data, _ := Encode(d, []any{"N", c.age, float32(1), int32(1)})
		size, _ := EncodedSize(d, data)
		got, err := Matches(d, data, size, "Age", c.op, IntValue(c.val))
		if err != nil {
			t.Fatalf("Matches: %v", err)
		}
		if got != c.want {
			t.Errorf("age=%d op=%v val=%d: got %v, want %v", c.age, c.op, c.val, got, c.want)
		}
	}
}

func TestMatchesNullFieldOnlyTrueForNE(t *testing.T) {
	d := empDescriptor()
	data, _ := Encode(d, []any{"N", nil, float32(1), int32(1)})
	size, _ := EncodedSize(d, data)

	for _, op := range []CompOp{EQ, LT, LE, GT, GE} {
		got, err := Matches(d, data, size, "Age", op, IntValue(5))
		if err != nil {
			t.Fatalf("Matches: %v", err)
		}
		if got {
			t.Errorf("op=%v on null field: got true, want false", op)
		}
	}
	got, err := Matches(d, data, size, "Age", NE, IntValue(5))
	if err != nil || !got {
		t.Fatalf("NE on null field: got (%v,%v), want (true,nil)", got, err)
	}
}

func TestMatchesVarCharLexicographic(t *testing.T) {
	d := empDescriptor()
	data, _ := Encode(d, []any{"Bee", int32(1), float32(1), int32(1)})
	size, _ := EncodedSize(d, data)

	got, err := Matches(d, data, size, "EmpName", GT, VarCharValue("Ant"))
	if err != nil || !got {
		t.Fatalf("Matches GT: got (%v,%v), want (true,nil)", got, err)
	}
	got, err = Matches(d, data, size, "EmpName", LT, VarCharValue("Ant"))
	if err != nil || got {
		t.Fatalf("Matches LT: got (%v,%v), want (false,nil)", got, err)
	}
}

func TestEncodedSizeOverflowIsCorrupt(t *testing.T) {
	d := Descriptor{{Name: "S", Type: TypeVarChar}}
	// null-indicator byte + 4-byte length claiming more payload than exists.
	bad := []byte{0x00, 0x05, 0x00, 0x00, 0x00, 'a', 'b'}
	if _, err := EncodedSize(d, bad); err != ErrCorruptTuple {
		t.Fatalf("EncodedSize() = %v, want ErrCorruptTuple", err)
	}
}
