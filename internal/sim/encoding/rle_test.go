package encoding

import "testing"

func TestRunsRoundTrip(t *testing.T) {
	in := []uint16{1, 1, 1, 2, 2, 3}
	for i := 0; i < 50; i++ {
		in = append(in, 7)
	}
	in = append(in, 9, 10, 10, 10)

	out, err := DecodeRuns(EncodeRuns(in), len(in))
	if err != nil {
		t.Fatalf("DecodeRuns: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestDecodeRunsLengthCheck(t *testing.T) {
	s := EncodeRuns([]uint16{4, 4, 4})
	if _, err := DecodeRuns(s, 2); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := DecodeRuns(s, 5); err == nil {
		t.Fatalf("expected short error")
	}
	if out, err := DecodeRuns(s, -1); err != nil || len(out) != 3 {
		t.Fatalf("any length: %v %v", out, err)
	}
	if _, err := DecodeRuns("!!", -1); err == nil {
		t.Fatalf("expected base64 error")
	}
}

func TestBits(t *testing.T) {
	in := []bool{true, true, false, true, false, false, false}
	out, err := DecodeBits(EncodeBits(in), len(in))
	if err != nil {
		t.Fatalf("DecodeBits: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("bit %d differs", i)
		}
	}
	if _, err := DecodeBits(EncodeRuns([]uint16{2}), 1); err == nil {
		t.Fatalf("expected non-bit error")
	}
}
