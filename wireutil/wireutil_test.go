package wireutil

import "testing"

func TestUint16LERoundTrip(t *testing.T) {
	b := make([]byte, 2)
	PutUint16LE(b, 0xBEEF)
	if v := Uint16LE(b); v != 0xBEEF {
		t.Fatalf("unexpected value %#x<>%#x", v, 0xBEEF)
	}
}

func TestUint32LERoundTrip(t *testing.T) {
	b := make([]byte, 4)
	PutUint32LE(b, 0xDEADBEEF)
	if v := Uint32LE(b); v != 0xDEADBEEF {
		t.Fatalf("unexpected value %#x<>%#x", v, uint32(0xDEADBEEF))
	}
}

func TestPutFrameHeader(t *testing.T) {
	b := make([]byte, FrameHeaderSize)
	PutFrameHeader(b, 1234)
	if magic := Uint16LE(b[0:2]); magic != FrameMagic {
		t.Fatalf("unexpected magic %#x<>%#x", magic, FrameMagic)
	}
	if size := Uint32LE(b[2:6]); size != 1234 {
		t.Fatalf("unexpected body size %d<>1234", size)
	}
}

func TestPercentEncodeAlphanumericPassthrough(t *testing.T) {
	in := "abcXYZ789"
	if out := PercentEncodeString(in); out != in {
		t.Fatalf("alphanumeric string should pass through unchanged, got %q", out)
	}
}

func TestPercentEncodeReservedBytes(t *testing.T) {
	cases := map[string]string{
		"/":       "%2F",
		"a b":     "a%20b",
		"cam_01":  "cam%5F01",
		"sh=ash":  "sh%3Dash",
		"100%":    "100%25",
		"é":       "%C3%A9",
		"a/b?c=d": "a%2Fb%3Fc%3Dd",
	}
	for in, want := range cases {
		if got := PercentEncodeString(in); got != want {
			t.Fatalf("PercentEncodeString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPercentEncodeEscapesHyphen(t *testing.T) {
	// '-' is outside the alphanumeric-only unreserved set this encoder
	// uses, unlike a general URL encoder that would leave it alone.
	if got := PercentEncodeString("device-7"); got != "device%2D7" {
		t.Fatalf("unexpected encoding %q", got)
	}
}

func TestPercentEncodeAppendsToExistingDst(t *testing.T) {
	dst := []byte("prefix-")
	out := PercentEncode(dst, "a b")
	if string(out) != "prefix-a%20b" {
		t.Fatalf("unexpected result %q", out)
	}
}
