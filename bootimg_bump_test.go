package bootpatch

import (
	"bytes"
	"testing"
)

func TestBumpEncodeDecodeRoundTrip(t *testing.T) {
	ir := baseTestIR()

	encoded, err := encodeBump(ir)
	if err != nil {
		t.Fatalf("encodeBump: %v", err)
	}
	if !bytes.HasSuffix(encoded, bumpSignature) {
		t.Fatal("expected encoded bump image to end with the bump signature")
	}

	if !isBumpImage(encoded) {
		t.Fatal("expected isBumpImage to recognize a freshly encoded bump image")
	}

	decoded, err := decodeBump(encoded)
	if err != nil {
		t.Fatalf("decodeBump: %v", err)
	}
	if decoded.SourceType != FormatBump || decoded.TargetType != FormatBump {
		t.Fatalf("unexpected format tags: %+v", decoded.SourceType)
	}
	if !bytes.Equal(decoded.Kernel.Bytes(), ir.Kernel.Bytes()) {
		t.Fatal("kernel payload mismatch after bump round trip")
	}
	if !bytes.Equal(decoded.Ramdisk.Bytes(), ir.Ramdisk.Bytes()) {
		t.Fatal("ramdisk payload mismatch after bump round trip")
	}
}

func TestIsBumpImageRequiresAndroidValidity(t *testing.T) {
	junk := append(bytes.Repeat([]byte{0x00}, 64), bumpSignature...)
	if isBumpImage(junk) {
		t.Fatal("expected isBumpImage to reject trailer-only junk with no android header")
	}
}

func TestIsBumpImageRejectsPlainAndroid(t *testing.T) {
	ir := baseTestIR()
	encoded, err := encodeAndroid(ir)
	if err != nil {
		t.Fatalf("encodeAndroid: %v", err)
	}
	if isBumpImage(encoded) {
		t.Fatal("expected a plain android image without the trailer to not be detected as bump")
	}
}
