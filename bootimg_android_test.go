package bootpatch

import (
	"bytes"
	"testing"
)

func baseTestIR() *BootImageIR {
	return &BootImageIR{
		Cmdline:     "console=ttyMSM0,115200n8 androidboot.hardware=test",
		BoardName:   "testboard",
		KernelAddr:  0x00008000,
		RamdiskAddr: 0x01000000,
		SecondAddr:  0x00f00000,
		TagsAddr:    0x00000100,
		PageSize:    2048,
		Kernel:      NewBinBufCopy(bytes.Repeat([]byte{0xAA}, 5000)),
		Ramdisk:     NewBinBufCopy(bytes.Repeat([]byte{0xBB}, 3000)),
	}
}

func TestAndroidEncodeDecodeRoundTrip(t *testing.T) {
	ir := baseTestIR()

	encoded, err := encodeAndroid(ir)
	if err != nil {
		t.Fatalf("encodeAndroid: %v", err)
	}

	decoded, err := decodeAndroid(encoded)
	if err != nil {
		t.Fatalf("decodeAndroid: %v", err)
	}

	if decoded.Cmdline != ir.Cmdline || decoded.BoardName != ir.BoardName {
		t.Fatalf("cmdline/board mismatch: got %+v", decoded)
	}
	if !bytes.Equal(decoded.Kernel.Bytes(), ir.Kernel.Bytes()) {
		t.Fatal("kernel payload mismatch after round trip")
	}
	if !bytes.Equal(decoded.Ramdisk.Bytes(), ir.Ramdisk.Bytes()) {
		t.Fatal("ramdisk payload mismatch after round trip")
	}
	if decoded.KernelAddr != ir.KernelAddr || decoded.RamdiskAddr != ir.RamdiskAddr {
		t.Fatal("address fields mismatch after round trip")
	}
	var zero [32]byte
	if bytes.Equal(decoded.Id[:], zero[:]) {
		t.Fatal("expected a non-zero identity hash after encode")
	}
}

func TestAndroidEncodeIsDeterministic(t *testing.T) {
	ir1 := baseTestIR()
	ir2 := baseTestIR()

	out1, err := encodeAndroid(ir1)
	if err != nil {
		t.Fatalf("encodeAndroid: %v", err)
	}
	out2, err := encodeAndroid(ir2)
	if err != nil {
		t.Fatalf("encodeAndroid: %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Fatal("expected encoding identical IRs to produce byte-identical images")
	}
}

func TestAndroidRoundTripIsByteIdentical(t *testing.T) {
	ir := baseTestIR()
	first, err := encodeAndroid(ir)
	if err != nil {
		t.Fatalf("encodeAndroid: %v", err)
	}

	decoded, err := decodeAndroid(first)
	if err != nil {
		t.Fatalf("decodeAndroid: %v", err)
	}

	second, err := encodeAndroid(decoded)
	if err != nil {
		t.Fatalf("re-encodeAndroid: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Fatal("expected decode-then-encode to reproduce the original image byte-for-byte")
	}
}

func TestFindAndroidHeaderMissing(t *testing.T) {
	buf := bytes.Repeat([]byte{0}, 8192)
	if off := findAndroidHeader(buf); off != -1 {
		t.Fatalf("expected no header to be found, got offset %d", off)
	}
}

func TestDecodeAndroidRejectsBadPageSize(t *testing.T) {
	ir := baseTestIR()
	ir.PageSize = 3000 // not in AllowedPageSizes
	encoded, err := encodeAndroid(ir)
	if err != nil {
		t.Fatalf("encodeAndroid: %v", err)
	}
	if _, err := decodeAndroid(encoded); err == nil {
		t.Fatal("expected decode to reject an invalid page_size")
	}
}
