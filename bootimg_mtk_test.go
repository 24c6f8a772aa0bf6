package bootpatch

import (
	"bytes"
	"testing"
)

func TestMTKEncodeDecodeRoundTrip(t *testing.T) {
	ir := baseTestIR()
	ir.MtkKernelHdr = NewBinBufCopy(mtkSubHeaderBytes(&mtkSubHeader{}))
	ir.MtkRamdiskHdr = NewBinBufCopy(mtkSubHeaderBytes(&mtkSubHeader{}))

	encoded, err := encodeMTK(ir)
	if err != nil {
		t.Fatalf("encodeMTK: %v", err)
	}

	if !isMTKImage(encoded) {
		t.Fatal("expected isMTKImage to recognize a freshly encoded mtk image")
	}

	decoded, err := decodeMTK(encoded)
	if err != nil {
		t.Fatalf("decodeMTK: %v", err)
	}
	if decoded.SourceType != FormatMTK {
		t.Fatalf("expected FormatMTK, got %v", decoded.SourceType)
	}
	if !bytes.Equal(decoded.Kernel.Bytes(), ir.Kernel.Bytes()) {
		t.Fatal("kernel payload mismatch after mtk round trip")
	}
	if !bytes.Equal(decoded.Ramdisk.Bytes(), ir.Ramdisk.Bytes()) {
		t.Fatal("ramdisk payload mismatch after mtk round trip")
	}
	if decoded.MtkKernelHdr.Size() != mtkHeaderSize || decoded.MtkRamdiskHdr.Size() != mtkHeaderSize {
		t.Fatal("expected both mtk sub-headers to survive the round trip")
	}
}

func TestMTKEncodeKernelOnly(t *testing.T) {
	ir := baseTestIR()
	ir.MtkKernelHdr = NewBinBufCopy(mtkSubHeaderBytes(&mtkSubHeader{}))

	encoded, err := encodeMTK(ir)
	if err != nil {
		t.Fatalf("encodeMTK: %v", err)
	}
	decoded, err := decodeMTK(encoded)
	if err != nil {
		t.Fatalf("decodeMTK: %v", err)
	}
	if decoded.MtkKernelHdr.Size() != mtkHeaderSize {
		t.Fatal("expected kernel sub-header to survive")
	}
	if decoded.MtkRamdiskHdr.Size() != 0 {
		t.Fatal("expected no ramdisk sub-header when none was set")
	}
	if !bytes.Equal(decoded.Ramdisk.Bytes(), ir.Ramdisk.Bytes()) {
		t.Fatal("ramdisk payload mismatch")
	}
}

func TestIsMTKImageRejectsPlainAndroid(t *testing.T) {
	ir := baseTestIR()
	encoded, err := encodeAndroid(ir)
	if err != nil {
		t.Fatalf("encodeAndroid: %v", err)
	}
	if isMTKImage(encoded) {
		t.Fatal("expected a plain android image to not be detected as mtk")
	}
}
