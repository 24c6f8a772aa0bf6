// Command bootpatch is a thin manual-testing harness around the
// bootpatch/patcher pipeline. It is not part of the core library
// surface described by the spec ("CLI surface: not part of the
// core") — it exists only so a developer can drive ArchivePatcher.Run
// from a terminal the way magiskboot's own CLI drives its library.
package main

import (
	"crypto/sha1"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"bootpatch"
	"bootpatch/cpio"
	"bootpatch/device"
	"bootpatch/patcher"
)

func usage() {
	fmt.Fprintf(os.Stderr, `bootpatch - boot image / ZIP installer patching tool

Usage: %s <action> [args...]

Supported actions:
  patch <update.zip> <device-id> <rom-id> [arch]
    Run the two-pass archive patcher over <update.zip> for the named
    device and write <stem>_<rom-id>.zip next to it. [arch] defaults
    to arm64-v8a. Helper binaries and scripts are read from the data
    directory named by $BOOTPATCH_DATA_DIR.

  devices
    List the built-in device registry (id, codenames, name).

  sha1 <bootimg>
    Decode <bootimg> and print its boot image identity hash.

  detect <bootimg>
    Print the detected boot image format.

  cpio-extract <ramdisk.cpio> <out-dir>
    Extract every entry of <ramdisk.cpio> under <out-dir>, recreating
    device nodes where the host platform supports it.

`, os.Args[0])
	os.Exit(1)
}

func main() {
	Main(os.Args)
}

func Main(args []string) {
	if len(args) < 2 {
		usage()
	}

	action := strings.TrimLeft(args[1], "-")

	switch action {
	case "patch":
		if len(args) < 5 {
			usage()
		}
		arch := "arm64-v8a"
		if len(args) > 5 {
			arch = args[5]
		}
		runPatch(args[2], args[3], args[4], arch)

	case "devices":
		runDevices()

	case "sha1":
		if len(args) < 3 {
			usage()
		}
		runSHA1(args[2])

	case "detect":
		if len(args) < 3 {
			usage()
		}
		runDetect(args[2])

	case "cpio-extract":
		if len(args) < 4 {
			usage()
		}
		runCpioExtract(args[2], args[3])

	default:
		usage()
	}
}

func runPatch(sourcePath, deviceID, romID, arch string) {
	registry := device.Default()
	dev, ok := registry.Lookup(deviceID)
	if !ok {
		log.Fatalf("unknown device id %q", deviceID)
	}

	opts := patcher.Options{
		SourcePath: sourcePath,
		Device:     dev,
		Devices:    registry,
		RomID:      romID,
		DataDir:    os.Getenv("BOOTPATCH_DATA_DIR"),
		TempDir:    os.TempDir(),
		Arch:       arch,
		Logger:     bootpatch.NopLogger{},
		OnProgress: func(p patcher.Progress) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d, %s] %s", p.FilesDone, p.MaxFiles,
				humanize.Bytes(p.TotalBytes), p.CurrentEntry)
		},
	}

	p := patcher.New(opts)
	outPath, err := p.Run()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("patch failed: %v", err)
	}
	fmt.Println(outPath)
}

func runDevices() {
	for _, d := range device.Default().All() {
		fmt.Printf("%s\t%s\t%s\n", d.ID, strings.Join(d.Codenames, ","), d.Name)
	}
}

func runSHA1(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalln("Error:", err)
	}
	if bootpatch.IsValid(data) {
		ir, err := bootpatch.Decode(data)
		if err != nil {
			log.Fatalln("Error:", err)
		}
		fmt.Printf("%x\n", ir.Id)
		return
	}

	fd, err := os.Open(path)
	if err != nil {
		log.Fatalln("Error:", err)
	}
	defer fd.Close()
	hash := sha1.New()
	if _, err := io.Copy(hash, fd); err != nil {
		log.Fatalln("Error:", err)
	}
	fmt.Printf("%x\n", hash.Sum(nil))
}

func runCpioExtract(ramdiskPath, outDir string) {
	data, err := os.ReadFile(ramdiskPath)
	if err != nil {
		log.Fatalln("Error:", err)
	}
	archive, err := cpio.Load(data)
	if err != nil {
		log.Fatalln("Error:", err)
	}
	if err := archive.ExtractAll(outDir); err != nil {
		log.Fatalln("Error:", err)
	}
}

func runDetect(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalln("Error:", err)
	}
	fmt.Printf("%s (%s)\n", bootpatch.Detect(data).String(), humanize.Bytes(uint64(len(data))))
}
