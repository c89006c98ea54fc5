// Package kernel reads facts about a kernel source tree.
package kernel

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/kdice/kdice/internal/errors"
)

// MakefileName is the top-level makefile holding the version variables.
const MakefileName = "Makefile"

// Version reads VERSION, PATCHLEVEL and SUBLEVEL from the top-level Makefile of the tree.
func Version(srcDir string) (*version.Version, error) {
	src, err := os.ReadFile(filepath.Join(srcDir, MakefileName))
	if err != nil {
		return nil, errors.New(err)
	}

	return ParseMakefileVersion(src)
}

// ParseMakefileVersion reads the kernel version from Makefile contents.
func ParseMakefileVersion(src []byte) (*version.Version, error) {
	vars := map[string]string{}

	scanner := bufio.NewScanner(bytes.NewReader(src))
	for scanner.Scan() {
		name, val, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}

		name = strings.TrimSpace(name)
		switch name {
		case "VERSION", "PATCHLEVEL", "SUBLEVEL", "EXTRAVERSION":
			if _, seen := vars[name]; !seen {
				vars[name] = strings.TrimSpace(val)
			}
		}

		if len(vars) == 4 {
			break
		}
	}

	if vars["VERSION"] == "" {
		return nil, errors.Errorf("no VERSION in kernel %s", MakefileName)
	}

	str := fmt.Sprintf("%s.%s.%s%s", vars["VERSION"], orZero(vars["PATCHLEVEL"]), orZero(vars["SUBLEVEL"]), vars["EXTRAVERSION"])

	ver, err := version.NewVersion(str)
	if err != nil {
		return nil, errors.New(err)
	}

	return ver, nil
}

func orZero(str string) string {
	if str == "" {
		return "0"
	}

	return str
}

// SrcArch maps an ARCH value to the directory under arch/ that holds its Kconfig, the way the
// kernel Makefile does.
func SrcArch(arch string) string {
	switch arch {
	case "":
		return SrcArch(HostArch())
	case "i386", "x86_64":
		return "x86"
	case "sparc32", "sparc64":
		return "sparc"
	case "parisc64":
		return "parisc"
	case "sh64":
		return "sh"
	}

	return arch
}

// HostArch returns the kernel ARCH of the running machine.
func HostArch() string {
	switch runtime.GOARCH {
	case "amd64", "386":
		return "x86"
	case "arm64":
		return "arm64"
	case "arm":
		return "arm"
	case "riscv64":
		return "riscv"
	case "ppc64", "ppc64le":
		return "powerpc"
	case "s390x":
		return "s390"
	case "loong64":
		return "loongarch"
	case "mips", "mipsle", "mips64", "mips64le":
		return "mips"
	}

	return runtime.GOARCH
}

// Env returns the variables Kconfig files expect from the kernel build system.
func Env(srcDir, arch string, ver *version.Version) map[string]string {
	if arch == "" {
		arch = HostArch()
	}

	env := map[string]string{
		"ARCH":       arch,
		"SRCARCH":    SrcArch(arch),
		"srctree":    srcDir,
		"CC":         "gcc",
		"LD":         "ld",
		"HOSTCC":     "gcc",
		"HOSTCXX":    "g++",
		"KERNELPATH": srcDir,
	}

	if ver != nil {
		env["KERNELVERSION"] = ver.Original()
	}

	return env
}
