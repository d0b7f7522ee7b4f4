// Package selfimage probes the running executable for the ELF machine
// the jitdump header advertises.
package selfimage

import (
	"debug/elf"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

const SelfExe = "/proc/self/exe"

var (
	ErrBadSignature = errors.New("ELF signature is not valid")
	ErrShortRead    = errors.New("could not read machine identification")
	ErrBadByteOrder = errors.New("unknown ELF data encoding")
)

// Machine reads e_ident, e_type and e_machine from the ELF image at
// path. It does not parse anything beyond those first 20 bytes.
func Machine(path string) (elf.Machine, error) {
	f, err := os.Open(path)
	if err != nil {
		return elf.EM_NONE, errors.Wrapf(err, "could not open %s", path)
	}
	defer f.Close()

	return ReadMachine(f)
}

// ReadMachine is Machine over an already opened image.
func ReadMachine(r io.Reader) (elf.Machine, error) {
	var ident [elf.EI_NIDENT]byte
	if _, err := io.ReadFull(r, ident[:]); err != nil {
		return elf.EM_NONE, errors.Wrap(ErrShortRead, "elf signature")
	}
	if string(ident[:len(elf.ELFMAG)]) != elf.ELFMAG {
		return elf.EM_NONE, ErrBadSignature
	}

	var order binary.ByteOrder
	switch elf.Data(ident[elf.EI_DATA]) {
	case elf.ELFDATA2LSB:
		order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		order = binary.BigEndian
	default:
		return elf.EM_NONE, errors.Wrapf(ErrBadByteOrder, "%d", ident[elf.EI_DATA])
	}

	// e_type, e_machine.
	var info [4]byte
	if _, err := io.ReadFull(r, info[:]); err != nil {
		return elf.EM_NONE, errors.Wrap(ErrShortRead, "e_machine")
	}

	return elf.Machine(order.Uint16(info[2:])), nil
}
