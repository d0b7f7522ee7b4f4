package inspect

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

var ErrUnsupportedMachine = errors.New("unsupported machine for disassembly")

// disassemble writes one line per instruction of code loaded at pc.
// Undecodable bytes are printed as such and skipped.
func disassemble(w io.Writer, machine elf.Machine, pc uint64, code []byte) error {
	switch machine {
	case elf.EM_X86_64, elf.EM_386:
		mode := 64
		if machine == elf.EM_386 {
			mode = 32
		}
		for off := 0; off < len(code); {
			inst, err := x86asm.Decode(code[off:], mode)
			if err != nil || inst.Len == 0 {
				fmt.Fprintf(w, "\t%#x:\t.byte %#02x\n", pc+uint64(off), code[off])
				off++
				continue
			}
			fmt.Fprintf(w, "\t%#x:\t%s\n", pc+uint64(off), x86asm.GNUSyntax(inst, pc+uint64(off), nil))
			off += inst.Len
		}
	case elf.EM_AARCH64:
		for off := 0; off+4 <= len(code); off += 4 {
			inst, err := arm64asm.Decode(code[off : off+4])
			if err != nil {
				fmt.Fprintf(w, "\t%#x:\t.inst %#x\n", pc+uint64(off), code[off:off+4])
				continue
			}
			fmt.Fprintf(w, "\t%#x:\t%s\n", pc+uint64(off), arm64asm.GNUSyntax(inst))
		}
	default:
		return errors.Wrap(ErrUnsupportedMachine, machine.String())
	}

	return nil
}
