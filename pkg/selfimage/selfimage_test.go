package selfimage_test

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/perfjit/pkg/selfimage"
)

func image(data elf.Data, machine elf.Machine) []byte {
	b := make([]byte, 20)
	copy(b, elf.ELFMAG)
	b[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	b[elf.EI_DATA] = byte(data)
	var order binary.ByteOrder = binary.LittleEndian
	if data == elf.ELFDATA2MSB {
		order = binary.BigEndian
	}
	order.PutUint16(b[16:], uint16(elf.ET_EXEC))
	order.PutUint16(b[18:], uint16(machine))

	return b
}

func TestReadMachine(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    elf.Machine
		wantErr error
	}{
		{"x86-64 little endian", image(elf.ELFDATA2LSB, elf.EM_X86_64), elf.EM_X86_64, nil},
		{"aarch64 little endian", image(elf.ELFDATA2LSB, elf.EM_AARCH64), elf.EM_AARCH64, nil},
		{"s390 big endian", image(elf.ELFDATA2MSB, elf.EM_S390), elf.EM_S390, nil},
		{"bad signature", append([]byte("\x7fBAD"), make([]byte, 16)...), elf.EM_NONE, selfimage.ErrBadSignature},
		{"short ident", []byte("\x7fELF"), elf.EM_NONE, selfimage.ErrShortRead},
		{"short header", image(elf.ELFDATA2LSB, elf.EM_X86_64)[:18], elf.EM_NONE, selfimage.ErrShortRead},
		{"bad data encoding", image(elf.ELFDATANONE, elf.EM_X86_64), elf.EM_NONE, selfimage.ErrBadByteOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selfimage.ReadMachine(bytes.NewReader(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMachine_Self(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs /proc/self/exe")
	}
	got, err := selfimage.Machine(selfimage.SelfExe)
	require.NoError(t, err)

	switch runtime.GOARCH {
	case "amd64":
		require.Equal(t, elf.EM_X86_64, got)
	case "arm64":
		require.Equal(t, elf.EM_AARCH64, got)
	default:
		require.NotEqual(t, elf.EM_NONE, got)
	}
}

func TestMachine_Missing(t *testing.T) {
	_, err := selfimage.Machine("nonexistent-binary-file")
	require.ErrorIs(t, err, os.ErrNotExist)
}
