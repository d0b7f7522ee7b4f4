package inspect

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisassemble(t *testing.T) {
	tests := []struct {
		name    string
		machine elf.Machine
		code    []byte
		want    []string
		wantErr error
	}{
		{
			name:    "x86-64",
			machine: elf.EM_X86_64,
			code:    []byte{0x55, 0x48, 0x89, 0xe5, 0xc3},
			want:    []string{"0x1000:", "push", "0x1001:", "0x1004:", "ret"},
		},
		{
			name:    "x86-64 bad byte",
			machine: elf.EM_X86_64,
			code:    []byte{0x0f},
			want:    []string{".byte 0xf"},
		},
		{
			name:    "arm64",
			machine: elf.EM_AARCH64,
			code:    []byte{0x1f, 0x20, 0x03, 0xd5, 0xc0, 0x03, 0x5f, 0xd6},
			want:    []string{"0x1000:", "nop", "0x1004:", "ret"},
		},
		{
			name:    "unsupported",
			machine: elf.EM_MIPS,
			code:    []byte{0x00},
			wantErr: ErrUnsupportedMachine,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := disassemble(&buf, tt.machine, 0x1000, tt.code)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, w := range tt.want {
				require.Contains(t, buf.String(), w)
			}
		})
	}
}
