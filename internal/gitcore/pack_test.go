package gitcore

import (
	"bufio"
	"bytes"
	"testing"
)

func TestReadVarInt(t *testing.T) {
	tests := []struct {
		in   []byte
		want int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0xac, 0x02}, 300},
		{[]byte{0x80, 0x80, 0x01}, 1 << 14},
	}
	repo := &Repository{}
	for _, tt := range tests {
		got, err := repo.readVarInt(bytes.NewReader(tt.in))
		if err != nil {
			t.Fatalf("readVarInt(%x) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("readVarInt(%x) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if _, err := repo.readVarInt(bytes.NewReader([]byte{0x80})); err == nil {
		t.Error("expected error for a truncated varint")
	}
}

func TestReadPackObjectHeader(t *testing.T) {
	tests := []struct {
		in       []byte
		wantType byte
		wantSize int64
	}{
		{[]byte{0x3a}, 3, 10},
		{[]byte{0x95, 0x0a}, 1, 165},
		{[]byte{0xe0, 0x80, 0x01}, 6, 1 << 11},
	}
	for _, tt := range tests {
		typ, size, err := readPackObjectHeader(bufio.NewReader(bytes.NewReader(tt.in)))
		if err != nil {
			t.Fatalf("readPackObjectHeader(%x) failed: %v", tt.in, err)
		}
		if typ != tt.wantType || size != tt.wantSize {
			t.Errorf("readPackObjectHeader(%x) = %d, %d, want %d, %d", tt.in, typ, size, tt.wantType, tt.wantSize)
		}
	}
}

func TestApplyDelta(t *testing.T) {
	base := []byte("(symbol R1 10k)")

	tests := []struct {
		name    string
		delta   []byte
		want    string
		wantErr bool
	}{
		{
			name: "copy all and append",
			delta: []byte{
				0x0f, 0x12, // base 15, result 18
				0x90, 0x0f, // copy 15 bytes from offset 0
				0x03, ' ', ';', ';',
			},
			want: "(symbol R1 10k) ;;",
		},
		{
			name: "copy with offset",
			delta: []byte{
				0x0f, 0x06,
				0x91, 0x08, 0x02, // copy 2 bytes from offset 8
				0x04, ' ', '4', 'k', '7',
			},
			want: "R1 4k7",
		},
		{
			name:    "zero command",
			delta:   []byte{0x0f, 0x0f, 0x00},
			wantErr: true,
		},
		{
			name:    "base size mismatch",
			delta:   []byte{0x05, 0x05, 0x90, 0x05},
			wantErr: true,
		},
		{
			name:    "copy past base",
			delta:   []byte{0x0f, 0x14, 0x90, 0x14},
			wantErr: true,
		},
		{
			name:    "result size mismatch",
			delta:   []byte{0x0f, 0x10, 0x90, 0x0f},
			wantErr: true,
		},
	}

	repo := &Repository{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.applyDelta(base, tt.delta)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("applyDelta failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("applyDelta = %q, want %q", got, tt.want)
			}
		})
	}
}
