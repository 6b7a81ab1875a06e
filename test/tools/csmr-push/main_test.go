package main

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func TestFrameStep(t *testing.T) {
	tests := []struct {
		fps  int
		want int64
	}{
		{30, int64(time.Second) / 30},
		{60, int64(time.Second) / 60},
		{1, int64(time.Second)},
	}
	for _, tt := range tests {
		if got := frameStep(tt.fps); got != tt.want {
			t.Errorf("frameStep(%d) = %d, want %d", tt.fps, got, tt.want)
		}
	}
}

func TestSyntheticPayload(t *testing.T) {
	p := syntheticPayload(7, 64)
	if len(p) != 64 {
		t.Fatalf("len = %d, want 64", len(p))
	}
	if idx := binary.BigEndian.Uint32(p[0:4]); idx != 7 {
		t.Errorf("frame index = %d, want 7", idx)
	}
	// Deterministic: the same inputs produce the same bytes.
	if !bytes.Equal(p, syntheticPayload(7, 64)) {
		t.Error("payload not deterministic")
	}
	// Different frames differ.
	if bytes.Equal(p, syntheticPayload(8, 64)) {
		t.Error("payloads for different frames are identical")
	}

	if got := syntheticPayload(0, 0); got != nil {
		t.Errorf("zero size = %v, want nil", got)
	}
	if got := syntheticPayload(0, 2); len(got) != 2 {
		t.Errorf("size below index width: len = %d, want 2", len(got))
	}
}

func TestSlicePayloads(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		size     int
		wantLens []int
	}{
		{"even split", make([]byte, 12), 4, []int{4, 4, 4}},
		{"remainder", make([]byte, 10), 4, []int{4, 4, 2}},
		{"single chunk", make([]byte, 3), 10, []int{3}},
		{"empty data", nil, 4, nil},
		{"zero size", make([]byte, 5), 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slicePayloads(tt.data, tt.size)
			if len(got) != len(tt.wantLens) {
				t.Fatalf("chunks = %d, want %d", len(got), len(tt.wantLens))
			}
			for i, want := range tt.wantLens {
				if len(got[i]) != want {
					t.Errorf("chunk %d: len = %d, want %d", i, len(got[i]), want)
				}
			}
		})
	}
}

func TestSlicePayloadsPreservesBytes(t *testing.T) {
	data := []byte("abcdefghij")
	chunks := slicePayloads(data, 3)

	var joined []byte
	for _, c := range chunks {
		joined = append(joined, c...)
	}
	if !bytes.Equal(joined, data) {
		t.Errorf("joined = %q, want %q", joined, data)
	}
}
