package decode

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestRegistry_BuiltinsRegistered(t *testing.T) {
	t.Parallel()
	names := Names()
	for _, want := range []string{"discard", "file"} {
		if !slices.Contains(names, want) {
			t.Errorf("Names() = %v, missing %q", names, want)
		}
	}
	if _, ok := Lookup("discard"); !ok {
		t.Error("Lookup(discard) not found")
	}
	if _, ok := Lookup("no-such-codec"); ok {
		t.Error("Lookup(no-such-codec) should fail")
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("second factory")
	Register("registry-test", func(Config, Target, OnRendered) (Decoder, error) {
		return nil, errors.New("first factory")
	})
	Register("registry-test", func(Config, Target, OnRendered) (Decoder, error) {
		return nil, sentinel
	})

	f, ok := Lookup("registry-test")
	if !ok {
		t.Fatal("factory not found after Register")
	}
	if _, err := f(Config{}, nil, nil); !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want the second factory's sentinel", err)
	}
}

func TestDiscard_CountsAndNotifies(t *testing.T) {
	t.Parallel()
	var rendered []int64
	f, _ := Lookup("discard")
	dec, err := f(Config{Width: 640, Height: 480}, nil, func(pts int64) {
		rendered = append(rendered, pts)
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := dec.Start(); err != nil {
		t.Fatal(err)
	}
	if err := dec.Feed([]byte{0x01, 0x02}, 1000); err != nil {
		t.Fatal(err)
	}
	if err := dec.Feed([]byte{0x03}, 2000); err != nil {
		t.Fatal(err)
	}
	if err := dec.Stop(); err != nil {
		t.Fatal(err)
	}

	d := dec.(*Discard)
	if d.Frames() != 2 {
		t.Errorf("Frames() = %d, want 2", d.Frames())
	}
	if d.Bytes() != 3 {
		t.Errorf("Bytes() = %d, want 3", d.Bytes())
	}
	if len(rendered) != 2 || rendered[0] != 1000 || rendered[1] != 2000 {
		t.Errorf("rendered = %v, want [1000 2000]", rendered)
	}
}

func TestFileSink_WriterTarget(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	dec, err := NewFileSink(Config{}, &buf, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := dec.Feed([]byte{0xAA, 0xBB}, 1); err != nil {
		t.Fatal(err)
	}
	if err := dec.Feed([]byte{0xCC}, 2); err != nil {
		t.Fatal(err)
	}
	if err := dec.Stop(); err != nil {
		t.Fatal(err)
	}

	if got := buf.Bytes(); !bytes.Equal(got, []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("sink bytes = % X, want AA BB CC", got)
	}
}

func TestFileSink_PathTarget(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.h264")
	dec, err := NewFileSink(Config{}, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := dec.Feed([]byte("nal"), 1); err != nil {
		t.Fatal(err)
	}
	if err := dec.Stop(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "nal" {
		t.Errorf("file contents = %q, want %q", got, "nal")
	}
}

func TestFileSink_UnsupportedTarget(t *testing.T) {
	t.Parallel()
	if _, err := NewFileSink(Config{}, 42, nil); err == nil {
		t.Fatal("expected error for unsupported target type")
	}
}
