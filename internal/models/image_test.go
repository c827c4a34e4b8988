package models

import (
	"testing"
)

func TestValid(t *testing.T) {
	cases := []struct {
		v    int32
		want bool
	}{
		{-32768, false},
		{-1, false},
		{0, true},
		{100, true},
		{MaxCount, true},
		{MaxCount + 1, false},
		{65535, false},
	}
	for _, c := range cases {
		if got := Valid(c.v); got != c.want {
			t.Errorf("Valid(%d): expected %v, got %v", c.v, c.want, got)
		}
	}
}

func TestImageAccessors(t *testing.T) {
	img := NewImage(3, 2)
	img.Set(2, 1, 42)

	if got := img.At(2, 1); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	if got := img.Data[1*3+2]; got != 42 {
		t.Errorf("Expected row-major storage, got %d at index 5", got)
	}

	row := img.Row(1)
	if len(row) != 3 || row[2] != 42 {
		t.Errorf("Expected row [0 0 42], got %v", row)
	}

	// Row aliases the buffer
	row[0] = 7
	if img.At(0, 1) != 7 {
		t.Error("Expected Row to alias the image buffer")
	}

	if img.InBounds(3, 0) || img.InBounds(0, 2) || img.InBounds(-1, 0) {
		t.Error("Expected out-of-range coordinates to be rejected")
	}
}

func TestImageAtPanicsOutOfBounds(t *testing.T) {
	img := NewImage(2, 2)
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for out-of-bounds access")
		}
	}()
	img.At(2, 0)
}

func TestNewImageFrom(t *testing.T) {
	if _, err := NewImageFrom(make([]int32, 5), 2, 3); err == nil {
		t.Error("Expected error for mismatched buffer length")
	}
	img, err := NewImageFrom(make([]int32, 6), 2, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if img.Width != 2 || img.Height != 3 {
		t.Errorf("Expected 2x3, got %dx%d", img.Width, img.Height)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	img := NewImage(2, 2)
	img.Fill(5)
	clone := img.Clone()
	clone.Set(0, 0, -1)

	if img.At(0, 0) != 5 {
		t.Error("Expected original to be unchanged after modifying clone")
	}
	if img.Equal(clone) {
		t.Error("Expected images to differ")
	}
	clone.Set(0, 0, 5)
	if !img.Equal(clone) {
		t.Error("Expected images to be equal again")
	}
}

func TestCountValid(t *testing.T) {
	img := NewImage(4, 1)
	copy(img.Data, []int32{-1, 0, MaxCount, MaxCount + 1})
	if got := img.CountValid(); got != 2 {
		t.Errorf("Expected 2 valid samples, got %d", got)
	}
}

func TestMirrorSidesValidate(t *testing.T) {
	if err := (MirrorSides{0, 1, 0}).Validate(3); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := (MirrorSides{0, 1}).Validate(3); err == nil {
		t.Error("Expected error for short table")
	}
	if err := (MirrorSides{0, 2, 0}).Validate(3); err == nil {
		t.Error("Expected error for side value 2")
	}
	// Extra trailing scans are ignored
	if err := (MirrorSides{0, 1, 0, 7}).Validate(3); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
