package wasm

import (
	"bytes"
	"testing"
)

func TestWriteUleb(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xE5, 0x8E, 0x26}},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		writeUleb(&buf, tc.v)
		if !bytes.Equal(buf.Bytes(), tc.want) {
			t.Errorf("uleb(%d) = % X, want % X", tc.v, buf.Bytes(), tc.want)
		}
		got, next, ok := readUleb(buf.Bytes(), 0)
		if !ok || got != tc.v || next != len(tc.want) {
			t.Errorf("readUleb(% X) = %d,%d,%v", buf.Bytes(), got, next, ok)
		}
	}
}

func TestWriteSleb(t *testing.T) {
	cases := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{42, []byte{0x2A}},
		{-1, []byte{0x7F}},
		{63, []byte{0x3F}},
		{64, []byte{0xC0, 0x00}},
		{-64, []byte{0x40}},
		{-65, []byte{0xBF, 0x7F}},
		{-123456, []byte{0xC0, 0xBB, 0x78}},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		writeSleb(&buf, tc.v)
		if !bytes.Equal(buf.Bytes(), tc.want) {
			t.Errorf("sleb(%d) = % X, want % X", tc.v, buf.Bytes(), tc.want)
		}
	}
}

func TestReadUleb_Truncated(t *testing.T) {
	if _, _, ok := readUleb([]byte{0x80}, 0); ok {
		t.Error("truncated continuation byte accepted")
	}
	if _, _, ok := readUleb(nil, 0); ok {
		t.Error("empty input accepted")
	}
}
