package internal

import "testing"

func TestMatchGlobParents(t *testing.T) {
	for _, x := range []struct {
		Pattern string
		Path    string
		Match   bool
		Error   bool
	}{
		{"/", "", true, false},
		{"/", "data/us/script", true, false},
		{"*", "", false, false},
		{"*", "e00_001.lin", true, false},
		{"/script", "script", true, false},
		{"script", "us/script", true, false},
		{"/script", "us/script", false, false},
		{"script", "script/e00_001.lin", true, false},
		{"*.lin", "us/script/e00_001.lin", true, false},
		{"/*.lin", "us/script/e00_001.lin", false, false},
		{"us/script", "us/script/e00_001.lin", true, false},
		{"script/e00_001.lin", "us/script/e00_001.lin", false, false}, // multiple components are treated as anchored
		{"/us/script/", "us/script/e00_001.lin", true, false},
		{`us\script`, `us\script\e00_001.lin`, true, false},
		{"//us//script", "/us/script/", true, false},
		{"e0?_*", "us/script/e00_001.lin", true, false},
		{"[", "us/script", false, true},
	} {
		matched, err := MatchGlobParents(x.Pattern, x.Path)
		t.Logf("LOG: match(%q, %q) = %t, %v", x.Pattern, x.Path, matched, err)

		if matched != x.Match {
			if x.Match {
				t.Errorf("ERR: match(%q, %q) expected match", x.Pattern, x.Path)
			} else {
				t.Errorf("ERR: match(%q, %q) expected no match", x.Pattern, x.Path)
			}
		}
		if err != nil != x.Error {
			if x.Error {
				t.Errorf("ERR: match(%q, %q) expected error, got nil", x.Pattern, x.Path)
			} else {
				t.Errorf("ERR: match(%q, %q) expected no error, got %v", x.Pattern, x.Path, err)
			}
		}
	}
}

func TestFormatBytes(t *testing.T) {
	for _, x := range []struct {
		Bytes int64
		SI    string
		IEC   string
	}{
		{0, "0 B", "0 B"},
		{999, "999 B", "999 B"},
		{1000, "1.0 kB", "1000 B"},
		{1024, "1.0 kB", "1.0 KiB"},
		{1536, "1.5 kB", "1.5 KiB"},
		{-2048, "-2.0 kB", "-2.0 KiB"},
		{5 * 1024 * 1024, "5.2 MB", "5.0 MiB"},
	} {
		if s := FormatBytesSI(x.Bytes); s != x.SI {
			t.Errorf("ERR: FormatBytesSI(%d) = %q, expected %q", x.Bytes, s, x.SI)
		}
		if s := FormatBytesIEC(x.Bytes); s != x.IEC {
			t.Errorf("ERR: FormatBytesIEC(%d) = %q, expected %q", x.Bytes, s, x.IEC)
		}
	}
}
