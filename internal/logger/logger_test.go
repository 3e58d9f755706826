package logger

import "testing"

func TestTruncateForLog(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{name: "short", input: "hello", limit: 10, expected: "hello"},
		{name: "exact", input: "hello", limit: 5, expected: "hello"},
		{name: "truncated", input: "hello world", limit: 5, expected: "hello..."},
		{name: "trimmed", input: "  hello  ", limit: 10, expected: "hello"},
		{name: "zero limit", input: "hello", limit: 0, expected: ""},
		{name: "multibyte", input: "привет мир", limit: 6, expected: "привет..."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateForLog(tc.input, tc.limit); got != tc.expected {
				t.Fatalf("TruncateForLog(%q, %d) = %q, expected %q", tc.input, tc.limit, got, tc.expected)
			}
		})
	}
}
