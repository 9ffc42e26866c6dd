package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf, true)
	if buf.String() != Version+"\n" {
		t.Errorf("short version = %q", buf.String())
	}

	buf.Reset()
	printVersion(&buf, false)
	out := buf.String()
	if !strings.HasPrefix(out, "VisageVault "+Version) {
		t.Errorf("unexpected header in %q", out)
	}
	for _, scheme := range []string{"sqlite", "postgres", "mysql"} {
		if !strings.Contains(out, scheme) {
			t.Errorf("expected catalog backend %s in %q", scheme, out)
		}
	}
}
