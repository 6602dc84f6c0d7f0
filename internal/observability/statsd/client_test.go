package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestCleanPrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  opsdesk.api  ": "opsdesk.api",
		"..opsdesk..":     "opsdesk",
		".":               "",
		"":                "",
	}

	for input, want := range tests {
		if got := cleanPrefix(input); got != want {
			t.Fatalf("cleanPrefix(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCleanName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" snapshot/load ":   "snapshot_load",
		"export..rows":      "export.rows",
		"two  spaces":       "two__spaces",
		"a/b/c":             "a_b_c",
		".pipeline.rows_in": "pipeline.rows_in",
	}

	for input, want := range tests {
		if got := cleanName(input); got != want {
			t.Fatalf("cleanName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestRenderLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prefix  string
		metric  string
		payload string
		global  map[string]string
		local   map[string]string
		want    string
	}{
		{
			name:    "bare counter",
			metric:  "export.completed",
			payload: "1|c",
			want:    "export.completed:1|c",
		},
		{
			name:    "prefixed",
			prefix:  "opsdesk",
			metric:  "snapshot.load",
			payload: "1|c",
			want:    "opsdesk.snapshot.load:1|c",
		},
		{
			name:    "tags sorted and trimmed, local wins",
			prefix:  "opsdesk",
			metric:  "export.rows",
			payload: "3|c",
			global:  map[string]string{"env": "prod", " service ": " api "},
			local:   map[string]string{"dataset": " accounts ", "env": "stage", "": "dropped"},
			want:    "opsdesk.export.rows:3|c|#dataset:accounts,env:stage,service:api",
		},
		{
			name:    "empty metric renders nothing",
			prefix:  "opsdesk",
			metric:  "",
			payload: "1|c",
			want:    "",
		},
		{
			name:    "name cleaning to nothing falls back to prefix",
			prefix:  "opsdesk",
			metric:  "...",
			payload: "2|g",
			want:    "opsdesk:2|g",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := renderLine(tt.prefix, tt.metric, tt.payload, tt.global, tt.local)
			if got != tt.want {
				t.Fatalf("renderLine mismatch\n got: %q\nwant: %q", got, tt.want)
			}
		})
	}
}

func TestCopyTagsReturnsCopy(t *testing.T) {
	t.Parallel()

	original := map[string]string{
		"env": "prod",
		"":    "ignored",
	}

	cloned := copyTags(original)
	if cloned == nil {
		t.Fatal("copyTags returned nil map")
	}

	cloned["env"] = "stage"
	if original["env"] != "prod" {
		t.Fatal("copyTags did not copy values")
	}

	if _, ok := cloned[""]; ok {
		t.Fatal("copyTags kept empty key")
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{
		enabled: true,
		conn:    clientConn,
	}

	if !client.Enabled() {
		t.Fatal("expected client.Enabled to report true with active connection")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if client.Enabled() {
		t.Fatal("expected client.Enabled to report false after Close")
	}

	// Verify Close can be called again without error.
	if err := client.Close(); err != nil {
		t.Fatalf("Close (second call) error: %v", err)
	}

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil client Close error: %v", err)
	}
}

func TestClientEmitsOverUDP(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer pc.Close()

	client, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     "opsdesk",
		GlobalTags: map[string]string{"env": "test"},
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	client.Count("export.completed", 1, map[string]string{"dataset": "accounts"})

	if err := pc.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	buf := make([]byte, 512)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read udp: %v", err)
	}

	want := "opsdesk.export.completed:1|c|#dataset:accounts,env:test"
	if got := string(buf[:n]); got != want {
		t.Fatalf("unexpected metric line\n got: %q\nwant: %q", got, want)
	}
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{
		Enabled: true,
		Address: "   ",
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if client.Enabled() {
		t.Fatal("expected client to stay disabled when address is empty")
	}
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{
		Enabled: true,
		Address: "bad address",
	})
	if err == nil {
		t.Fatal("expected NewClient to error for invalid address")
	}
	if !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}
