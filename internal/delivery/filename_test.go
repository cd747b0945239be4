package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"office", "office"},
		{"lab-2.eu", "lab-2.eu"},
		{"Main Office", "Main_Office"},
		{`evil"; filename=x.sh`, "evil_filename_x.sh"},
		{"line\r\nSet-Cookie: a=b", "line_Set-Cookie_a_b"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"..", "wireguard"},
		{"", "wireguard"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.in))
		})
	}
}
