package pagination

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name               string
		in                 Window
		wantLimit, wantOff int
	}{
		{"defaults", Window{}, 20, 0},
		{"clamps_limit", Window{Limit: 500}, 100, 0},
		{"clamps_offset", Window{Limit: 10, Offset: -5}, 10, 0},
		{"passthrough", Window{Limit: 50, Offset: 30}, 50, 30},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := c.in
			w.Normalize()
			if w.Limit != c.wantLimit || w.Offset != c.wantOff {
				t.Errorf("got limit=%d offset=%d, want limit=%d offset=%d", w.Limit, w.Offset, c.wantLimit, c.wantOff)
			}
		})
	}
}
