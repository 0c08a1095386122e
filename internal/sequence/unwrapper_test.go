package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnwrapper(t *testing.T) {
	cases := []struct {
		name   string
		input  []uint16
		expect []int64
	}{
		{
			name:   "no-wrap",
			input:  []uint16{0, 1, 2, 3},
			expect: []int64{0, 1, 2, 3},
		},
		{
			name:   "forward-wrap",
			input:  []uint16{65534, 65535, 0, 1},
			expect: []int64{65534, 65535, 65536, 65537},
		},
		{
			name:   "reordered-across-wrap",
			input:  []uint16{65535, 1, 0, 2},
			expect: []int64{65535, 65537, 65536, 65538},
		},
		{
			name:   "backwards",
			input:  []uint16{10, 5, 11},
			expect: []int64{10, 5, 11},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var u Unwrapper
			got := make([]int64, 0, len(tc.input))
			for _, i := range tc.input {
				got = append(got, u.Unwrap(i))
			}
			assert.Equal(t, tc.expect, got)
		})
	}
}
