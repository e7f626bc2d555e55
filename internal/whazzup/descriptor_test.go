package whazzup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor_AccumulatesValues(t *testing.T) {
	d, dropped := ParseDescriptor([]byte("gzurl0 = http://a\ngzurl0 = http://b\n"))

	assert.Equal(t, 0, dropped)
	assert.Equal(t, []string{"http://a", "http://b"}, d.Values("gzurl0"))

	url, gzipped, err := SelectFeedURL(d, nil)
	require.NoError(t, err)
	assert.True(t, gzipped)
	assert.Contains(t, []string{"http://a", "http://b"}, url)
}

func TestParseDescriptor_SkipsCommentsAndVersionLine(t *testing.T) {
	text := `120180:TCP
# comment
; other comment

msg0 = Welcome to the network
url0=http://plain/whazzup.txt?a=b
METAR0 = http://metar
`
	d, dropped := ParseDescriptor([]byte(text))

	assert.Equal(t, 1, dropped)
	assert.Equal(t, []string{"Welcome to the network"}, d.Values(KeyNotice))
	assert.Equal(t, []string{"http://plain/whazzup.txt?a=b"}, d.Values(KeyURL))
	assert.True(t, d.Has(KeyMETAR))
}

func TestSelectFeedURL(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		pick        int
		wantURL     string
		wantGzipped bool
		wantErr     error
	}{
		{
			name:        "gzipped preferred when both present",
			text:        "url0 = http://plain\ngzurl0 = http://gz1\ngzurl0 = http://gz2\n",
			pick:        1,
			wantURL:     "http://gz2",
			wantGzipped: true,
		},
		{
			name:    "plain list",
			text:    "url0 = http://plain1\nurl0 = http://plain2\n",
			pick:    0,
			wantURL: "http://plain1",
		},
		{
			name:    "no url",
			text:    "msg0 = hello\n",
			wantErr: ErrNoFeedURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := ParseDescriptor([]byte(tt.text))
			url, gzipped, err := SelectFeedURL(d, func(n int) int { return tt.pick })
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, url)
			assert.Equal(t, tt.wantGzipped, gzipped)
		})
	}
}

func TestListsFeedURL(t *testing.T) {
	d, _ := ParseDescriptor([]byte("url0 = http://plain\ngzurl0 = http://gz\n"))

	assert.True(t, ListsFeedURL(d, "http://plain"))
	assert.True(t, ListsFeedURL(d, "http://gz"))
	assert.False(t, ListsFeedURL(d, "http://gone"))
}
