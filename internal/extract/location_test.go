package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	r := NewLocationResolver()

	tests := []struct {
		text   string
		wantID int
		name   string
	}{
		{"경전철운영사업소 구내식당 주간 식단표", 7, "경전철"},
		{"♡ 호포구내식당 주간식단표", 4, "호포"},
		{"안평 환승센터 공지", 7, "경전철"},
		{"본사 식단 알려줘", 1, "본사"},
		{"nopo menu", 2, "노포"},
		{"ㄷㅈ", 6, "대저"},
		// 본사 is declared before 노포, so it wins regardless of position.
		{"노포 말고 본사", 1, "본사"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := r.Resolve(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.name, got.Name)
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	r := NewLocationResolver()

	_, ok := r.Resolve("오늘 점심 뭐야")
	assert.False(t, ok)

	_, err := r.ResolveStrict("오늘 점심 뭐야")
	assert.ErrorIs(t, err, ErrNoLocation)
}

func TestNames(t *testing.T) {
	r := NewLocationResolver()

	name, ok := r.Name(7)
	require.True(t, ok)
	assert.Equal(t, "경전철", name)

	_, ok = r.Name(0)
	assert.False(t, ok)
	_, ok = r.Name(8)
	assert.False(t, ok)

	names := r.Names()
	names[0] = "changed"
	again, _ := r.Name(1)
	assert.Equal(t, "본사", again)
}
