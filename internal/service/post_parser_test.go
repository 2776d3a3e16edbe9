package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/jjenkins/bobbot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body>
<table class="basic-list-table"><tbody>
  <tr><td>12</td><td><a href="/homepage/default/board/view.do?board_no=912">최신 글</a></td></tr>
  <tr><td>11</td><td><a href="/homepage/default/board/view.do?board_no=911">이전 글</a></td></tr>
</tbody></table>
</body></html>`

func postPage(titleBlock, content, fileHref, prevHref string) []byte {
	files := ""
	if fileHref != "" {
		files = fmt.Sprintf(`<ul class="board-view-filelist"><li><a href="%s">첨부</a></li></ul>`, fileHref)
	}
	prev := ""
	if prevHref != "" {
		prev = fmt.Sprintf(`<li class="li-prev"><a href="%s">이전글</a></li>`, prevHref)
	}
	return []byte(fmt.Sprintf(`<html><body>
<div class="board-view-title">%s</div>
%s
<div id="boardContents">%s</div>
<ul class="board-view-nav">%s</ul>
</body></html>`, titleBlock, files, content, prev))
}

func TestFirstPostLink(t *testing.T) {
	p := NewPostParser(time.UTC)

	link, err := p.FirstPostLink([]byte(listingPage))
	require.NoError(t, err)
	assert.Equal(t, "/homepage/default/board/view.do?board_no=912", link)

	_, err = p.FirstPostLink([]byte(`<table class="basic-list-table"><tbody></tbody></table>`))
	assert.ErrorIs(t, err, ErrStructure)
}

func TestParsePost(t *testing.T) {
	p := NewPostParser(time.UTC)

	page := postPage(
		"\n\t\t[규정]\n\t\t여비 규정\n\t\t총무팀\n\t\t2024-03-04\n\t",
		"시행일 : 2024년 4월 1일",
		"/common/download.do?file_name_origin=여비규정.HWP",
		"/homepage/default/board/view.do?board_no=911",
	)

	post, err := p.ParsePost(page)
	require.NoError(t, err)
	assert.Equal(t, model.TypeRegulation, post.Type)
	assert.Equal(t, "여비 규정", post.Title)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), post.CreateDate)
	require.NotNil(t, post.EnforceDate)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *post.EnforceDate)
	assert.Equal(t, "/common/download.do?file_name_origin=여비규정.HWP", post.FileURL)
	assert.Equal(t, "/homepage/default/board/view.do?board_no=911", post.NextLink)
}

func TestParsePost_BylawTagOverridesCategory(t *testing.T) {
	p := NewPostParser(time.UTC)

	post, err := p.ParsePost(postPage("[예규]\n[내규] 복무 지침\n인사팀\n2023-11-20", "", "", ""))
	require.NoError(t, err)
	assert.Equal(t, model.TypeBylaw, post.Type)
	assert.Equal(t, "복무 지침", post.Title)
	assert.Nil(t, post.EnforceDate)
	assert.Empty(t, post.FileURL)
	assert.Empty(t, post.NextLink)
}

func TestParsePost_CharterWithoutCategoryLine(t *testing.T) {
	p := NewPostParser(time.UTC)

	post, err := p.ParsePost(postPage("부산교통공사 정관\n기획팀\n2022-01-03", "", "", ""))
	require.NoError(t, err)
	assert.Equal(t, model.TypeCharter, post.Type)
	assert.Equal(t, "부산교통공사 정관", post.Title)
	assert.Equal(t, time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), post.CreateDate)
}

func TestParsePost_BracketedCategoryIsKeptForCharterTitles(t *testing.T) {
	p := NewPostParser(time.UTC)

	post, err := p.ParsePost(postPage("[규정]\n정관 시행 규정\n기획팀\n2022-01-03", "", "", ""))
	require.NoError(t, err)
	assert.Equal(t, model.TypeRegulation, post.Type)
	assert.Equal(t, "정관 시행 규정", post.Title)
}

func TestParsePost_UnknownCategoryIsNull(t *testing.T) {
	p := NewPostParser(time.UTC)

	post, err := p.ParsePost(postPage("[공지]\n안내문\n총무팀\n2024-01-02", "", "", ""))
	require.NoError(t, err)
	assert.Empty(t, post.Type)
}

func TestParsePost_StructuralErrors(t *testing.T) {
	p := NewPostParser(time.UTC)

	tests := map[string][]byte{
		"missing title block": []byte(`<html><body><p>nothing</p></body></html>`),
		"too few lines":       postPage("[규정]\n여비 규정", "", "", ""),
		"bad date":            postPage("[규정]\n여비 규정\n총무팀\n2024.03.04", "", "", ""),
	}
	for name, page := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := p.ParsePost(page)
			assert.ErrorIs(t, err, ErrStructure)
		})
	}
}

func TestParseEnforceDate(t *testing.T) {
	p := NewPostParser(time.UTC)

	tests := []struct {
		content string
		want    *time.Time
	}{
		{"시행일자 : 2024 년 1 월 15 일", ptrDate(2024, 1, 15)},
		{"시행일자：2024.1.15", ptrDate(2024, 1, 15)},
		{"시행일자 : 미정", nil},
		{"2024년 1월 15일", nil},
		{"시행일 : 2024년 2월 30일", nil},
		{"시행일자 : 미정\n제정 2019년 1월 1일, 개정 2021년 3월 2일", nil},
		{"시행일자 : 공포일\n부칙: 2020년 5월 1일", nil},
		{"시행일자 : 2024년 4월 1일\n제정 2019년 1월 1일", ptrDate(2024, 4, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			got := p.parseEnforceDate(tt.content)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestCleanLink(t *testing.T) {
	assert.Empty(t, cleanLink(" # "))
	assert.Empty(t, cleanLink("javascript:void(0)"))
	assert.Equal(t, "/view.do?id=1", cleanLink(" /view.do?id=1 "))
}

func ptrDate(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
