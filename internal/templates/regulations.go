// Package templates renders the server's HTML pages.
package templates

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/a-h/templ"
	"github.com/jjenkins/bobbot/internal/model"
)

// RegulationRow is one line of the regulation index.
type RegulationRow struct {
	ID          int
	Title       string
	Type        string
	CreateDate  time.Time
	ViewURL     string
	DownloadURL string
	Attempts    int
}

// page collects the first write error so markup can be emitted linearly.
type page struct {
	w   io.Writer
	err error
}

func (p *page) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *page) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *page) link(href, label string) {
	p.raw(`<a href="`)
	p.text(href)
	p.raw(`">`)
	p.text(label)
	p.raw(`</a>`)
}

func layout(title string, body func(p *page)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<!DOCTYPE html><html lang="ko"><head><meta charset="utf-8"><title>`)
		p.text(title)
		p.raw(`</title></head><body><main>`)
		body(p)
		p.raw(`</main></body></html>`)
		return p.err
	})
}

// Regulations lists stored regulations with links to their converted page
// and original attachment. selected is the active type filter, if any.
func Regulations(rows []RegulationRow, selected string) templ.Component {
	return layout("사내 규정", func(p *page) {
		p.raw(`<h1>사내 규정</h1><nav>`)
		p.link("/regulations", "전체")
		for _, t := range model.RegulationTypes {
			p.raw(" ")
			if t == selected {
				p.raw("<strong>")
				p.text(t)
				p.raw("</strong>")
				continue
			}
			p.link("/regulations?type="+url.QueryEscape(t), t)
		}
		p.raw(`</nav>`)

		if len(rows) == 0 {
			p.raw(`<p>등록된 규정이 없습니다.</p>`)
			return
		}

		p.raw(fmt.Sprintf(`<p>%d건</p>`, len(rows)))
		p.raw(`<table><thead><tr><th>구분</th><th>제목</th><th>게시일</th><th>보기</th><th>원문</th></tr></thead><tbody>`)
		for _, r := range rows {
			p.raw(`<tr><td>`)
			p.text(r.Type)
			p.raw(`</td><td>`)
			p.link(fmt.Sprintf("/regulations/%d", r.ID), r.Title)
			p.raw(`</td><td>`)
			p.text(r.CreateDate.Format("2006-01-02"))
			p.raw(`</td><td>`)
			switch {
			case r.ViewURL != "":
				p.link(r.ViewURL, "바로보기")
			case r.Attempts > 0:
				p.text(fmt.Sprintf("변환 실패 (%d회)", r.Attempts))
			default:
				p.text("변환 대기")
			}
			p.raw(`</td><td>`)
			if r.DownloadURL != "" {
				p.link(r.DownloadURL, "다운로드")
			}
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table>`)
	})
}
