package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	called := m.Called(name, args)
	out, _ := called.Get(0).([]byte)
	return out, called.Error(1)
}

func TestHWPConverter(t *testing.T) {
	runner := &mockRunner{}
	c := NewHWPConverter(runner, "hwp5html")

	runner.On("Run", "hwp5html", []string{"--version"}).Return([]byte("0.1.15"), nil).Once()
	assert.True(t, c.Available(context.Background()))

	runner.On("Run", "hwp5html", []string{"--output", "html/doc", "miscs/doc.hwp"}).Return(nil, nil).Once()
	entry, err := c.Convert(context.Background(), "miscs/doc.hwp", "html/doc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("html/doc", "index.xhtml"), entry)

	runner.AssertExpectations(t)
}

func TestHWPConverter_Unavailable(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", "hwp5html", []string{"--version"}).Return(nil, errors.New("executable file not found"))

	assert.False(t, NewHWPConverter(runner, "hwp5html").Available(context.Background()))
}

func TestPDFConverter(t *testing.T) {
	runner := &mockRunner{}
	c := NewPDFConverter(runner, "docker", "pdf2htmlex/pdf2htmlex:test", "1.3")

	staging := t.TempDir()
	out := t.TempDir()
	input := filepath.Join(staging, "[규정]여비규정_2024-03-04.pdf")

	runner.On("Run", "docker", []string{
		"run", "--rm",
		"-v", staging + ":/pdf:ro",
		"-v", out + ":/out",
		"-w", "/pdf",
		"pdf2htmlex/pdf2htmlex:test",
		"--dest-dir", "/out",
		"--zoom", "1.3",
		"[규정]여비규정_2024-03-04.pdf",
	}).Return(nil, nil).Once()

	entry, err := c.Convert(context.Background(), input, out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "[규정]여비규정_2024-03-04.html"), entry)
	runner.AssertExpectations(t)
}

func TestPDFConverter_Failure(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", "docker", mock.Anything).Return([]byte("boom"), errors.New("exit status 1"))

	_, err := NewPDFConverter(runner, "docker", "img", "1.3").Convert(context.Background(), "/tmp/a.pdf", "/tmp/out")
	require.Error(t, err)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short \n", 10))
	assert.Equal(t, "...6789", tail("0123456789", 4))
}
