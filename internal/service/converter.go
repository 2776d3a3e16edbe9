package service

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandRunner runs an external program and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. A non-zero exit is an error that carries
// the tail of the program output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return out.Bytes(), fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return out.Bytes(), fmt.Errorf("%s: %w: %s", name, err, tail(out.String(), 300))
	}
	return out.Bytes(), nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// Converter turns one downloaded document into an HTML artifact.
type Converter interface {
	// Extension is the lowercase file extension the converter handles.
	Extension() string
	// Available probes whether the external tool can be run.
	Available(ctx context.Context) bool
	// Convert writes the artifact for input into outDir and returns the
	// path of its entry page.
	Convert(ctx context.Context, input, outDir string) (string, error)
}

// HWPConverter wraps the hwp5html tool.
type HWPConverter struct {
	runner  CommandRunner
	command string
}

// NewHWPConverter creates a converter that runs command.
func NewHWPConverter(runner CommandRunner, command string) *HWPConverter {
	return &HWPConverter{runner: runner, command: command}
}

func (c *HWPConverter) Extension() string { return "hwp" }

func (c *HWPConverter) Available(ctx context.Context) bool {
	_, err := c.runner.Run(ctx, c.command, "--version")
	return err == nil
}

// Convert runs `hwp5html --output outDir input`; the tool always names its
// entry page index.xhtml.
func (c *HWPConverter) Convert(ctx context.Context, input, outDir string) (string, error) {
	if _, err := c.runner.Run(ctx, c.command, "--output", outDir, input); err != nil {
		return "", err
	}
	return filepath.Join(outDir, "index.xhtml"), nil
}

// PDFConverter runs pdf2htmlEX inside a container.
type PDFConverter struct {
	runner CommandRunner
	docker string
	image  string
	zoom   string
}

// NewPDFConverter creates a converter that starts image with the docker
// binary.
func NewPDFConverter(runner CommandRunner, docker, image, zoom string) *PDFConverter {
	return &PDFConverter{runner: runner, docker: docker, image: image, zoom: zoom}
}

func (c *PDFConverter) Extension() string { return "pdf" }

func (c *PDFConverter) Available(ctx context.Context) bool {
	_, err := c.runner.Run(ctx, c.docker, "version")
	return err == nil
}

// Convert mounts the staging directory read-only at /pdf and outDir at
// /out. The artifact is named after the input with an .html extension.
func (c *PDFConverter) Convert(ctx context.Context, input, outDir string) (string, error) {
	absInput, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", input, err)
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", outDir, err)
	}

	base := filepath.Base(absInput)
	args := []string{
		"run", "--rm",
		"-v", filepath.Dir(absInput) + ":/pdf:ro",
		"-v", absOut + ":/out",
		"-w", "/pdf",
		c.image,
		"--dest-dir", "/out",
		"--zoom", c.zoom,
		base,
	}
	if _, err := c.runner.Run(ctx, c.docker, args...); err != nil {
		return "", err
	}

	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".html"
	return filepath.Join(outDir, name), nil
}
