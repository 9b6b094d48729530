package main

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

type renderer interface {
	Render(markdown string) (string, error)
}

type plainRenderer struct{}

func (plainRenderer) Render(markdown string) (string, error) {
	if strings.HasSuffix(markdown, "\n") {
		return markdown, nil
	}
	return markdown + "\n", nil
}

// newRenderer 返回终端 markdown 渲染器，glamour 初始化失败时退回原文输出。
func newRenderer(raw bool) renderer {
	return newRendererWidth(raw, 80)
}

func newRendererWidth(raw bool, width int) renderer {
	if raw {
		return plainRenderer{}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return plainRenderer{}
	}
	return r
}
