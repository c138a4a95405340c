package monitor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// FallbackSupportMessage is shown when no message could be generated
const FallbackSupportMessage = "Just wanted to say I'm here if you need someone to talk to."

const supportTemplate = `<supportive_response>
<situation>%s</situation>

Craft a warm, emotionally supportive message for someone who might be struggling. Keep it gentle, non-judgmental, and caring. End with an invitation to talk if they'd like.

Format:
<response>[Your empathetic message]</response>
</supportive_response>`

var responseTag = regexp.MustCompile(`(?s)<response>(.*?)</response>`)

// Generator produces model text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SupportWriter drafts an empathetic message for a flagged post
type SupportWriter struct {
	llm    Generator
	logger *zap.Logger
}

// NewSupportWriter creates a support writer
func NewSupportWriter(llm Generator, logger *zap.Logger) *SupportWriter {
	return &SupportWriter{llm: llm, logger: logger}
}

// Write returns the generated message, or FallbackSupportMessage on any failure
func (w *SupportWriter) Write(ctx context.Context, postText string) string {
	reply, err := w.llm.Generate(ctx, fmt.Sprintf(supportTemplate, postText))
	if err != nil {
		w.logger.Warn("Support message generation failed", zap.Error(err))
		return FallbackSupportMessage
	}

	m := responseTag.FindStringSubmatch(reply)
	if m == nil {
		w.logger.Warn("Support message missing response tag")
		return FallbackSupportMessage
	}

	msg := strings.TrimSpace(m[1])
	if msg == "" {
		return FallbackSupportMessage
	}
	return msg
}
