// Package controllers exposes the screen state-holders over HTTP. Each handler
// builds the state-holder of its screen for the duration of the request, feeds
// it the request's intent and renders the resulting state.
package controllers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// requestContext returns the request context, also cancelled when base ends.
// Long-lived responses use it so server shutdown is not held up by open streams.
func requestContext(base context.Context, ctx *gin.Context) (context.Context, context.CancelFunc) {
	reqCtx, cancel := context.WithCancel(ctx.Request.Context())
	stop := context.AfterFunc(base, cancel)
	return reqCtx, func() {
		stop()
		cancel()
	}
}

func prepareStream(ctx *gin.Context) {
	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")
}

func param(ctx *gin.Context, name string) string {
	return strings.TrimSpace(ctx.Param(name))
}
