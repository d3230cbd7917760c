package server

import (
	"github.com/raysh454/medtriage/internal/app"
	"github.com/raysh454/medtriage/internal/logging"
)

type Config struct {
	// ListenAddr is the HTTP listen address of the local bridge server.
	ListenAddr     string
	AllowedOrigins []string
	// MaxUploadBytes bounds a multipart upload to /scan/submit.
	MaxUploadBytes int64

	App    *app.Application
	Logger logging.Logger
}
