package api

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// banner is the optional header image, read once at startup
type banner struct {
	data        []byte
	contentType string
	width       int
	height      int
	modTime     time.Time
}

// loadBanner returns nil when no banner is configured or it cannot be decoded
func loadBanner(path string, logger *zap.Logger) *banner {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("banner not loaded", zap.String("path", path), zap.Error(err))
		return nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		logger.Warn("banner is not a decodable image", zap.String("path", path), zap.Error(err))
		return nil
	}

	b := &banner{
		data:        data,
		contentType: "image/" + format,
		width:       cfg.Width,
		height:      cfg.Height,
	}
	if info, err := os.Stat(path); err == nil {
		b.modTime = info.ModTime()
	}
	return b
}

func (s *Server) serveBanner(w http.ResponseWriter, r *http.Request) {
	if s.banner == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", s.banner.contentType)
	http.ServeContent(w, r, "banner", s.banner.modTime, bytes.NewReader(s.banner.data))
}
