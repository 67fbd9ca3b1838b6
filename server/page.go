package server

import (
	"embed"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minios-linux/scriptloc/i18n"
)

//go:embed templates/*.html
var templates embed.FS

type pageData struct {
	Lang        string
	MaxUploadMB int64
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", pageData{
		Lang:        i18n.Language(),
		MaxUploadMB: s.opts.effectiveMaxUploadBytes() >> 20,
	})
}
