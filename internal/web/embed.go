// Package web はクライアントUIの静的ファイルをバイナリに埋め込んで配信する。
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// Handler は埋め込んだ静的ファイルを配信するhttp.Handlerを返す。
func Handler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// go:embedで埋め込み済みのため到達しない
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
