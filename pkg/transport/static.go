package transport

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// fileHandler serve sempre o mesmo arquivo.
func fileHandler(file string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveFile(w, r, file)
	})
}

// dirHandler serve arquivos abaixo de root para paths iniciados por prefix.
// Diretórios respondem com o index, quando configurado, ou 404.
func dirHandler(prefix, root, index string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(prefix, "/"))
		serveFromDir(w, r, root, rel, index)
	})
}

func serveFromDir(w http.ResponseWriter, r *http.Request, root, rel, index string) {
	clean := path.Clean("/" + rel)
	full := filepath.Join(root, filepath.FromSlash(clean))

	info, err := os.Stat(full)
	if err != nil {
		notFound(w, r)
		return
	}
	if info.IsDir() {
		if index == "" {
			notFound(w, r)
			return
		}
		full = filepath.Join(full, index)
	}
	serveFile(w, r, full)
}

func serveFile(w http.ResponseWriter, r *http.Request, file string) {
	f, err := os.Open(file)
	if err != nil {
		notFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		notFound(w, r)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
