package route

import "strings"

// Join concatena segmentos de path com uma única barra entre eles,
// sempre com barra inicial e sem barra final (exceto para "/").
func Join(parts ...string) string {
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		for _, s := range strings.Split(p, "/") {
			if s != "" {
				segments = append(segments, s)
			}
		}
	}
	return "/" + strings.Join(segments, "/")
}

// TrailingSlash garante uma barra final.
func TrailingSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// JoinTrailing é Join seguido de TrailingSlash.
func JoinTrailing(parts ...string) string {
	return TrailingSlash(Join(parts...))
}

// FormatURI normaliza uma URI de endpoint para o formato de Path.
func FormatURI(uri string) string {
	return Join(uri)
}

// BracePattern converte segmentos :param em {param}.
func BracePattern(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if len(s) > 1 && s[0] == ':' {
			segments[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

// ParamNames lista os nomes dos parâmetros :param do path, em ordem.
func ParamNames(path string) []string {
	var names []string
	for _, s := range strings.Split(path, "/") {
		if len(s) > 1 && s[0] == ':' {
			names = append(names, s[1:])
		}
	}
	return names
}
